// Package config loads pipeline configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"

	"github.com/rvfranca/loteria-db/pkg/catalog"
)

// Mismatch policies for path-derived vs payload-derived draw numbers.
const (
	MismatchTrustPayload = "trust-payload"
	MismatchReject       = "reject"
)

// Config holds everything the pipeline commands need.
type Config struct {
	// Object store.
	Bucket         string
	S3Endpoint     string // empty means default AWS endpoints
	S3Region       string
	S3AccessKey    string
	S3SecretKey    string
	S3UsePathStyle bool

	// Upstream lottery API.
	APIBaseURL string

	// Analytical table.
	DBPath      string
	SnapshotKey string

	// Compiler behavior.
	MismatchPolicy string

	// serve mode.
	ListenAddr  string
	FetchCron   string
	CompileCron string

	Games *catalog.Catalog
}

// Load reads configuration from environment variables, with an optional .env
// file. Missing .env is not an error; in production the variables are set
// directly.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Bucket:         getEnv("LOTTERY_BUCKET", "lottery"),
		S3Endpoint:     getEnv("LOTTERY_S3_ENDPOINT", ""),
		S3Region:       getEnv("LOTTERY_S3_REGION", "us-east-1"),
		S3AccessKey:    getEnv("LOTTERY_S3_ACCESS_KEY", ""),
		S3SecretKey:    getEnv("LOTTERY_S3_SECRET_KEY", ""),
		APIBaseURL:     getEnv("LOTTERY_API_BASE_URL", "https://servicebus2.caixa.gov.br/portaldeloterias/api"),
		DBPath:         getEnv("LOTTERY_DB_PATH", "lottery_results.db"),
		SnapshotKey:    getEnv("LOTTERY_SNAPSHOT_KEY", ""),
		MismatchPolicy: getEnv("LOTTERY_DRAW_MISMATCH", MismatchTrustPayload),
		ListenAddr:     getEnv("LOTTERY_LISTEN_ADDR", ":8080"),
		FetchCron:      getEnv("LOTTERY_FETCH_CRON", "0 21 * * *"),
		CompileCron:    getEnv("LOTTERY_COMPILE_CRON", "30 21 * * *"),
	}

	pathStyle, err := strconv.ParseBool(getEnv("LOTTERY_S3_PATH_STYLE", "true"))
	if err != nil {
		return nil, fmt.Errorf("parse LOTTERY_S3_PATH_STYLE: %w", err)
	}
	cfg.S3UsePathStyle = pathStyle

	if games := os.Getenv("LOTTERY_GAMES"); games != "" {
		cfg.Games, err = catalog.Parse(games)
		if err != nil {
			return nil, fmt.Errorf("parse LOTTERY_GAMES: %w", err)
		}
	} else {
		cfg.Games = catalog.Default()
	}

	switch cfg.MismatchPolicy {
	case MismatchTrustPayload, MismatchReject:
	default:
		return nil, fmt.Errorf("invalid LOTTERY_DRAW_MISMATCH %q: must be %s or %s",
			cfg.MismatchPolicy, MismatchTrustPayload, MismatchReject)
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}
