// Package cli implements the command-line interface for loteria-db.
package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/rvfranca/loteria-db/internal/api"
	"github.com/rvfranca/loteria-db/internal/config"
	"github.com/rvfranca/loteria-db/internal/logctx"
	"github.com/rvfranca/loteria-db/internal/sched"
	"github.com/rvfranca/loteria-db/pkg/archive"
	"github.com/rvfranca/loteria-db/pkg/caixa"
	"github.com/rvfranca/loteria-db/pkg/compile"
	"github.com/rvfranca/loteria-db/pkg/humanfmt"
	"github.com/rvfranca/loteria-db/pkg/lottodb"
	"github.com/rvfranca/loteria-db/pkg/objstore"
	"github.com/rvfranca/loteria-db/pkg/reset"
	"github.com/rvfranca/loteria-db/pkg/results"
	"github.com/rvfranca/loteria-db/pkg/scan"
	"github.com/rvfranca/loteria-db/pkg/snapshot"
)

const scanConcurrency = 8

// Run executes the CLI with the given arguments.
func Run(args []string) error {
	if len(args) == 0 {
		return errors.New("usage: loteria-db <command> [options]\ncommands: fetch, compile, reset, serve")
	}

	switch args[0] {
	case "fetch":
		return runFetch(args[1:])
	case "compile":
		return runCompile(args[1:])
	case "reset":
		return runReset(args[1:])
	case "serve":
		return runServe(args[1:])
	default:
		return fmt.Errorf("unknown command: %s", args[0])
	}
}

// newRunContext builds the batch logger, stamped with a fresh run ID, and a
// context carrying it.
func newRunContext(command string, debug, human bool) (context.Context, zerolog.Logger) {
	log := logctx.NewConfiguredLogger(debug, human).With().
		Str("command", command).
		Str("run_id", uuid.NewString()).
		Logger()
	return logctx.WithLogger(context.Background(), log), log
}

func openStore(ctx context.Context, cfg *config.Config) (objstore.Store, error) {
	return objstore.NewS3(ctx, objstore.S3Config{
		Bucket:       cfg.Bucket,
		Endpoint:     cfg.S3Endpoint,
		Region:       cfg.S3Region,
		AccessKey:    cfg.S3AccessKey,
		SecretKey:    cfg.S3SecretKey,
		UsePathStyle: cfg.S3UsePathStyle,
	})
}

func runFetch(args []string) error {
	fs := flag.NewFlagSet("fetch", flag.ContinueOnError)
	gamesFlag := fs.String("games", "", "comma-separated games to fetch (display names or storage keys, default all)")
	draw := fs.Int("draw", 0, "draw number to fetch (0 means latest)")
	debug := fs.Bool("debug", false, "enable debug logging")
	human := fs.Bool("human", false, "human-readable console output")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx, log := newRunContext("fetch", *debug, *human)

	games := cfg.Games.Keys()
	if *gamesFlag != "" {
		games = games[:0]
		for _, name := range strings.Split(*gamesFlag, ",") {
			name = strings.TrimSpace(name)
			if name == "" {
				continue
			}
			key, ok := cfg.Games.Key(name)
			if !ok {
				if !cfg.Games.HasKey(name) {
					return fmt.Errorf("unknown game %q", name)
				}
				key = name
			}
			games = append(games, key)
		}
		if len(games) == 0 {
			return errors.New("-games is empty")
		}
	}

	store, err := openStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open object store: %w", err)
	}

	start := time.Now()
	archiver := archive.New(store, caixa.New(caixa.Config{BaseURL: cfg.APIBaseURL}))
	summary := archiver.Run(ctx, games, *draw)

	log.Info().
		Int("games", summary.Games).
		Int("archived", summary.Archived).
		Int("failed", summary.Failed).
		Str("elapsed", humanfmt.Duration(time.Since(start))).
		Msg("fetch finished")
	if summary.Archived == 0 && summary.Failed == summary.Games {
		return errors.New("every fetch failed")
	}
	return nil
}

func runCompile(args []string) error {
	fs := flag.NewFlagSet("compile", flag.ContinueOnError)
	debug := fs.Bool("debug", false, "enable debug logging")
	human := fs.Bool("human", false, "human-readable console output")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx, _ := newRunContext("compile", *debug, *human)

	store, err := openStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open object store: %w", err)
	}

	return compileOnce(ctx, cfg, store)
}

// compileOnce runs one full compile cycle: pull the table snapshot, drain the
// backlog into it, push it back. The push happens even when compilation
// partially failed, so successfully compiled rows are never stranded locally.
func compileOnce(ctx context.Context, cfg *config.Config, store objstore.Store) error {
	start := time.Now()
	publisher := snapshot.New(store, cfg.DBPath, cfg.SnapshotKey)
	if err := publisher.Pull(ctx); err != nil {
		return fmt.Errorf("pull table snapshot: %w", err)
	}

	db, err := lottodb.Open(lottodb.DefaultConfig(cfg.DBPath))
	if err != nil {
		return fmt.Errorf("open results database: %w", err)
	}

	compiler := compile.New(store, db, scan.New(store, scanConcurrency), compile.MismatchPolicy(cfg.MismatchPolicy))
	_, runErr := compiler.Run(ctx)

	if err := db.Close(); err != nil {
		return fmt.Errorf("close results database: %w", err)
	}
	if err := publisher.Push(ctx); err != nil {
		return fmt.Errorf("push table snapshot: %w", err)
	}

	logger := logctx.FromContext(ctx)
	logger.Info().
		Str("elapsed", humanfmt.Duration(time.Since(start))).
		Msg("compile cycle finished")
	return runErr
}

func runReset(args []string) error {
	fs := flag.NewFlagSet("reset", flag.ContinueOnError)
	prefix := fs.String("prefix", results.RawPrefix, "object prefix to reset")
	debug := fs.Bool("debug", false, "enable debug logging")
	human := fs.Bool("human", false, "human-readable console output")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx, _ := newRunContext("reset", *debug, *human)

	store, err := openStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open object store: %w", err)
	}

	summary, err := reset.New(store, scan.New(store, scanConcurrency)).Run(ctx, *prefix)
	if err != nil {
		return err
	}
	if summary.Failed > 0 {
		return fmt.Errorf("%d of %d tag resets failed", summary.Failed, summary.Found)
	}
	return nil
}

func runServe(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	debug := fs.Bool("debug", false, "enable debug logging")
	human := fs.Bool("human", false, "human-readable console output")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if !*debug {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, log := newRunContext("serve", *debug, *human)
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := openStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open object store: %w", err)
	}

	// Pull the latest snapshot once, then keep the local file authoritative
	// for the lifetime of the process. The compile job writes this same open
	// database and re-publishes it after every cycle.
	publisher := snapshot.New(store, cfg.DBPath, cfg.SnapshotKey)
	if err := publisher.Pull(ctx); err != nil {
		return fmt.Errorf("pull table snapshot: %w", err)
	}

	db, err := lottodb.Open(lottodb.DefaultConfig(cfg.DBPath))
	if err != nil {
		return fmt.Errorf("open results database: %w", err)
	}
	defer db.Close()

	archiver := archive.New(store, caixa.New(caixa.Config{BaseURL: cfg.APIBaseURL}))
	compiler := compile.New(store, db, scan.New(store, scanConcurrency), compile.MismatchPolicy(cfg.MismatchPolicy))

	scheduler, err := sched.New(log)
	if err != nil {
		return err
	}
	defer scheduler.Stop()

	err = scheduler.Add("fetch", cfg.FetchCron, func() {
		jobCtx, jobLog := newRunContext("fetch", *debug, *human)
		summary := archiver.Run(jobCtx, cfg.Games.Keys(), 0)
		jobLog.Info().Int("archived", summary.Archived).Int("failed", summary.Failed).Msg("scheduled fetch finished")
	})
	if err != nil {
		return err
	}
	err = scheduler.Add("compile", cfg.CompileCron, func() {
		jobCtx, jobLog := newRunContext("compile", *debug, *human)
		if _, err := compiler.Run(jobCtx); err != nil {
			jobLog.Error().Err(err).Msg("scheduled compile failed")
			return
		}
		// The handle stays open across cycles, so the fresh rows are still
		// in the WAL. Fold them into the main file before it is uploaded.
		if err := db.Checkpoint(); err != nil {
			jobLog.Error().Err(err).Msg("wal checkpoint failed, skipping push")
			return
		}
		if err := publisher.Push(jobCtx); err != nil {
			jobLog.Error().Err(err).Msg("snapshot push failed")
		}
	})
	if err != nil {
		return err
	}
	scheduler.Start()

	server := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: api.New(db, cfg.Games, log).Router(),
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.ListenAddr).Msg("listening")
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	return nil
}
