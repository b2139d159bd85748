// Package lottodb is the embedded analytical table for compiled lottery
// results: a single SQLite file holding the lottery_results table. The file
// doubles as the durable snapshot that gets pushed back to the object store
// after every compiler run.
package lottodb

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/rvfranca/loteria-db/pkg/results"
)

// dateLayout is how draw_date is stored (ISO calendar date).
const dateLayout = "2006-01-02"

// Config holds configuration for the analytical table.
type Config struct {
	// Path is the SQLite database file.
	Path string
	// Synchronous sets the SQLite synchronous pragma. Defaults to NORMAL.
	Synchronous string
}

// DefaultConfig returns the default configuration for a database path.
func DefaultConfig(path string) Config {
	return Config{Path: path, Synchronous: "NORMAL"}
}

// Validate checks configuration values.
func (c *Config) Validate() error {
	if c.Path == "" {
		return fmt.Errorf("Path is required")
	}
	switch c.Synchronous {
	case "", "OFF", "NORMAL", "FULL":
	default:
		return fmt.Errorf("invalid Synchronous value %q: must be OFF, NORMAL, or FULL", c.Synchronous)
	}
	return nil
}

// DB wraps the SQLite handle for the lottery_results table.
type DB struct {
	db *sql.DB
}

// Open opens (or creates) the database and ensures the schema exists.
// Schema creation is idempotent; opening an already-populated snapshot is
// the normal case.
func Open(cfg Config) (*DB, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if cfg.Synchronous == "" {
		cfg.Synchronous = "NORMAL"
	}

	db, err := sql.Open("sqlite3", cfg.Path+"?_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		fmt.Sprintf("PRAGMA synchronous=%s", cfg.Synchronous),
		"PRAGMA temp_store=MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("execute pragma %q: %w", pragma, err)
		}
	}

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &DB{db: db}, nil
}

func createSchema(db *sql.DB) error {
	createResults := `
		CREATE TABLE IF NOT EXISTS lottery_results (
			game_name TEXT NOT NULL,
			draw_number INTEGER NOT NULL,
			draw_date DATE NOT NULL,
			file_path TEXT NOT NULL,
			winning_numbers JSON NOT NULL,
			prize_tiers JSON NOT NULL,
			PRIMARY KEY (game_name, draw_number)
		)
	`
	if _, err := db.Exec(createResults); err != nil {
		return fmt.Errorf("create lottery_results table: %w", err)
	}
	return nil
}

// Close closes the database handle.
func (d *DB) Close() error {
	return d.db.Close()
}

// Checkpoint flushes the write-ahead log into the main database file and
// truncates it. Long-lived handles call this before the file is copied or
// uploaded; without it, recent commits live only in the -wal sidecar.
func (d *DB) Checkpoint() error {
	if _, err := d.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		return fmt.Errorf("checkpoint wal: %w", err)
	}
	return nil
}

// Insert upserts one result row with conflict-skip semantics: the first row
// for a (game_name, draw_number) key wins and later inserts for the same key
// are silent no-ops. Returns whether a row was actually written.
func (d *DB) Insert(row results.Row) (bool, error) {
	numbers, err := json.Marshal(row.WinningNumbers)
	if err != nil {
		return false, fmt.Errorf("marshal winning numbers: %w", err)
	}
	tiers := string(row.PrizeTiers)
	if tiers == "" {
		return false, fmt.Errorf("row for %s/%d has no prize tiers", row.GameName, row.DrawNumber)
	}

	res, err := d.db.Exec(`
		INSERT INTO lottery_results (game_name, draw_number, draw_date, file_path, winning_numbers, prize_tiers)
		VALUES (?, ?, ?, ?, ?, ?) ON CONFLICT DO NOTHING
	`, row.GameName, row.DrawNumber, row.DrawDate.Format(dateLayout), row.FilePath, string(numbers), tiers)
	if err != nil {
		return false, fmt.Errorf("insert result %s/%d: %w", row.GameName, row.DrawNumber, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

// Count returns the number of result rows.
func (d *DB) Count() (int64, error) {
	var n int64
	if err := d.db.QueryRow("SELECT COUNT(*) FROM lottery_results").Scan(&n); err != nil {
		return 0, fmt.Errorf("count results: %w", err)
	}
	return n, nil
}

// DrawSummary is one row of a read query.
type DrawSummary struct {
	GameName       string          `json:"gameName"`
	DrawNumber     int             `json:"drawNumber"`
	DrawDate       time.Time       `json:"drawDate"`
	WinningNumbers []string        `json:"winningNumbers"`
	PrizeTiers     json.RawMessage `json:"prizeTiers,omitempty"`
}

// LatestQuery parameterizes LatestDraws. Games is the catalog filter applied
// to every read; Game optionally narrows to one game; DistinctGames returns
// only the newest draw per game, ignoring Limit.
type LatestQuery struct {
	Games         []string
	Game          string
	Limit         int
	DistinctGames bool
}

// LatestDraws returns draws ordered newest first, filtered to the catalog.
func (d *DB) LatestDraws(q LatestQuery) ([]DrawSummary, error) {
	if len(q.Games) == 0 {
		return nil, fmt.Errorf("catalog filter is empty")
	}

	filter, args := inClause(q.Games)
	where := fmt.Sprintf("WHERE game_name IN (%s)", filter)
	if q.Game != "" {
		where += " AND game_name = ?"
		args = append(args, q.Game)
	}

	var query string
	if q.DistinctGames {
		// Newest draw per game, the window-function equivalent of the
		// dashboard's one-card-per-game view.
		query = fmt.Sprintf(`
			SELECT game_name, draw_number, draw_date, winning_numbers, prize_tiers FROM (
				SELECT game_name, draw_number, draw_date, winning_numbers, prize_tiers,
					ROW_NUMBER() OVER (
						PARTITION BY game_name
						ORDER BY draw_date DESC, draw_number DESC
					) AS rn
				FROM lottery_results
				%s
			) WHERE rn = 1
		`, where)
	} else {
		query = fmt.Sprintf(`
			SELECT game_name, draw_number, draw_date, winning_numbers, prize_tiers
			FROM lottery_results
			%s
		`, where)
		query += " ORDER BY draw_date DESC, draw_number DESC"
		if q.Limit > 0 {
			query += " LIMIT ?"
			args = append(args, q.Limit)
		}
	}

	return d.queryDraws(query, args...)
}

// WinningNumbers returns the recent winning numbers for one game, newest
// first. Prize tiers are omitted.
func (d *DB) WinningNumbers(game string, limit int) ([]DrawSummary, error) {
	rows, err := d.db.Query(`
		SELECT game_name, draw_number, draw_date, winning_numbers
		FROM lottery_results
		WHERE game_name = ?
		ORDER BY draw_date DESC, draw_number DESC
		LIMIT ?
	`, game, limit)
	if err != nil {
		return nil, fmt.Errorf("query winning numbers: %w", err)
	}
	defer rows.Close()

	var out []DrawSummary
	for rows.Next() {
		var s DrawSummary
		var date, numbers string
		if err := rows.Scan(&s.GameName, &s.DrawNumber, &date, &numbers); err != nil {
			return nil, fmt.Errorf("scan winning numbers row: %w", err)
		}
		if err := fillDraw(&s, date, numbers, ""); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// AvailableGames returns the catalog games that actually have rows, in
// catalog-filter order.
func (d *DB) AvailableGames(games []string) ([]string, error) {
	if len(games) == 0 {
		return nil, nil
	}

	filter, args := inClause(games)
	rows, err := d.db.Query(fmt.Sprintf(`
		SELECT DISTINCT game_name FROM lottery_results WHERE game_name IN (%s)
	`, filter), args...)
	if err != nil {
		return nil, fmt.Errorf("query available games: %w", err)
	}
	defer rows.Close()

	present := make(map[string]bool)
	for rows.Next() {
		var game string
		if err := rows.Scan(&game); err != nil {
			return nil, fmt.Errorf("scan game name: %w", err)
		}
		present[game] = true
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var out []string
	for _, game := range games {
		if present[game] {
			out = append(out, game)
		}
	}
	return out, nil
}

func (d *DB) queryDraws(query string, args ...any) ([]DrawSummary, error) {
	rows, err := d.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query draws: %w", err)
	}
	defer rows.Close()

	var out []DrawSummary
	for rows.Next() {
		var s DrawSummary
		var date, numbers, tiers string
		if err := rows.Scan(&s.GameName, &s.DrawNumber, &date, &numbers, &tiers); err != nil {
			return nil, fmt.Errorf("scan draw row: %w", err)
		}
		if err := fillDraw(&s, date, numbers, tiers); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func fillDraw(s *DrawSummary, date, numbers, tiers string) error {
	parsed, err := time.Parse(dateLayout, date)
	if err != nil {
		return fmt.Errorf("parse stored draw_date %q: %w", date, err)
	}
	s.DrawDate = parsed
	if err := json.Unmarshal([]byte(numbers), &s.WinningNumbers); err != nil {
		return fmt.Errorf("parse stored winning_numbers: %w", err)
	}
	if tiers != "" {
		s.PrizeTiers = json.RawMessage(tiers)
	}
	return nil
}

func inClause(values []string) (string, []any) {
	placeholders := make([]string, len(values))
	args := make([]any, len(values))
	for i, v := range values {
		placeholders[i] = "?"
		args[i] = v
	}
	return strings.Join(placeholders, ", "), args
}
