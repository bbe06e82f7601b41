package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	log "github.com/sirupsen/logrus"

	"gest/internal/config"
	"gest/internal/domain"
)

const queryTimeout = 10 * time.Second

var schema = []string{
	`CREATE TABLE IF NOT EXISTS gest_runs (
		id VARCHAR(36) NOT NULL PRIMARY KEY,
		seq BIGINT NOT NULL AUTO_INCREMENT UNIQUE,
		started_at DATETIME NOT NULL,
		duration VARCHAR(64) NOT NULL,
		duration_seconds DOUBLE NOT NULL,
		total_tests INT NOT NULL,
		passed_tests INT NOT NULL,
		failed_tests INT NOT NULL,
		pending_tests INT NOT NULL,
		hook_failures INT NOT NULL,
		config_errors INT NOT NULL,
		KEY idx_started_at (started_at)
	)`,
	`CREATE TABLE IF NOT EXISTS gest_failures (
		run_id VARCHAR(36) NOT NULL,
		seq INT NOT NULL,
		test_name TEXT NOT NULL,
		group_path TEXT NOT NULL,
		full_name TEXT NOT NULL,
		source VARCHAR(32) NOT NULL DEFAULT 'test',
		kind VARCHAR(32) NOT NULL,
		message TEXT NOT NULL,
		diff TEXT NOT NULL,
		stack_trace TEXT NOT NULL,
		resolved BOOLEAN NOT NULL DEFAULT FALSE,
		PRIMARY KEY (run_id, seq),
		CONSTRAINT fk_gest_failures_run FOREIGN KEY (run_id) REFERENCES gest_runs (id) ON DELETE CASCADE
	)`,
}

// latestRunQuery picks the most recently inserted run. started_at only has
// second precision, so the insertion sequence decides.
const latestRunQuery = `SELECT id, started_at, duration, duration_seconds,
	total_tests, passed_tests, failed_tests, pending_tests, hook_failures, config_errors
	FROM gest_runs ORDER BY seq DESC LIMIT 1`

// ErrNoRuns is returned by Load when no run has been stored yet
var ErrNoRuns = errors.New("no stored runs")

// MySQLStorage stores runs in the gest_runs and gest_failures tables
type MySQLStorage struct {
	db *sql.DB
}

// OpenMySQL connects to the results database configured in cfg
func OpenMySQL(cfg *config.Config) (*MySQLStorage, error) {
	if !isValidDatabaseName(cfg.Database.Name) {
		return nil, fmt.Errorf("invalid database name: %s", cfg.Database.Name)
	}
	db, err := sql.Open("mysql", cfg.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &MySQLStorage{db: db}, nil
}

// Close releases the connection pool
func (s *MySQLStorage) Close() error {
	return s.db.Close()
}

// Migrate creates the results database and its tables if they don't exist
func Migrate(ctx context.Context, cfg *config.Config) error {
	name := cfg.Database.Name
	if !isValidDatabaseName(name) {
		return fmt.Errorf("invalid database name: %s", name)
	}

	// Connect to MySQL server (without specifying database)
	server, err := sql.Open("mysql", cfg.GetServerDSN())
	if err != nil {
		return fmt.Errorf("failed to connect to database server: %w", err)
	}
	defer server.Close()

	if err := server.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to ping database server: %w", err)
	}

	exists, err := databaseExists(ctx, server, name)
	if err != nil {
		return fmt.Errorf("failed to check database %s: %w", name, err)
	}
	if !exists {
		if _, err := server.ExecContext(ctx, fmt.Sprintf("CREATE DATABASE IF NOT EXISTS `%s`", name)); err != nil {
			return fmt.Errorf("failed to create database %s: %w", name, err)
		}
		log.WithField("database", name).Info("Created results database")
	}

	db, err := sql.Open("mysql", cfg.GetDSN())
	if err != nil {
		return fmt.Errorf("failed to connect to database %s: %w", name, err)
	}
	defer db.Close()

	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}
	return nil
}

// Save stores the report as a new run
func (s *MySQLStorage) Save(report *domain.Report) error {
	output := report.Output()
	return s.SaveOutput(&output)
}

// SaveOutput stores output, replacing the failures of a run saved under the
// same ID. A replaced run keeps its place in the run order.
func (s *MySQLStorage) SaveOutput(output *domain.TestResultsOutput) error {
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	meta := output.Meta
	if meta.RunID == "" {
		return errors.New("output has no run id")
	}
	startedAt, err := time.Parse(time.RFC3339, meta.Timestamp)
	if err != nil {
		return fmt.Errorf("invalid run timestamp %q: %w", meta.Timestamp, err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `INSERT INTO gest_runs
		(id, started_at, duration, duration_seconds, total_tests, passed_tests, failed_tests, pending_tests, hook_failures, config_errors)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			started_at = VALUES(started_at), duration = VALUES(duration), duration_seconds = VALUES(duration_seconds),
			total_tests = VALUES(total_tests), passed_tests = VALUES(passed_tests), failed_tests = VALUES(failed_tests),
			pending_tests = VALUES(pending_tests), hook_failures = VALUES(hook_failures), config_errors = VALUES(config_errors)`,
		meta.RunID, startedAt.UTC(), meta.Duration, meta.DurationSeconds,
		meta.TotalTests, meta.PassedTests, meta.FailedTests, meta.PendingTests, meta.HookFailures, meta.ConfigErrors)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM gest_failures WHERE run_id = ?`, meta.RunID); err != nil {
		return fmt.Errorf("replace failures: %w", err)
	}

	for i, f := range output.Details {
		_, err := tx.ExecContext(ctx, `INSERT INTO gest_failures
			(run_id, seq, test_name, group_path, full_name, source, kind, message, diff, stack_trace, resolved)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			meta.RunID, i, f.TestName, encodeList(f.GroupPath), f.FullName, sourceOf(f), string(f.Kind),
			f.Message, f.Diff, encodeList(f.StackTrace), f.Resolved)
		if err != nil {
			return fmt.Errorf("insert failure %q: %w", f.FullName, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit run: %w", err)
	}
	return nil
}

// Load returns the most recent run
func (s *MySQLStorage) Load() (*domain.TestResultsOutput, error) {
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	var (
		output    domain.TestResultsOutput
		startedAt time.Time
	)
	meta := &output.Meta
	err := s.db.QueryRowContext(ctx, latestRunQuery).Scan(
		&meta.RunID, &startedAt, &meta.Duration, &meta.DurationSeconds,
		&meta.TotalTests, &meta.PassedTests, &meta.FailedTests, &meta.PendingTests, &meta.HookFailures, &meta.ConfigErrors)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoRuns
	}
	if err != nil {
		return nil, fmt.Errorf("load run: %w", err)
	}
	meta.Timestamp = startedAt.Format(time.RFC3339)

	rows, err := s.db.QueryContext(ctx, `SELECT test_name, group_path, full_name, source, kind, message, diff, stack_trace, resolved
		FROM gest_failures WHERE run_id = ? ORDER BY seq`, meta.RunID)
	if err != nil {
		return nil, fmt.Errorf("load failures: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			f            domain.TestFailure
			path, stack  string
			source, kind string
		)
		if err := rows.Scan(&f.TestName, &path, &f.FullName, &source, &kind, &f.Message, &f.Diff, &stack, &f.Resolved); err != nil {
			return nil, fmt.Errorf("scan failure: %w", err)
		}
		f.Source = domain.FailureSource(source)
		f.Kind = domain.ErrorKind(kind)
		f.GroupPath = decodeList(path)
		f.StackTrace = decodeList(stack)
		output.Details = append(output.Details, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load failures: %w", err)
	}
	return &output, nil
}

func sourceOf(f domain.TestFailure) string {
	if f.Source == "" {
		return string(domain.SourceTest)
	}
	return string(f.Source)
}

func databaseExists(ctx context.Context, db *sql.DB, name string) (bool, error) {
	var exists bool
	query := "SELECT EXISTS(SELECT SCHEMA_NAME FROM INFORMATION_SCHEMA.SCHEMATA WHERE SCHEMA_NAME = ?)"
	err := db.QueryRowContext(ctx, query, name).Scan(&exists)
	return exists, err
}

// isValidDatabaseName only allows names that are safe inside backquotes
func isValidDatabaseName(name string) bool {
	if len(name) == 0 || len(name) > 64 {
		return false
	}
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '$':
		default:
			return false
		}
	}
	return !strings.HasPrefix(name, "$")
}

func encodeList(items []string) string {
	if len(items) == 0 {
		return "[]"
	}
	data, err := json.Marshal(items)
	if err != nil {
		return "[]"
	}
	return string(data)
}

func decodeList(s string) []string {
	var items []string
	if err := json.Unmarshal([]byte(s), &items); err != nil || len(items) == 0 {
		return nil
	}
	return items
}
