// ./internal/state/db.go
package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/rs/zerolog/log"

	"github.com/elys-network/tierpool/internal/metrics"
)

// DB is a global database connection pool.
var DB *sql.DB

// ErrNotInitialized is returned by every store call made before InitDB.
var ErrNotInitialized = errors.New("database not initialized")

// DBConfig holds database connection parameters.
type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string // "disable", "require", "verify-full", etc.
}

// DSN renders the lib/pq connection string.
func (c DBConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

// DBConfigFromEnv reads the DB_* variables. ok is false when DB_HOST is unset, which
// means the process runs without persistence.
func DBConfigFromEnv() (cfg DBConfig, ok bool, err error) {
	cfg = DBConfig{
		Host:     os.Getenv("DB_HOST"),
		Port:     5432,
		User:     os.Getenv("DB_USER"),
		Password: os.Getenv("DB_PASSWORD"),
		DBName:   os.Getenv("DB_NAME"),
		SSLMode:  os.Getenv("DB_SSLMODE"),
	}
	if cfg.Host == "" {
		return cfg, false, nil
	}
	if raw := os.Getenv("DB_PORT"); raw != "" {
		if cfg.Port, err = strconv.Atoi(raw); err != nil {
			return cfg, true, fmt.Errorf("DB_PORT must be a number, got %q", raw)
		}
	}
	if cfg.SSLMode == "" {
		cfg.SSLMode = "disable"
	}
	if cfg.User == "" || cfg.DBName == "" {
		return cfg, true, errors.New("DB_USER and DB_NAME are required when DB_HOST is set")
	}
	return cfg, true, nil
}

// InitDB initializes the database connection pool.
func InitDB(cfg DBConfig) error {
	return Open(cfg.DSN())
}

// Open initializes the pool from a raw connection string.
func Open(dsn string) error {
	var err error
	DB, err = sql.Open("postgres", dsn)
	if err != nil {
		return fmt.Errorf("failed to open database connection: %w", err)
	}

	DB.SetMaxOpenConns(25)
	DB.SetMaxIdleConns(25)
	DB.SetConnMaxLifetime(5 * time.Minute)

	err = DB.Ping()
	if err != nil {
		DB.Close()
		DB = nil
		return fmt.Errorf("failed to ping database: %w", err)
	}

	log.Info().Msg("Successfully connected to the PostgreSQL database!")
	return nil
}

// CloseDB closes the database connection pool.
func CloseDB() {
	if DB != nil {
		log.Info().Msg("Closing database connection...")
		if err := DB.Close(); err != nil {
			log.Error().Err(err).Msg("Error closing database connection")
		}
		DB = nil
	}
}

// EnsureSchema applies the necessary DDL to create tables if they don't exist.
// Amounts are arbitrary-precision integers stored as NUMERIC(78,0).
func EnsureSchema() error {
	if DB == nil {
		return ErrNotInitialized
	}

	schemaSQL := `
		-- Append-only epoch timeline. A row is updated while the epoch is live and
		-- frozen once finalized.
		CREATE TABLE IF NOT EXISTS ledger_epochs (
			epoch_index BIGINT PRIMARY KEY,
			start_price NUMERIC(78, 0) NOT NULL,
			end_price NUMERIC(78, 0) NOT NULL,
			peak NUMERIC(78, 0) NOT NULL,
			low NUMERIC(78, 0) NOT NULL,
			started BOOLEAN NOT NULL DEFAULT FALSE,
			low_set BOOLEAN NOT NULL DEFAULT FALSE,
			finalized BOOLEAN NOT NULL DEFAULT FALSE,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_ledger_epochs_finalized ON ledger_epochs(finalized, epoch_index DESC);

		-- Scoring anchors, written once per (participant, epoch).
		CREATE TABLE IF NOT EXISTS participant_epoch_entries (
			participant VARCHAR(128) NOT NULL,
			epoch_index BIGINT NOT NULL,
			shares NUMERIC(78, 0) NOT NULL,
			entry_price NUMERIC(78, 0) NOT NULL,
			strategy VARCHAR(16) NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (participant, epoch_index)
		);
		CREATE INDEX IF NOT EXISTS idx_participant_epoch_entries_epoch ON participant_epoch_entries(epoch_index);

		CREATE TABLE IF NOT EXISTS participant_positions (
			participant VARCHAR(128) PRIMARY KEY,
			shares NUMERIC(78, 0) NOT NULL CHECK (shares > 0),
			strategy VARCHAR(16) NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
		);

		-- Ledger aggregates, single row.
		CREATE TABLE IF NOT EXISTS ledger_totals (
			id INTEGER PRIMARY KEY DEFAULT 1,
			total_shares NUMERIC(78, 0) NOT NULL DEFAULT 0,
			weight_conservative NUMERIC(78, 0) NOT NULL DEFAULT 0,
			weight_balanced NUMERIC(78, 0) NOT NULL DEFAULT 0,
			weight_aggressive NUMERIC(78, 0) NOT NULL DEFAULT 0,
			last_finalized_epoch BIGINT NOT NULL DEFAULT 0,
			total_assets NUMERIC(78, 0) NOT NULL DEFAULT 0,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			CONSTRAINT single_row_check CHECK (id = 1)
		);

		-- Insert initial row if it doesn't exist
		INSERT INTO ledger_totals (id) VALUES (1) ON CONFLICT (id) DO NOTHING;

		CREATE TABLE IF NOT EXISTS point_claims (
			claim_id UUID PRIMARY KEY,
			participant VARCHAR(128) NOT NULL,
			epoch_index BIGINT NOT NULL,
			points NUMERIC(78, 0) NOT NULL,
			cumulative_points NUMERIC(78, 0) NOT NULL,
			claimed_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			CONSTRAINT uq_point_claims_participant_epoch UNIQUE (participant, epoch_index)
		);
		CREATE INDEX IF NOT EXISTS idx_point_claims_claimed_at ON point_claims(claimed_at DESC);
	`
	_, err := DB.Exec(schemaSQL)
	if err != nil {
		return fmt.Errorf("failed to execute schema DDL: %w", err)
	}
	log.Info().Msg("Database schema ensured.")
	return nil
}

// DropSchema removes every pool table. Used by the reset script.
func DropSchema() error {
	if DB == nil {
		return ErrNotInitialized
	}
	dropTablesSQL := `
		DROP TABLE IF EXISTS point_claims CASCADE;
		DROP TABLE IF EXISTS ledger_totals CASCADE;
		DROP TABLE IF EXISTS participant_positions CASCADE;
		DROP TABLE IF EXISTS participant_epoch_entries CASCADE;
		DROP TABLE IF EXISTS ledger_epochs CASCADE;
	`
	if _, err := DB.Exec(dropTablesSQL); err != nil {
		return fmt.Errorf("failed to drop tables: %w", err)
	}
	log.Warn().Msg("Dropped all pool tables")
	return nil
}

// TestDBConnection tests if the database connection is healthy
func TestDBConnection() error {
	if DB == nil {
		return fmt.Errorf("database connection is nil")
	}

	// Use a short timeout context for health checks
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := DB.PingContext(ctx)
	if err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	return nil
}

// observe records query timing for operation.
func observe(operation string, start time.Time, err error) {
	metrics.RecordDBQuery(operation, time.Since(start).Seconds(), err)
}
