package main

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/elys-network/tierpool/internal/logger"
	"github.com/elys-network/tierpool/internal/state"
)

// Drops every pool table and recreates the empty schema. All positions, epochs and
// claims are lost, so the script refuses to run unless RESET_CONFIRM=yes.
func main() {
	if err := godotenv.Load(); err != nil {
		log.Warn().Msg("Warning: .env file not found. Relying on OS environment variables.")
	}

	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "info"
	}
	logger.Initialize(logLevel)

	if os.Getenv("RESET_CONFIRM") != "yes" {
		log.Fatal().Msg("Refusing to reset: set RESET_CONFIRM=yes to drop all pool state.")
	}

	dbCfg, ok, err := state.DBConfigFromEnv()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid database configuration")
	}
	if !ok {
		log.Fatal().Msg("DB_HOST environment variable not set.")
	}

	log.Info().
		Str("host", dbCfg.Host).
		Int("port", dbCfg.Port).
		Str("user", dbCfg.User).
		Str("dbname", dbCfg.DBName).
		Msg("Connecting to database")

	if err := state.InitDB(dbCfg); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database connection")
	}
	defer state.CloseDB()

	if totals, err := state.GetLedgerTotals(); err != nil {
		log.Warn().Err(err).Msg("Could not read ledger totals before reset (schema may not exist yet)")
	} else {
		log.Warn().
			Str("totalShares", totals.TotalShares.String()).
			Uint64("lastFinalizedEpoch", totals.LastFinalizedEpoch).
			Msg("Discarding persisted ledger state")
	}

	if err := state.DropSchema(); err != nil {
		log.Fatal().Err(err).Msg("Failed to drop tables")
	}
	if err := state.EnsureSchema(); err != nil {
		log.Fatal().Err(err).Msg("Failed to recreate database schema")
	}

	log.Info().Msg("Database reset complete")
}
