package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/elys-network/tierpool/internal/config"
	"github.com/elys-network/tierpool/internal/ledger"
	"github.com/elys-network/tierpool/internal/logger"
	"github.com/elys-network/tierpool/internal/pool"
	"github.com/elys-network/tierpool/internal/scoring"
	"github.com/elys-network/tierpool/internal/state"
	"github.com/elys-network/tierpool/internal/vault"
	"github.com/elys-network/tierpool/internal/web"
)

// main is the entry point for the pool service.
func main() {
	// --- 1. Initialization Phase ---
	if err := godotenv.Load(); err != nil {
		log.Warn().Msg("Warning: .env file not found. Relying on OS environment variables.")
	}

	// Load configuration from environment variables
	if err := config.LoadConfig(); err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	if path := os.Getenv("LOG_FILE"); path != "" {
		file, err := logger.FileWriter(path)
		if err != nil {
			log.Fatal().Err(err).Str("path", path).Msg("Failed to open log file")
		}
		logger.InitializeWithWriter(config.LogLevel, zerolog.MultiLevelWriter(logger.ConsoleWriter(), file))
	} else {
		logger.Initialize(config.LogLevel)
	}
	log.Info().Msg("Tiered pool starting...")

	if err := config.ConfigureAddressPrefixes(); err != nil {
		log.Fatal().Err(err).Msg("Failed to configure address prefixes")
	}

	// --- 2. Persistence (optional) ---
	dbCfg, persistent, err := state.DBConfigFromEnv()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid database configuration")
	}
	if persistent {
		if err := state.InitDB(dbCfg); err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize database")
		}
		defer state.CloseDB()
		if err := state.EnsureSchema(); err != nil {
			log.Fatal().Err(err).Msg("Failed to ensure database schema")
		}
	} else {
		log.Warn().Msg("DB_HOST is not set. Pool state lives in memory only and is lost on restart.")
	}

	// --- 3. Capital Manager (with Safety Switch) ---
	if config.Mode != config.ModeSimulated {
		log.Fatal().Str("mode", config.Mode).Msg("POOL_MODE is not set to 'simulated'. Halting: no live capital manager is available. Set POOL_MODE=simulated to run.")
	}
	capital, err := vault.NewMemoryCapitalManager(config.Pool.Denom)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize simulated capital manager")
	}
	log.Warn().Str("denom", config.Pool.Denom).Msg("Running with the SIMULATED capital manager. No funds are moved on chain.")

	// --- 4. Ledger and Scoring Engine ---
	var ledgerSink ledger.Recorder
	var claimSink scoring.ClaimRecorder
	if persistent {
		ledgerSink = ledger.RecorderFunc(state.RecordChanges)
		claimSink = scoring.ClaimRecorderFunc(state.RecordClaim)
	}

	shareLedger, err := ledger.New(ledger.Config{
		Params:   config.Pool,
		Recorder: pool.NewLedgerRecorder(ledgerSink),
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create share ledger")
	}
	engine, err := scoring.NewEngine(scoring.Config{Source: shareLedger, Recorder: claimSink})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create scoring engine")
	}

	if persistent {
		restore(shareLedger, engine, capital)
	}

	if err := shareLedger.BindCapitalManager(capital); err != nil {
		log.Fatal().Err(err).Msg("Failed to bind capital manager")
	}

	service, err := pool.NewService(pool.Config{Ledger: shareLedger, Engine: engine})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create pool service")
	}

	// --- 5. Start Web Server ---
	webServer := web.NewWebServer(config.WebPort, service)
	go func() {
		log.Info().Str("port", config.WebPort).Str("url", "http://localhost:"+config.WebPort).Msg("Starting pool HTTP surface")
		if err := webServer.Start(); err != nil {
			log.Fatal().Err(err).Msg("Web server stopped")
		}
	}()

	// The pool has no timers: every state change is driven by a participant request.
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	sig := <-stop
	log.Info().Str("signal", sig.String()).Msg("Shutting down")
}

// restore loads persisted state into the fresh ledger and engine, then re-seeds the
// simulated capital manager with the value recorded by the last committed operation.
// The seed lands in the primary destination; the next operation rebalances it.
func restore(shareLedger *ledger.Ledger, engine *scoring.Engine, capital *vault.MemoryCapitalManager) {
	ledgerSnap, err := state.LoadLedgerSnapshot()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load ledger snapshot")
	}
	if err := shareLedger.Restore(ledgerSnap); err != nil {
		log.Fatal().Err(err).Msg("Persisted ledger failed its consistency check")
	}
	if !ledgerSnap.Assets.IsNil() && ledgerSnap.Assets.IsPositive() {
		if err := capital.Deploy(ledgerSnap.Assets); err != nil {
			log.Fatal().Err(err).Msg("Failed to re-seed simulated capital")
		}
	}

	scoringSnap, err := state.LoadScoringSnapshot()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load scoring snapshot")
	}
	if err := engine.Restore(scoringSnap); err != nil {
		log.Fatal().Err(err).Msg("Failed to restore claims")
	}

	log.Info().
		Int("positions", len(ledgerSnap.Positions)).
		Int("epochs", len(ledgerSnap.Epochs)).
		Int("claims", len(scoringSnap.Claims)).
		Str("assets", capital.PrimaryValue().String()).
		Msg("Persisted pool state restored")
}
