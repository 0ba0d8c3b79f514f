package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/rs/zerolog/log"

	"github.com/elys-network/tierpool/internal/types"
)

// ModeSimulated runs the pool against the in-memory capital manager.
const ModeSimulated = "simulated"

// AppConfig holds all application configuration loaded from environment variables.
// These are populated at startup by the LoadConfig function.
var (
	// Pool holds the fixed pool parameters (defaults overridden by the environment).
	Pool types.PoolParameters

	// Mode selects the capital manager implementation.
	Mode string

	// WebPort is the port the HTTP surface listens on.
	WebPort string

	// LogLevel is the zerolog level name.
	LogLevel string
)

// LoadConfig loads configuration from environment variables and sets the global config vars.
// POOL_GENESIS_TIME, POOL_DENOM and POOL_MODE are required; everything else has a default.
func LoadConfig() error {
	log.Info().Msg("Loading pool configuration from environment variables...")

	params, err := LoadPoolParameters()
	if err != nil {
		return err
	}
	Pool = params

	Mode, err = getEnv("POOL_MODE")
	if err != nil {
		return err
	}

	WebPort = getEnvOrDefault("WEB_PORT", "8080")
	LogLevel = getEnvOrDefault("LOG_LEVEL", "info")

	log.Debug().
		Str("denom", Pool.Denom).
		Time("genesis", Pool.GenesisTime).
		Dur("epochDuration", Pool.EpochDuration).
		Str("minDeposit", Pool.MinDeposit.String()).
		Str("mode", Mode).
		Msg("Configuration loaded successfully.")

	return nil
}

// LoadPoolParameters builds the pool parameters from DefaultPoolParameters and the environment.
func LoadPoolParameters() (types.PoolParameters, error) {
	params := DefaultPoolParameters

	var err error
	params.Denom, err = getEnv("POOL_DENOM")
	if err != nil {
		return types.PoolParameters{}, err
	}

	params.GenesisTime, err = getEnvAsTime("POOL_GENESIS_TIME")
	if err != nil {
		return types.PoolParameters{}, err
	}

	if _, ok := os.LookupEnv("POOL_EPOCH_DURATION"); ok {
		params.EpochDuration, err = getEnvAsDuration("POOL_EPOCH_DURATION")
		if err != nil {
			return types.PoolParameters{}, err
		}
	}

	if _, ok := os.LookupEnv("POOL_MIN_DEPOSIT"); ok {
		params.MinDeposit, err = getEnvAsInt("POOL_MIN_DEPOSIT")
		if err != nil {
			return types.PoolParameters{}, err
		}
	}

	if err := ValidatePoolParameters(params); err != nil {
		return types.PoolParameters{}, err
	}
	return params, nil
}

// ValidatePoolParameters rejects parameter sets the ledger cannot run with.
func ValidatePoolParameters(p types.PoolParameters) error {
	if strings.TrimSpace(p.Denom) == "" {
		return errors.New("pool denom cannot be empty")
	}
	if p.GenesisTime.IsZero() {
		return errors.New("pool genesis time must be set")
	}
	if p.EpochDuration <= 0 {
		return errors.New("epoch duration must be positive")
	}
	if p.MinDeposit.IsNil() || !p.MinDeposit.IsPositive() {
		return errors.New("minimum deposit must be positive")
	}
	if p.MaxCatchUpEpochs == 0 {
		return errors.New("max catch-up epochs must be positive")
	}
	return nil
}

// getEnv retrieves a string environment variable. Returns error if not set.
func getEnv(key string) (string, error) {
	if value, exists := os.LookupEnv(key); exists {
		return value, nil
	}
	return "", errors.New("environment variable " + key + " is required but not set")
}

func getEnvOrDefault(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return fallback
}

// getEnvAsUint64 retrieves an environment variable as a uint64. Returns error if not set or invalid.
func getEnvAsUint64(key string) (uint64, error) {
	valueStr, err := getEnv(key)
	if err != nil {
		return 0, err
	}
	value, err := strconv.ParseUint(valueStr, 10, 64)
	if err != nil {
		return 0, errors.New("environment variable " + key + " must be a valid uint64, got: " + valueStr)
	}
	return value, nil
}

// getEnvAsInt retrieves an environment variable as an arbitrary-precision non-negative integer.
func getEnvAsInt(key string) (sdkmath.Int, error) {
	valueStr, err := getEnv(key)
	if err != nil {
		return sdkmath.Int{}, err
	}
	value, ok := sdkmath.NewIntFromString(strings.TrimSpace(valueStr))
	if !ok || value.IsNegative() {
		return sdkmath.Int{}, errors.New("environment variable " + key + " must be a non-negative integer, got: " + valueStr)
	}
	return value, nil
}

// getEnvAsDuration accepts Go durations ("720h") or a plain number of seconds.
func getEnvAsDuration(key string) (time.Duration, error) {
	valueStr, err := getEnv(key)
	if err != nil {
		return 0, err
	}
	if d, err := time.ParseDuration(valueStr); err == nil {
		return d, nil
	}
	seconds, err := getEnvAsUint64(key)
	if err != nil {
		return 0, errors.New("environment variable " + key + " must be a duration, got: " + valueStr)
	}
	return time.Duration(seconds) * time.Second, nil
}

// getEnvAsTime accepts RFC3339 timestamps or unix seconds.
func getEnvAsTime(key string) (time.Time, error) {
	valueStr, err := getEnv(key)
	if err != nil {
		return time.Time{}, err
	}
	if t, err := time.Parse(time.RFC3339, valueStr); err == nil {
		return t.UTC(), nil
	}
	seconds, err := strconv.ParseInt(valueStr, 10, 64)
	if err != nil {
		return time.Time{}, errors.New("environment variable " + key + " must be RFC3339 or unix seconds, got: " + valueStr)
	}
	return time.Unix(seconds, 0).UTC(), nil
}
