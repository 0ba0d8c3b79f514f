package config

import (
	"testing"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadPoolParameters_Defaults(t *testing.T) {
	t.Setenv("POOL_DENOM", "uusdc")
	t.Setenv("POOL_GENESIS_TIME", "2025-01-01T00:00:00Z")

	params, err := LoadPoolParameters()
	require.NoError(t, err)

	assert.Equal(t, "uusdc", params.Denom)
	assert.True(t, params.GenesisTime.Equal(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, DefaultEpochDuration, params.EpochDuration)
	assert.Equal(t, uint64(DefaultMaxCatchUpEpochs), params.MaxCatchUpEpochs)
	assert.Equal(t, "1000000", params.MinDeposit.String())
}

func TestLoadPoolParameters_Overrides(t *testing.T) {
	t.Setenv("POOL_DENOM", "uelys")
	t.Setenv("POOL_GENESIS_TIME", "1735689600")
	t.Setenv("POOL_EPOCH_DURATION", "168h")
	t.Setenv("POOL_MIN_DEPOSIT", "5000")

	params, err := LoadPoolParameters()
	require.NoError(t, err)

	assert.Equal(t, int64(1735689600), params.GenesisTime.Unix())
	assert.Equal(t, 7*24*time.Hour, params.EpochDuration)
	assert.Equal(t, "5000", params.MinDeposit.String())
}

func TestLoadPoolParameters_EpochDurationInSeconds(t *testing.T) {
	t.Setenv("POOL_DENOM", "uusdc")
	t.Setenv("POOL_GENESIS_TIME", "2025-01-01T00:00:00Z")
	t.Setenv("POOL_EPOCH_DURATION", "3600")

	params, err := LoadPoolParameters()
	require.NoError(t, err)
	assert.Equal(t, time.Hour, params.EpochDuration)
}

func TestLoadPoolParameters_EmptyDenom(t *testing.T) {
	t.Setenv("POOL_GENESIS_TIME", "2025-01-01T00:00:00Z")
	t.Setenv("POOL_DENOM", "")

	_, err := LoadPoolParameters()
	require.Error(t, err)
}

func TestLoadPoolParameters_RejectsBadValues(t *testing.T) {
	t.Setenv("POOL_DENOM", "uusdc")
	t.Setenv("POOL_GENESIS_TIME", "not-a-time")

	_, err := LoadPoolParameters()
	require.Error(t, err)

	t.Setenv("POOL_GENESIS_TIME", "2025-01-01T00:00:00Z")
	t.Setenv("POOL_MIN_DEPOSIT", "-5")
	_, err = LoadPoolParameters()
	require.Error(t, err)

	t.Setenv("POOL_MIN_DEPOSIT", "0")
	_, err = LoadPoolParameters()
	require.Error(t, err)
}

func TestValidatePoolParameters(t *testing.T) {
	valid := DefaultPoolParameters
	valid.Denom = "uusdc"
	valid.GenesisTime = time.Unix(0, 0)
	require.NoError(t, ValidatePoolParameters(valid))

	noCatchUp := valid
	noCatchUp.MaxCatchUpEpochs = 0
	assert.Error(t, ValidatePoolParameters(noCatchUp))

	nilDeposit := valid
	nilDeposit.MinDeposit = sdkmath.Int{}
	assert.Error(t, ValidatePoolParameters(nilDeposit))

	noEpoch := valid
	noEpoch.EpochDuration = 0
	assert.Error(t, ValidatePoolParameters(noEpoch))
}
