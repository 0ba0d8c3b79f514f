package utils

import (
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSDKIntToFloat64(t *testing.T) {
	f, err := SDKIntToFloat64(sdkmath.NewInt(1_500_000), 6)
	require.NoError(t, err)
	assert.InDelta(t, 1.5, f, 1e-12)

	f, err = SDKIntToFloat64(sdkmath.NewIntWithDecimal(13, 17), 18)
	require.NoError(t, err)
	assert.InDelta(t, 1.3, f, 1e-12)

	_, err = SDKIntToFloat64(sdkmath.Int{}, 6)
	assert.ErrorIs(t, err, ErrAmountNil)

	_, err = SDKIntToFloat64(sdkmath.NewInt(-1), 6)
	assert.ErrorIs(t, err, ErrAmountNegative)

	_, err = SDKIntToFloat64(sdkmath.NewInt(1), 19)
	assert.ErrorIs(t, err, ErrInvalidPrecision)
}

func TestMustFloat64(t *testing.T) {
	assert.Equal(t, 0.0, MustFloat64(sdkmath.NewInt(-5), 0))
	assert.Equal(t, 42.0, MustFloat64(sdkmath.NewInt(42), 0))
}

func TestFormatFixed(t *testing.T) {
	s, err := FormatFixed(sdkmath.NewIntWithDecimal(13, 17), 18)
	require.NoError(t, err)
	assert.Equal(t, "1.300000000000000000", s)

	s, err = FormatFixed(sdkmath.NewInt(334285714285714285), 18)
	require.NoError(t, err)
	assert.Equal(t, "0.334285714285714285", s)

	_, err = FormatFixed(sdkmath.NewInt(-1), 18)
	assert.ErrorIs(t, err, ErrAmountNegative)
}
