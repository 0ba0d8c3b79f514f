/*
This file contains conversions from fixed-point SDK integers to the float and decimal
forms used by metrics and the HTTP surface. Accounting never goes through these.
*/

package utils

import (
	"errors"
	"fmt"
	"math"

	sdkmath "cosmossdk.io/math"
)

// MaxPrecision is the largest number of decimals a LegacyDec can carry.
const MaxPrecision = 18

var (
	ErrInvalidPrecision = errors.New("precision is invalid")
	ErrAmountNil        = errors.New("amount is nil")
	ErrAmountNegative   = errors.New("amount is negative")
	ErrNotFinite        = errors.New("value is not finite")
	ErrConversionFailed = errors.New("conversion failed")
)

// SDKIntToFloat64 converts an SDK Int carrying precision implied decimals to float64.
func SDKIntToFloat64(amount sdkmath.Int, precision int) (float64, error) {
	dec, err := toDec(amount, precision)
	if err != nil {
		return 0, err
	}

	resultFloat, err := dec.Float64()
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrConversionFailed, err)
	}
	if math.IsNaN(resultFloat) || math.IsInf(resultFloat, 0) {
		return 0, fmt.Errorf("%w: result is %f", ErrNotFinite, resultFloat)
	}
	return resultFloat, nil
}

// MustFloat64 is SDKIntToFloat64 for gauges: unconvertible values read as 0.
func MustFloat64(amount sdkmath.Int, precision int) float64 {
	f, err := SDKIntToFloat64(amount, precision)
	if err != nil {
		return 0
	}
	return f
}

// FormatFixed renders an SDK Int with precision implied decimals as a decimal string,
// e.g. 1300000000000000000 at precision 18 is "1.300000000000000000".
func FormatFixed(amount sdkmath.Int, precision int) (string, error) {
	dec, err := toDec(amount, precision)
	if err != nil {
		return "", err
	}
	return dec.String(), nil
}

func toDec(amount sdkmath.Int, precision int) (sdkmath.LegacyDec, error) {
	if precision < 0 || precision > MaxPrecision {
		return sdkmath.LegacyDec{}, fmt.Errorf("%w: %d (must be between 0 and %d)", ErrInvalidPrecision, precision, MaxPrecision)
	}
	if amount.IsNil() {
		return sdkmath.LegacyDec{}, ErrAmountNil
	}
	if amount.IsNegative() {
		return sdkmath.LegacyDec{}, ErrAmountNegative
	}
	return sdkmath.LegacyNewDecFromIntWithPrec(amount, int64(precision)), nil
}
