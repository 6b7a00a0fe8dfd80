// Package amount converts between human decimal amounts and raw integer
// amounts expressed in a token's smallest unit.
package amount

import (
	"errors"
	"fmt"
	"math/big"
	"regexp"

	"github.com/shopspring/decimal"
)

// MaxDecimals bounds the decimal count accepted by the codec.
const MaxDecimals = 36

var (
	ErrNotNumeric      = errors.New("amount is not a non-negative decimal number")
	ErrInvalidDecimals = errors.New("decimals out of range")

	decimalPattern = regexp.MustCompile(`^[0-9]+(\.[0-9]+)?$`)
	rawPattern     = regexp.MustCompile(`^[0-9]+$`)
)

// ToRaw converts a decimal string into raw units, truncating fractional digits
// beyond decimals. "10.5" with 6 decimals yields "10500000".
func ToRaw(value string, decimals int) (string, error) {
	if err := checkDecimals(decimals); err != nil {
		return "", err
	}
	if !decimalPattern.MatchString(value) {
		return "", fmt.Errorf("%w: %q", ErrNotNumeric, value)
	}
	d, err := decimal.NewFromString(value)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrNotNumeric, value)
	}
	return d.Shift(int32(decimals)).Truncate(0).BigInt().String(), nil
}

// FromRaw converts raw units back into a decimal string without trailing zeros.
func FromRaw(raw string, decimals int) (string, error) {
	d, err := RawToDecimal(raw, decimals)
	if err != nil {
		return "", err
	}
	return d.String(), nil
}

// RawToDecimal parses raw units into a decimal value.
func RawToDecimal(raw string, decimals int) (decimal.Decimal, error) {
	if err := checkDecimals(decimals); err != nil {
		return decimal.Zero, err
	}
	n, err := ParseRaw(raw)
	if err != nil {
		return decimal.Zero, err
	}
	return decimal.NewFromBigInt(n, -int32(decimals)), nil
}

// DecimalToRaw truncates d to decimals and returns its raw representation.
func DecimalToRaw(d decimal.Decimal, decimals int) (string, error) {
	if d.IsNegative() {
		return "", fmt.Errorf("%w: %s", ErrNotNumeric, d.String())
	}
	return ToRaw(d.String(), decimals)
}

// ParseRaw validates a raw integer string.
func ParseRaw(raw string) (*big.Int, error) {
	if !rawPattern.MatchString(raw) {
		return nil, fmt.Errorf("%w: %q", ErrNotNumeric, raw)
	}
	n, ok := new(big.Int).SetString(raw, 10)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotNumeric, raw)
	}
	return n, nil
}

func checkDecimals(decimals int) error {
	if decimals < 0 || decimals > MaxDecimals {
		return fmt.Errorf("%w: %d", ErrInvalidDecimals, decimals)
	}
	return nil
}
