// Package suiaddr validates and normalises Sui account addresses and coin types.
package suiaddr

import (
	"fmt"
	"strings"

	domainErrors "github.com/polkiloo/offramp/internal/domain/errors"
)

// AddressLength is the number of hex characters in a normalised address.
const AddressLength = 64

// Normalize returns address as 0x-prefixed, zero-padded, lowercase hex.
func Normalize(address string) (string, error) {
	hex := strings.ToLower(strings.TrimSpace(address))
	hex = strings.TrimPrefix(hex, "0x")
	if hex == "" || len(hex) > AddressLength {
		return "", fmt.Errorf("%w: %q", domainErrors.ErrInvalidAddress, address)
	}
	for _, r := range hex {
		if !isHex(r) {
			return "", fmt.Errorf("%w: %q", domainErrors.ErrInvalidAddress, address)
		}
	}
	return "0x" + strings.Repeat("0", AddressLength-len(hex)) + hex, nil
}

// Equal compares two addresses after normalisation. Invalid addresses never match.
func Equal(a, b string) bool {
	na, err := Normalize(a)
	if err != nil {
		return false
	}
	nb, err := Normalize(b)
	if err != nil {
		return false
	}
	return na == nb
}

// NormalizeCoinType normalises the package address of a coin type such as
// "0x2::sui::SUI". Module and struct names are case sensitive and kept as is.
func NormalizeCoinType(coinType string) (string, error) {
	parts := strings.SplitN(strings.TrimSpace(coinType), "::", 3)
	if len(parts) != 3 || parts[1] == "" || parts[2] == "" {
		return "", fmt.Errorf("%w: coin type %q", domainErrors.ErrInvalidAddress, coinType)
	}
	pkg, err := Normalize(parts[0])
	if err != nil {
		return "", fmt.Errorf("%w: coin type %q", domainErrors.ErrInvalidAddress, coinType)
	}
	return pkg + "::" + parts[1] + "::" + parts[2], nil
}

func isHex(r rune) bool {
	return (r >= '0' && r <= '9') || (r >= 'a' && r <= 'f')
}
