package test

import (
	"math/rand/v2"
	"strings"
)

const (
	asciiLetters = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	base58       = "123456789ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnopqrstuvwxyz"
	hexDigits    = "0123456789abcdef"
)

// RandomASCIIString returns a pseudo-random ASCII string within the provided bounds.
// When maxLen equals minLen the resulting string always has that exact length.
func RandomASCIIString(minLen, maxLen int) string {
	if minLen <= 0 {
		minLen = 1
	}
	if maxLen < minLen {
		maxLen = minLen
	}
	length := minLen + rand.IntN(maxLen-minLen+1)
	return randomFrom(asciiLetters, length)
}

// RandomDigest returns a base58 string shaped like a Sui transaction digest.
func RandomDigest() string {
	return randomFrom(base58, 44)
}

// RandomSuiAddress returns a normalised 32-byte Sui address.
func RandomSuiAddress() string {
	return "0x" + randomFrom(hexDigits, 64)
}

func randomFrom(alphabet string, length int) string {
	var b strings.Builder
	b.Grow(length)
	for range length {
		b.WriteByte(alphabet[rand.IntN(len(alphabet))])
	}
	return b.String()
}
