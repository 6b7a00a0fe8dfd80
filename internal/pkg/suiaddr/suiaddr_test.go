package suiaddr

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	domainErrors "github.com/polkiloo/offramp/internal/domain/errors"
	"github.com/polkiloo/offramp/internal/test"
)

func TestNormalize(t *testing.T) {
	full := "0x" + strings.Repeat("ab", 32)
	cases := []struct {
		in   string
		want string
	}{
		{"0x2", "0x" + strings.Repeat("0", 63) + "2"},
		{"2", "0x" + strings.Repeat("0", 63) + "2"},
		{"bad", "0x" + strings.Repeat("0", 61) + "bad"},
		{strings.ToUpper(full[2:]), full},
		{"  " + full + " ", full},
	}
	for _, tc := range cases {
		got, err := Normalize(tc.in)
		require.NoError(t, err, tc.in)
		require.Equal(t, tc.want, got, tc.in)
	}
}

func TestNormalizeRejects(t *testing.T) {
	for _, in := range []string{"", "0x", "0xzz", "0xg1", "0x" + strings.Repeat("1", 65), "hello"} {
		_, err := Normalize(in)
		require.ErrorIs(t, err, domainErrors.ErrInvalidAddress, in)
	}
}

func TestEqual(t *testing.T) {
	require.True(t, Equal("0x02", "0x"+strings.Repeat("0", 63)+"2"))
	require.True(t, Equal("BAD", "0xbad"))
	require.False(t, Equal("0x1", "0x2"))
	require.False(t, Equal("xyz", "xyz"), "invalid addresses must never match")
	require.False(t, Equal("0xg1", "0xg1"), "invalid addresses must never match")
}

func TestNormalizeIsStableForCanonicalAddresses(t *testing.T) {
	for range 32 {
		addr := test.RandomSuiAddress()
		got, err := Normalize(strings.ToUpper(addr[2:]))
		require.NoError(t, err)
		require.Equal(t, addr, got)
	}
}

func TestNormalizeCoinType(t *testing.T) {
	got, err := NormalizeCoinType("0x2::sui::SUI")
	require.NoError(t, err)
	require.Equal(t, "0x"+strings.Repeat("0", 63)+"2::sui::SUI", got)

	for _, in := range []string{"0x2::sui", "sui::SUI::X", "0x2::::SUI", ""} {
		_, err := NormalizeCoinType(in)
		require.Error(t, err, in)
	}
}
