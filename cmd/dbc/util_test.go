package main

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAmounts(t *testing.T) {
	t.Run("Parse", func(t *testing.T) {
		tests := []struct {
			in       string
			expected uint64
		}{
			{"1", 100000000},
			{"0.00000001", 1},
			{"21000000", 2100000000000000},
			{" 2.5 ", 250000000},
		}
		for _, tt := range tests {
			amount, err := parseAmount(tt.in)
			require.NoError(t, err)
			require.Equal(t, tt.expected, amount)
		}
	})

	t.Run("ParseInvalid", func(t *testing.T) {
		for _, in := range []string{
			"", "abc", "0", "-1", "0.000000001", "999999999999999999999",
		} {
			_, err := parseAmount(in)
			require.Error(t, err, in)
		}
	})

	t.Run("Format", func(t *testing.T) {
		require.Equal(t, "0.00000001", formatAmount(1))
		require.Equal(t, "21000000.00000000", formatAmount(2100000000000000))
		require.Equal(t, "0.00000000", formatAmount(0))
	})
}
