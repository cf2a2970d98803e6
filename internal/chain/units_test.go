package chain

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseUnits(t *testing.T) {
	tests := []struct {
		input    string
		decimals int
		expected string
		wantErr  bool
	}{
		{"1", 18, "1000000000000000000", false},
		{"5.5", 18, "5500000000000000000", false},
		{"0.000000000000000001", 18, "1", false},
		{" 100 ", 6, "100000000", false},
		{".5", 2, "50", false},
		{"90", 0, "90", false},
		{"1.0000001", 6, "", true},
		{"", 18, "", true},
		{".", 18, "", true},
		{"1.2.3", 18, "", true},
		{"-1", 18, "", true},
		{"abc", 18, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseUnits(tt.input, tt.decimals)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got.String())
		})
	}
}

func TestFormatUnits(t *testing.T) {
	tests := []struct {
		input    string
		decimals int
		expected string
	}{
		{"1000000000000000000", 18, "1"},
		{"5500000000000000000", 18, "5.5"},
		{"1", 18, "0.000000000000000001"},
		{"0", 18, "0"},
		{"90", 0, "90"},
		{"-150", 2, "-1.5"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			v, ok := new(big.Int).SetString(tt.input, 10)
			require.True(t, ok)
			assert.Equal(t, tt.expected, FormatUnits(v, tt.decimals))
		})
	}
	assert.Equal(t, "0", FormatUnits(nil, 18))
}

func TestUnitsRoundTrip(t *testing.T) {
	for _, s := range []string{"0.1", "12.345", "1000", "0.000001"} {
		v, err := ParseUnits(s, 6)
		require.NoError(t, err)
		assert.Equal(t, s, FormatUnits(v, 6))
	}
}
