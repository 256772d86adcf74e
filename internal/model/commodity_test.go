package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCommodity(t *testing.T) {
	tests := []struct {
		input string
		want  Commodity
	}{
		{"corn", Corn},
		{"Soybeans", Soybeans},
		{"  SOYBEANS ", Soybeans},
		{"winter wheat", WinterWheat},
		{"Spring-Wheat", SpringWheat},
		{"sorghum", Sorghum},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseCommodity(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseCommodity_Typo(t *testing.T) {
	_, err := ParseCommodity("soybean")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported commodity")
	assert.Contains(t, err.Error(), "soybeans")
}

func TestCommodityNames_Sorted(t *testing.T) {
	names := CommodityNames()
	assert.Len(t, names, 6)
	assert.IsIncreasing(t, names)
}

func TestParseBenchmark(t *testing.T) {
	for _, b := range AllBenchmarks {
		got, err := ParseBenchmark(string(b))
		require.NoError(t, err)
		assert.Equal(t, b, got)
	}
	_, err := ParseBenchmark("persistence")
	assert.Error(t, err)
}
