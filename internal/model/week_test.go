package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseWeek(t *testing.T) {
	for _, w := range []int{18, 22, 26, 30, 34, 38} {
		fw, err := ParseWeek(w)
		require.NoError(t, err)
		assert.Equal(t, ForecastWeek(w), fw)
	}
	for _, w := range []int{0, 17, 20, 39} {
		_, err := ParseWeek(w)
		assert.Error(t, err, "week %d", w)
	}
}

func TestParseWeeks_SortsAndDedupes(t *testing.T) {
	got, err := ParseWeeks([]int{30, 18, 30, 22})
	require.NoError(t, err)
	assert.Equal(t, []ForecastWeek{18, 22, 30}, got)
}

func TestParseWeeks_Empty(t *testing.T) {
	_, err := ParseWeeks(nil)
	assert.Error(t, err)
}
