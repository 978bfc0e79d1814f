package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRange(t *testing.T) {
	tests := []struct {
		raw     string
		want    Range
		wantErr bool
	}{
		{"weeks", RangeWeeks, false},
		{" Months ", RangeMonths, false},
		{"LIFETIME", RangeLifetime, false},
		{"days", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := ParseRange(tt.raw)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestOrderRanges(t *testing.T) {
	got := OrderRanges([]Range{RangeLifetime, RangeWeeks, RangeLifetime})
	assert.Equal(t, []Range{RangeWeeks, RangeLifetime}, got)
	assert.Empty(t, OrderRanges(nil))
}
