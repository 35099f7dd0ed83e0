package ledger

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCentsFromDecimal(t *testing.T) {
	tests := []struct {
		name      string
		amount    string
		want      int64
		wantError bool
	}{
		{name: "whole dollars", amount: "30", want: 3000},
		{name: "with cents", amount: "12.34", want: 1234},
		{name: "single decimal place", amount: "0.5", want: 50},
		{name: "one cent", amount: "0.01", want: 1},
		{name: "zero", amount: "0", wantError: true},
		{name: "negative", amount: "-1.50", wantError: true},
		{name: "sub-cent precision", amount: "1.005", wantError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cents, err := CentsFromDecimal(decimal.RequireFromString(tt.amount))
			if tt.wantError {
				assert.ErrorIs(t, err, ErrInvalidAmount)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, cents)
		})
	}
}

func TestDecimalFromCents(t *testing.T) {
	assert.Equal(t, "12.34", DecimalFromCents(1234).StringFixed(2))
	assert.Equal(t, "-0.05", DecimalFromCents(-5).StringFixed(2))
	assert.Equal(t, "0.00", DecimalFromCents(0).StringFixed(2))
}

func TestMoneyRoundTrip(t *testing.T) {
	for _, cents := range []int64{1, 99, 100, 101, 123456789} {
		got, err := CentsFromDecimal(DecimalFromCents(cents))
		require.NoError(t, err)
		assert.Equal(t, cents, got)
	}
}
