package ledger

import "github.com/shopspring/decimal"

// CentsFromDecimal converts a caller-supplied decimal amount into integer
// cents. Amounts must be positive and carry at most two decimal places;
// everything past the boundary runs on int64 cents so binary floating
// point never touches the ledger.
func CentsFromDecimal(amount decimal.Decimal) (int64, error) {
	if !amount.IsPositive() {
		return 0, ErrInvalidAmount
	}

	cents := amount.Shift(2)
	if !cents.IsInteger() {
		return 0, ErrInvalidAmount
	}

	return cents.IntPart(), nil
}

// DecimalFromCents renders cents back to a display amount. Used only at
// serialization time.
func DecimalFromCents(cents int64) decimal.Decimal {
	return decimal.NewFromInt(cents).Shift(-2)
}
