package ledger

import "github.com/google/uuid"

// ComputeBalances reduces the pairwise matrix to one net position per
// member, in cents. Positive = owed money, negative = owes money. Only
// members touched by at least one pair appear; the values always sum to
// zero because every pair entry credits and debits the same amount.
func ComputeBalances(matrix DebtMatrix) map[uuid.UUID]int64 {
	balances := make(map[uuid.UUID]int64)

	for pair, net := range matrix {
		// net > 0: A owes B
		balances[pair.A] -= net
		balances[pair.B] += net
	}

	return balances
}
