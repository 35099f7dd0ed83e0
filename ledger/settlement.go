package ledger

import (
	"bytes"
	"sort"

	"github.com/google/uuid"
)

// Settlement is a proposed payment that reduces a debt.
type Settlement struct {
	FromID      uuid.UUID
	ToID        uuid.UUID
	AmountCents int64
}

// StableSettlements emits one row per member pair with a nonzero net debt,
// directed from the debtor to the creditor. Debts never merge across
// pairs, so a given debt stays attached to the same two members for as
// long as it exists. Rows are ordered by (from, to) so identical ledger
// state always produces the identical list.
func StableSettlements(matrix DebtMatrix) []Settlement {
	settlements := make([]Settlement, 0, len(matrix))

	for pair, net := range matrix {
		switch {
		case net > 0:
			settlements = append(settlements, Settlement{FromID: pair.A, ToID: pair.B, AmountCents: net})
		case net < 0:
			settlements = append(settlements, Settlement{FromID: pair.B, ToID: pair.A, AmountCents: -net})
		}
	}

	sort.Slice(settlements, func(i, j int) bool {
		if c := bytes.Compare(settlements[i].FromID[:], settlements[j].FromID[:]); c != 0 {
			return c < 0
		}
		return bytes.Compare(settlements[i].ToID[:], settlements[j].ToID[:]) < 0
	})

	return settlements
}

type party struct {
	id    uuid.UUID
	cents int64 // magnitude of the remaining debt or credit
}

// SimplifiedSettlements runs the greedy min-cash-flow matching over net
// balances: repeatedly pair the largest debtor with the largest creditor
// (ties broken by member id ascending) and transfer the smaller of the two
// magnitudes. Produces at most n-1 rows for n members with nonzero
// balance. The row count is minimal for this greedy formulation, though
// not a guaranteed global minimum for every input.
func SimplifiedSettlements(balances map[uuid.UUID]int64) []Settlement {
	var debtors, creditors []party
	for id, cents := range balances {
		switch {
		case cents < 0:
			debtors = append(debtors, party{id: id, cents: -cents})
		case cents > 0:
			creditors = append(creditors, party{id: id, cents: cents})
		}
	}

	var settlements []Settlement
	for len(debtors) > 0 && len(creditors) > 0 {
		d := largest(debtors)
		c := largest(creditors)

		amount := min(debtors[d].cents, creditors[c].cents)
		settlements = append(settlements, Settlement{
			FromID:      debtors[d].id,
			ToID:        creditors[c].id,
			AmountCents: amount,
		})

		debtors[d].cents -= amount
		creditors[c].cents -= amount
		if debtors[d].cents == 0 {
			debtors = append(debtors[:d], debtors[d+1:]...)
		}
		if creditors[c].cents == 0 {
			creditors = append(creditors[:c], creditors[c+1:]...)
		}
	}

	return settlements
}

func largest(parties []party) int {
	best := 0
	for i := 1; i < len(parties); i++ {
		if parties[i].cents > parties[best].cents {
			best = i
			continue
		}
		if parties[i].cents == parties[best].cents &&
			bytes.Compare(parties[i].id[:], parties[best].id[:]) < 0 {
			best = i
		}
	}
	return best
}
