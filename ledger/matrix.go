package ledger

import (
	"bytes"

	"github.com/google/uuid"
)

// Pair is an unordered member pair in canonical form (A sorts before B),
// so each pair is stored exactly once regardless of direction.
type Pair struct {
	A uuid.UUID
	B uuid.UUID
}

func pairOf(x, y uuid.UUID) Pair {
	if bytes.Compare(x[:], y[:]) <= 0 {
		return Pair{A: x, B: y}
	}
	return Pair{A: y, B: x}
}

// DebtMatrix holds the net debt of every touched member pair in cents.
// A positive entry means Pair.A owes Pair.B, negative the reverse.
type DebtMatrix map[Pair]int64

func (m DebtMatrix) add(debtor, creditor uuid.UUID, cents int64) {
	p := pairOf(debtor, creditor)
	if p.A == debtor {
		m[p] += cents
	} else {
		m[p] -= cents
	}
}

// Net reports how many cents x owes y. Negative means y owes x.
func (m DebtMatrix) Net(x, y uuid.UUID) int64 {
	p := pairOf(x, y)
	if p.A == x {
		return m[p]
	}
	return -m[p]
}

// ComputeDebtMatrix replays the ledger into pairwise net debts. For an
// expense, every participant other than the payer owes the payer their
// share; the payer's own share cancels out and is skipped. A transfer
// pays down what the sender owed the receiver, going negative if the
// sender paid more than was owed.
//
// Final totals are order independent, but share rounding depends on the
// participant ordering recorded on each expense, so replaying the same
// event log always yields the same matrix.
func ComputeDebtMatrix(events []Event) (DebtMatrix, error) {
	matrix := make(DebtMatrix)

	for _, event := range events {
		switch event.Kind {
		case KindExpense:
			exp := event.Expense
			shares, err := SplitEqual(exp.AmountCents, exp.ParticipantIDs)
			if err != nil {
				return nil, err
			}
			for _, share := range shares {
				if share.MemberID == exp.PayerID {
					continue
				}
				matrix.add(share.MemberID, exp.PayerID, share.AmountCents)
			}
		case KindTransfer:
			tr := event.Transfer
			matrix.add(tr.FromID, tr.ToID, -tr.AmountCents)
		}
	}

	return matrix, nil
}
