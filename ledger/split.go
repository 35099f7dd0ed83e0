package ledger

import (
	"github.com/google/uuid"
)

// Share is one participant's portion of an expense.
type Share struct {
	MemberID    uuid.UUID
	AmountCents int64
}

// SplitEqual divides amountCents evenly among the members, handing the
// remainder out one cent at a time to the first members in declaration
// order. Given the same member ordering the result is always identical,
// and the shares sum exactly to amountCents.
func SplitEqual(amountCents int64, memberIDs []uuid.UUID) ([]Share, error) {
	numMembers := int64(len(memberIDs))
	if numMembers == 0 {
		return nil, ErrEmptyParticipants
	}
	if amountCents <= 0 {
		return nil, ErrInvalidAmount
	}

	base := amountCents / numMembers
	remainder := amountCents % numMembers

	shares := make([]Share, 0, numMembers)
	var total int64
	for i, id := range memberIDs {
		share := base
		// Distribute remainder to first few members
		if int64(i) < remainder {
			share++
		}
		shares = append(shares, Share{MemberID: id, AmountCents: share})
		total += share
	}

	if total != amountCents {
		return nil, ErrRoundingOverflow
	}

	return shares, nil
}
