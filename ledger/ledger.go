package ledger

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrInvalidAmount     = errors.New("amount must be positive")
	ErrEmptyDescription  = errors.New("description can't be empty")
	ErrEmptyParticipants = errors.New("expense needs at least one participant")
	ErrInvalidMember     = errors.New("member is not part of the group")
	ErrSelfTransfer      = errors.New("can't settle with yourself")
	ErrNotFound          = errors.New("ledger event not found")
	ErrLockContention    = errors.New("group ledger is busy, retry")
	ErrRoundingOverflow  = errors.New("shares don't sum to the expense amount")
)

// ExpenseInput carries the caller-supplied fields of a new or replaced expense.
type ExpenseInput struct {
	Description    string
	AmountCents    int64
	PayerID        uuid.UUID
	ParticipantIDs []uuid.UUID
	Category       string
	Notes          string
}

func (in ExpenseInput) validate() error {
	if strings.TrimSpace(in.Description) == "" {
		return ErrEmptyDescription
	}
	if in.AmountCents <= 0 {
		return ErrInvalidAmount
	}
	if len(in.ParticipantIDs) == 0 {
		return ErrEmptyParticipants
	}
	return nil
}

// NewExpense validates the input and builds an EXPENSE event record.
func NewExpense(groupID uuid.UUID, in ExpenseInput) (*Expense, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	return &Expense{
		ID:             uuid.New(),
		GroupID:        groupID,
		Description:    in.Description,
		AmountCents:    in.AmountCents,
		PayerID:        in.PayerID,
		ParticipantIDs: in.ParticipantIDs,
		Category:       in.Category,
		Notes:          in.Notes,
		CreatedAt:      time.Now().UTC(),
	}, nil
}

// NewTransfer validates and builds a TRANSFER event record. The amount is
// taken as supplied and is not checked against the outstanding debt between
// the pair; overpaying simply becomes a balance in the payer's favor.
func NewTransfer(groupID, from, to uuid.UUID, amountCents int64) (*Transfer, error) {
	if amountCents <= 0 {
		return nil, ErrInvalidAmount
	}
	if from == to {
		return nil, ErrSelfTransfer
	}

	return &Transfer{
		ID:          uuid.New(),
		GroupID:     groupID,
		FromID:      from,
		ToID:        to,
		AmountCents: amountCents,
		CreatedAt:   time.Now().UTC(),
	}, nil
}
