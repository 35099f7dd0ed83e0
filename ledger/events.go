package ledger

import (
	"time"

	"github.com/google/uuid"
)

type Kind string

const (
	KindExpense  Kind = "expense"
	KindTransfer Kind = "transfer"
)

// Expense is a shared cost paid by one member and split among participants.
// Immutable once appended, except through a whole-record replacement.
type Expense struct {
	ID             uuid.UUID   `json:"id"`
	GroupID        uuid.UUID   `json:"group_id"`
	Description    string      `json:"description"`
	AmountCents    int64       `json:"amount_cents"` // Amount in cents
	PayerID        uuid.UUID   `json:"payer_id"`
	ParticipantIDs []uuid.UUID `json:"participant_ids"` // Declaration order drives remainder distribution
	Category       string      `json:"category,omitempty"`
	Notes          string      `json:"notes,omitempty"`
	CreatedAt      time.Time   `json:"created_at"`
}

// Transfer records a payment from one member to another, produced only by
// settlement recording. Never edited or deleted.
type Transfer struct {
	ID          uuid.UUID `json:"id"`
	GroupID     uuid.UUID `json:"group_id"`
	FromID      uuid.UUID `json:"from_id"`
	ToID        uuid.UUID `json:"to_id"`
	AmountCents int64     `json:"amount_cents"`
	CreatedAt   time.Time `json:"created_at"`
}

// Event is one entry of a group's append-only ledger. Exactly one of
// Expense or Transfer is set, matching Kind.
type Event struct {
	Kind     Kind
	Expense  *Expense
	Transfer *Transfer
}
