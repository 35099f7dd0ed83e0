// Package auditlog keeps an asynchronous trail of ledger mutations:
// who changed what, in which group, and when. It observes the system
// and never participates in balance computation.
package auditlog

import (
	"context"
	"time"

	"github.com/google/uuid"
)

const (
	ActionExpenseCreated     = "expense.created"
	ActionExpenseUpdated     = "expense.updated"
	ActionExpenseDeleted     = "expense.deleted"
	ActionSettlementRecorded = "settlement.recorded"
	ActionSimplifyToggled    = "group.simplify_toggled"
	ActionMemberAdded        = "member.added"
	ActionMemberRemoved      = "member.removed"
)

type Entry struct {
	ID        uuid.UUID     `json:"id,omitempty"`
	Action    string        `json:"action,omitempty"`
	ActorID   uuid.NullUUID `json:"actor_id,omitempty"`
	GroupID   uuid.NullUUID `json:"group_id,omitempty"`
	Data      any           `json:"data,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
}

type EntryOption func(*Entry)

func WithAction(action string) EntryOption {
	return func(e *Entry) {
		e.Action = action
	}
}

func WithActor(actorID uuid.UUID) EntryOption {
	return func(e *Entry) {
		e.ActorID = uuid.NullUUID{UUID: actorID, Valid: true}
	}
}

func WithGroup(groupID uuid.UUID) EntryOption {
	return func(e *Entry) {
		e.GroupID = uuid.NullUUID{UUID: groupID, Valid: true}
	}
}

func WithData(data any) EntryOption {
	return func(e *Entry) {
		e.Data = data
	}
}

func NewEntry(opts ...EntryOption) Entry {
	e := Entry{
		ID:        uuid.New(),
		CreatedAt: time.Now().UTC(),
	}
	for _, opt := range opts {
		opt(&e)
	}
	return e
}

type Logger interface {
	Save(ctx context.Context, e Entry) error
}

// Reader serves the activity feed: a group's trail, newest first.
type Reader interface {
	ListByGroup(ctx context.Context, groupID uuid.UUID, limit int) ([]Entry, error)
}
