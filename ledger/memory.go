package ledger

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRepository keeps the event log in process memory. It backs tests
// and local development; the postgres repository is the production store.
type MemoryRepository struct {
	mu     sync.RWMutex
	events []Event
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{}
}

func (r *MemoryRepository) AppendExpense(ctx context.Context, expense *Expense) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	clone := *expense
	r.events = append(r.events, Event{Kind: KindExpense, Expense: &clone})
	return nil
}

func (r *MemoryRepository) ReplaceExpense(ctx context.Context, expense *Expense) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, event := range r.events {
		if event.Kind == KindExpense && event.Expense.ID == expense.ID && event.Expense.GroupID == expense.GroupID {
			clone := *expense
			r.events[i] = Event{Kind: KindExpense, Expense: &clone}
			return nil
		}
	}
	return ErrNotFound
}

func (r *MemoryRepository) DeleteExpense(ctx context.Context, groupID, expenseID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, event := range r.events {
		if event.Kind == KindExpense && event.Expense.ID == expenseID && event.Expense.GroupID == groupID {
			r.events = append(r.events[:i], r.events[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

func (r *MemoryRepository) AppendTransfer(ctx context.Context, transfer *Transfer) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	clone := *transfer
	r.events = append(r.events, Event{Kind: KindTransfer, Transfer: &clone})
	return nil
}

func (r *MemoryRepository) GetExpense(ctx context.Context, groupID, expenseID uuid.UUID) (*Expense, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, event := range r.events {
		if event.Kind == KindExpense && event.Expense.ID == expenseID && event.Expense.GroupID == groupID {
			clone := *event.Expense
			return &clone, nil
		}
	}
	return nil, ErrNotFound
}

func (r *MemoryRepository) ListEvents(ctx context.Context, groupID uuid.UUID) ([]Event, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	events := make([]Event, 0)
	for _, event := range r.events {
		if eventGroup(event) == groupID {
			events = append(events, event)
		}
	}
	sort.SliceStable(events, func(i, j int) bool {
		return eventTime(events[i]).Before(eventTime(events[j]))
	})
	return events, nil
}

func (r *MemoryRepository) ListExpenses(ctx context.Context, groupID uuid.UUID) ([]Expense, error) {
	events, err := r.ListEvents(ctx, groupID)
	if err != nil {
		return nil, err
	}

	expenses := make([]Expense, 0, len(events))
	for _, event := range events {
		if event.Kind == KindExpense {
			expenses = append(expenses, *event.Expense)
		}
	}
	return expenses, nil
}

func (r *MemoryRepository) HasMemberEvents(ctx context.Context, groupID, memberID uuid.UUID) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, event := range r.events {
		if eventGroup(event) != groupID {
			continue
		}
		switch event.Kind {
		case KindExpense:
			if event.Expense.PayerID == memberID {
				return true, nil
			}
			for _, id := range event.Expense.ParticipantIDs {
				if id == memberID {
					return true, nil
				}
			}
		case KindTransfer:
			if event.Transfer.FromID == memberID || event.Transfer.ToID == memberID {
				return true, nil
			}
		}
	}
	return false, nil
}

func eventGroup(e Event) uuid.UUID {
	if e.Kind == KindTransfer {
		return e.Transfer.GroupID
	}
	return e.Expense.GroupID
}

func eventTime(e Event) time.Time {
	if e.Kind == KindTransfer {
		return e.Transfer.CreatedAt
	}
	return e.Expense.CreatedAt
}
