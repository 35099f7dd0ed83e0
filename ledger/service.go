package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/tallyhq/tally/grouplock"
)

// MemberDirectory tells the service who currently belongs to a group.
// Implemented by the group repository.
type MemberDirectory interface {
	MemberIDs(ctx context.Context, groupID uuid.UUID) (map[uuid.UUID]bool, error)
}

// Service owns the group-scoped ledger aggregate. Every mutation flows
// through here, under the per-group lock, so concurrent writers to the
// same group can't interleave. Reads replay the event log on demand;
// balances are never cached.
type Service struct {
	repo    Repository
	members MemberDirectory
	locks   *grouplock.Registry
}

func NewService(repo Repository, members MemberDirectory, locks *grouplock.Registry) *Service {
	return &Service{repo: repo, members: members, locks: locks}
}

// AddExpense validates and appends an EXPENSE event. Events referencing
// a payer or participant outside the current membership are rejected
// here, at append time, never dropped during replay.
func (s *Service) AddExpense(ctx context.Context, groupID uuid.UUID, in ExpenseInput) (*Expense, error) {
	expense, err := NewExpense(groupID, in)
	if err != nil {
		return nil, err
	}
	if err := s.checkMembers(ctx, groupID, expense.PayerID, expense.ParticipantIDs...); err != nil {
		return nil, err
	}

	release, err := s.lock(ctx, groupID)
	if err != nil {
		return nil, err
	}
	defer release()

	if err := s.repo.AppendExpense(ctx, expense); err != nil {
		return nil, err
	}
	return expense, nil
}

// UpdateExpense replaces the whole expense record, keeping its id and
// original timestamp. For replay purposes this is a delete plus reinsert.
func (s *Service) UpdateExpense(ctx context.Context, groupID, expenseID uuid.UUID, in ExpenseInput) (*Expense, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	if err := s.checkMembers(ctx, groupID, in.PayerID, in.ParticipantIDs...); err != nil {
		return nil, err
	}

	release, err := s.lock(ctx, groupID)
	if err != nil {
		return nil, err
	}
	defer release()

	existing, err := s.repo.GetExpense(ctx, groupID, expenseID)
	if err != nil {
		return nil, err
	}

	expense := &Expense{
		ID:             existing.ID,
		GroupID:        groupID,
		Description:    in.Description,
		AmountCents:    in.AmountCents,
		PayerID:        in.PayerID,
		ParticipantIDs: in.ParticipantIDs,
		Category:       in.Category,
		Notes:          in.Notes,
		CreatedAt:      existing.CreatedAt,
	}
	if err := s.repo.ReplaceExpense(ctx, expense); err != nil {
		return nil, err
	}
	return expense, nil
}

// DeleteExpense removes the event from all future replays; balances
// recompute as if it had never existed.
func (s *Service) DeleteExpense(ctx context.Context, groupID, expenseID uuid.UUID) error {
	release, err := s.lock(ctx, groupID)
	if err != nil {
		return err
	}
	defer release()

	return s.repo.DeleteExpense(ctx, groupID, expenseID)
}

// RecordSettlement appends a TRANSFER event marking a debt as paid. The
// amount is trusted as supplied; it is not validated against the
// outstanding debt, and repeated calls record repeated transfers.
func (s *Service) RecordSettlement(ctx context.Context, groupID, from, to uuid.UUID, amountCents int64) (*Transfer, error) {
	transfer, err := NewTransfer(groupID, from, to, amountCents)
	if err != nil {
		return nil, err
	}
	if err := s.checkMembers(ctx, groupID, from, to); err != nil {
		return nil, err
	}

	release, err := s.lock(ctx, groupID)
	if err != nil {
		return nil, err
	}
	defer release()

	if err := s.repo.AppendTransfer(ctx, transfer); err != nil {
		return nil, err
	}
	return transfer, nil
}

// Balances replays the group's ledger into one net position per member.
func (s *Service) Balances(ctx context.Context, groupID uuid.UUID) (map[uuid.UUID]int64, error) {
	matrix, err := s.debtMatrix(ctx, groupID)
	if err != nil {
		return nil, err
	}
	return ComputeBalances(matrix), nil
}

// Settlements derives the payment list for the group, simplified or
// stable depending on the flag. A pair whose net debt reached zero simply
// stops appearing.
func (s *Service) Settlements(ctx context.Context, groupID uuid.UUID, simplified bool) ([]Settlement, error) {
	matrix, err := s.debtMatrix(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if simplified {
		return SimplifiedSettlements(ComputeBalances(matrix)), nil
	}
	return StableSettlements(matrix), nil
}

func (s *Service) Expenses(ctx context.Context, groupID uuid.UUID) ([]Expense, error) {
	return s.repo.ListExpenses(ctx, groupID)
}

// ForgetGroup drops the deleted group's lock from the registry.
func (s *Service) ForgetGroup(groupID uuid.UUID) {
	s.locks.Forget(groupID)
}

func (s *Service) debtMatrix(ctx context.Context, groupID uuid.UUID) (DebtMatrix, error) {
	events, err := s.repo.ListEvents(ctx, groupID)
	if err != nil {
		return nil, err
	}
	return ComputeDebtMatrix(events)
}

func (s *Service) checkMembers(ctx context.Context, groupID uuid.UUID, first uuid.UUID, rest ...uuid.UUID) error {
	members, err := s.members.MemberIDs(ctx, groupID)
	if err != nil {
		return err
	}

	for _, id := range append([]uuid.UUID{first}, rest...) {
		if !members[id] {
			return fmt.Errorf("%w: %s", ErrInvalidMember, id)
		}
	}
	return nil
}

func (s *Service) lock(ctx context.Context, groupID uuid.UUID) (func(), error) {
	release, err := s.locks.Acquire(ctx, groupID)
	if err != nil {
		if errors.Is(err, grouplock.ErrContended) {
			return nil, ErrLockContention
		}
		return nil, err
	}
	return release, nil
}
