package ledger

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Repository is the only way ledger events enter or leave storage. All
// mutation happens inside a single transaction, so a partially applied
// event is never visible to replay.
type Repository interface {
	AppendExpense(ctx context.Context, expense *Expense) error
	ReplaceExpense(ctx context.Context, expense *Expense) error
	DeleteExpense(ctx context.Context, groupID, expenseID uuid.UUID) error
	AppendTransfer(ctx context.Context, transfer *Transfer) error
	GetExpense(ctx context.Context, groupID, expenseID uuid.UUID) (*Expense, error)
	ListEvents(ctx context.Context, groupID uuid.UUID) ([]Event, error)
	ListExpenses(ctx context.Context, groupID uuid.UUID) ([]Expense, error)
	HasMemberEvents(ctx context.Context, groupID, memberID uuid.UUID) (bool, error)
}

type repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *repository {
	return &repository{db: db}
}

func (r *repository) AppendExpense(ctx context.Context, expense *Expense) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query := `INSERT INTO ledger_events (id, group_id, kind, description, amount_cents, payer_id, category, notes, created_at)
              VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err = tx.ExecContext(
		ctx,
		query,
		expense.ID,
		expense.GroupID,
		KindExpense,
		expense.Description,
		expense.AmountCents,
		expense.PayerID,
		nullable(expense.Category),
		nullable(expense.Notes),
		expense.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting expense event: %w", err)
	}

	if err := insertParticipants(ctx, tx, expense); err != nil {
		return err
	}

	return tx.Commit()
}

func (r *repository) ReplaceExpense(ctx context.Context, expense *Expense) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query := `UPDATE ledger_events
              SET description = $1, amount_cents = $2, payer_id = $3, category = $4, notes = $5
              WHERE id = $6 AND group_id = $7 AND kind = $8`
	result, err := tx.ExecContext(
		ctx,
		query,
		expense.Description,
		expense.AmountCents,
		expense.PayerID,
		nullable(expense.Category),
		nullable(expense.Notes),
		expense.ID,
		expense.GroupID,
		KindExpense,
	)
	if err != nil {
		return fmt.Errorf("updating expense event: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}

	_, err = tx.ExecContext(ctx, `DELETE FROM ledger_event_participants WHERE event_id = $1`, expense.ID)
	if err != nil {
		return fmt.Errorf("clearing old participants: %w", err)
	}
	if err := insertParticipants(ctx, tx, expense); err != nil {
		return err
	}

	return tx.Commit()
}

func (r *repository) DeleteExpense(ctx context.Context, groupID, expenseID uuid.UUID) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `DELETE FROM ledger_event_participants WHERE event_id = $1`, expenseID)
	if err != nil {
		return fmt.Errorf("deleting participants: %w", err)
	}

	query := `DELETE FROM ledger_events WHERE id = $1 AND group_id = $2 AND kind = $3`
	result, err := tx.ExecContext(ctx, query, expenseID, groupID, KindExpense)
	if err != nil {
		return fmt.Errorf("deleting expense event: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}

	return tx.Commit()
}

func (r *repository) AppendTransfer(ctx context.Context, transfer *Transfer) error {
	query := `INSERT INTO ledger_events (id, group_id, kind, description, amount_cents, from_id, to_id, created_at)
              VALUES ($1, $2, $3, '', $4, $5, $6, $7)`
	_, err := r.db.ExecContext(
		ctx,
		query,
		transfer.ID,
		transfer.GroupID,
		KindTransfer,
		transfer.AmountCents,
		transfer.FromID,
		transfer.ToID,
		transfer.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting transfer event: %w", err)
	}
	return nil
}

func (r *repository) GetExpense(ctx context.Context, groupID, expenseID uuid.UUID) (*Expense, error) {
	query := `SELECT id, group_id, description, amount_cents, payer_id, COALESCE(category, ''), COALESCE(notes, ''), created_at
              FROM ledger_events
              WHERE id = $1 AND group_id = $2 AND kind = $3`

	var expense Expense
	err := r.db.QueryRowContext(ctx, query, expenseID, groupID, KindExpense).Scan(
		&expense.ID,
		&expense.GroupID,
		&expense.Description,
		&expense.AmountCents,
		&expense.PayerID,
		&expense.Category,
		&expense.Notes,
		&expense.CreatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}

	participants, err := r.participantsFor(ctx, r.db, []uuid.UUID{expense.ID})
	if err != nil {
		return nil, err
	}
	expense.ParticipantIDs = participants[expense.ID]

	return &expense, nil
}

// ListEvents returns the group's full ledger in append order. The read
// runs at repeatable read so the events query and the participants query
// see one snapshot; read committed would snapshot per statement and a
// concurrent replace could interleave between the two.
func (r *repository) ListEvents(ctx context.Context, groupID uuid.UUID) ([]Event, error) {
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	query := `SELECT id, group_id, kind, description, amount_cents, payer_id, from_id, to_id, category, notes, created_at
              FROM ledger_events
              WHERE group_id = $1
              ORDER BY created_at ASC, id ASC`
	rows, err := tx.QueryContext(ctx, query, groupID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []Event
	var expenseIDs []uuid.UUID
	expenseIndex := make(map[uuid.UUID]*Expense)
	for rows.Next() {
		var (
			id, gid               uuid.UUID
			kind                  Kind
			description           string
			amountCents           int64
			payerID, fromID, toID uuid.NullUUID
			category, notes       sql.NullString
			createdAt             sql.NullTime
		)
		err := rows.Scan(&id, &gid, &kind, &description, &amountCents, &payerID, &fromID, &toID, &category, &notes, &createdAt)
		if err != nil {
			return nil, err
		}

		switch kind {
		case KindExpense:
			expense := &Expense{
				ID:          id,
				GroupID:     gid,
				Description: description,
				AmountCents: amountCents,
				PayerID:     payerID.UUID,
				Category:    category.String,
				Notes:       notes.String,
				CreatedAt:   createdAt.Time,
			}
			events = append(events, Event{Kind: KindExpense, Expense: expense})
			expenseIDs = append(expenseIDs, id)
			expenseIndex[id] = expense
		case KindTransfer:
			events = append(events, Event{Kind: KindTransfer, Transfer: &Transfer{
				ID:          id,
				GroupID:     gid,
				FromID:      fromID.UUID,
				ToID:        toID.UUID,
				AmountCents: amountCents,
				CreatedAt:   createdAt.Time,
			}})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	participants, err := r.participantsFor(ctx, tx, expenseIDs)
	if err != nil {
		return nil, err
	}
	for id, expense := range expenseIndex {
		expense.ParticipantIDs = participants[id]
	}

	return events, tx.Commit()
}

func (r *repository) ListExpenses(ctx context.Context, groupID uuid.UUID) ([]Expense, error) {
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

// HasMemberEvents reports whether any ledger event references the member,
// as payer, participant, or transfer party.
func (r *repository) HasMemberEvents(ctx context.Context, groupID, memberID uuid.UUID) (bool, error) {
	query := `SELECT EXISTS (
                  SELECT 1 FROM ledger_events e
                  LEFT JOIN ledger_event_participants p ON p.event_id = e.id
                  WHERE e.group_id = $1
                    AND (e.payer_id = $2 OR e.from_id = $2 OR e.to_id = $2 OR p.member_id = $2)
              )`

	var exists bool
	err := r.db.QueryRowContext(ctx, query, groupID, memberID).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (r *repository) participantsFor(ctx context.Context, q querier, eventIDs []uuid.UUID) (map[uuid.UUID][]uuid.UUID, error) {
	participants := make(map[uuid.UUID][]uuid.UUID, len(eventIDs))
	if len(eventIDs) == 0 {
		return participants, nil
	}

	query := `SELECT event_id, member_id
              FROM ledger_event_participants
              WHERE event_id = ANY($1)
              ORDER BY event_id, position`
	rows, err := q.QueryContext(ctx, query, pq.Array(eventIDs))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var eventID, memberID uuid.UUID
		if err := rows.Scan(&eventID, &memberID); err != nil {
			return nil, err
		}
		participants[eventID] = append(participants[eventID], memberID)
	}

	return participants, rows.Err()
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertParticipants(ctx context.Context, tx execer, expense *Expense) error {
	query := `INSERT INTO ledger_event_participants (event_id, member_id, position) VALUES ($1, $2, $3)`
	for i, memberID := range expense.ParticipantIDs {
		if _, err := tx.ExecContext(ctx, query, expense.ID, memberID, i); err != nil {
			return fmt.Errorf("inserting participant: %w", err)
		}
	}
	return nil
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
