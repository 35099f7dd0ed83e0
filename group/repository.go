package group

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// EventChecker guards member removal: a member referenced by any ledger
// event can't be deleted. Implemented by the ledger repository.
type EventChecker interface {
	HasMemberEvents(ctx context.Context, groupID, memberID uuid.UUID) (bool, error)
}

type Repository interface {
	Create(ctx context.Context, g *Group) error
	GetByID(ctx context.Context, id uuid.UUID) (*Group, error)
	List(ctx context.Context) ([]Group, error)
	Rename(ctx context.Context, id uuid.UUID, name string) error
	Delete(ctx context.Context, id uuid.UUID) error
	SetSimplifyDebts(ctx context.Context, id uuid.UUID, simplify bool) error
	AddMember(ctx context.Context, m *Member) error
	RemoveMember(ctx context.Context, groupID, memberID uuid.UUID) error
	ListMembers(ctx context.Context, groupID uuid.UUID) ([]Member, error)
	MemberIDs(ctx context.Context, groupID uuid.UUID) (map[uuid.UUID]bool, error)
}

type repository struct {
	db     *sql.DB
	events EventChecker
}

func NewRepository(db *sql.DB, events EventChecker) *repository {
	return &repository{db: db, events: events}
}

func (r *repository) Create(ctx context.Context, g *Group) error {
	query := `INSERT INTO groups (id, name, simplify_debts, created_by, created_at) VALUES ($1, $2, $3, $4, $5)`
	_, err := r.db.ExecContext(ctx, query, g.ID, g.Name, g.SimplifyDebts, g.CreatedBy, g.CreatedAt)
	if err != nil {
		return fmt.Errorf("inserting group: %w", err)
	}
	return nil
}

func (r *repository) GetByID(ctx context.Context, id uuid.UUID) (*Group, error) {
	query := `SELECT id, name, simplify_debts, created_by, created_at FROM groups WHERE id = $1`

	var g Group
	err := r.db.QueryRowContext(ctx, query, id).Scan(&g.ID, &g.Name, &g.SimplifyDebts, &g.CreatedBy, &g.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("querying group: %w", err)
	}

	return &g, nil
}

func (r *repository) List(ctx context.Context) ([]Group, error) {
	query := `SELECT id, name, simplify_debts, created_by, created_at FROM groups ORDER BY created_at ASC`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	groups := make([]Group, 0)
	for rows.Next() {
		var g Group
		if err := rows.Scan(&g.ID, &g.Name, &g.SimplifyDebts, &g.CreatedBy, &g.CreatedAt); err != nil {
			return nil, err
		}
		groups = append(groups, g)
	}

	return groups, rows.Err()
}

func (r *repository) Rename(ctx context.Context, id uuid.UUID, name string) error {
	result, err := r.db.ExecContext(ctx, `UPDATE groups SET name = $1 WHERE id = $2`, name, id)
	if err != nil {
		return err
	}
	return checkFound(result)
}

func (r *repository) Delete(ctx context.Context, id uuid.UUID) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `DELETE FROM ledger_event_participants
	                              WHERE event_id IN (SELECT id FROM ledger_events WHERE group_id = $1)`, id)
	if err != nil {
		return fmt.Errorf("deleting event participants: %w", err)
	}
	_, err = tx.ExecContext(ctx, `DELETE FROM ledger_events WHERE group_id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting ledger events: %w", err)
	}
	_, err = tx.ExecContext(ctx, `DELETE FROM group_members WHERE group_id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting members: %w", err)
	}

	result, err := tx.ExecContext(ctx, `DELETE FROM groups WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting group: %w", err)
	}
	if err := checkFound(result); err != nil {
		return err
	}

	return tx.Commit()
}

func (r *repository) SetSimplifyDebts(ctx context.Context, id uuid.UUID, simplify bool) error {
	result, err := r.db.ExecContext(ctx, `UPDATE groups SET simplify_debts = $1 WHERE id = $2`, simplify, id)
	if err != nil {
		return err
	}
	return checkFound(result)
}

func (r *repository) AddMember(ctx context.Context, m *Member) error {
	query := `INSERT INTO group_members (id, group_id, name, joined_at) VALUES ($1, $2, $3, $4)`
	_, err := r.db.ExecContext(ctx, query, m.ID, m.GroupID, m.Name, m.JoinedAt)
	if err != nil {
		// unique (group_id, name)
		if isUniqueViolation(err) {
			return ErrDuplicateMember
		}
		return fmt.Errorf("inserting member: %w", err)
	}
	return nil
}

func (r *repository) RemoveMember(ctx context.Context, groupID, memberID uuid.UUID) error {
	referenced, err := r.events.HasMemberEvents(ctx, groupID, memberID)
	if err != nil {
		return err
	}
	if referenced {
		return ErrMemberInUse
	}

	result, err := r.db.ExecContext(ctx, `DELETE FROM group_members WHERE id = $1 AND group_id = $2`, memberID, groupID)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrMemberNotFound
	}
	return nil
}

func (r *repository) ListMembers(ctx context.Context, groupID uuid.UUID) ([]Member, error) {
	query := `SELECT id, group_id, name, joined_at FROM group_members WHERE group_id = $1 ORDER BY joined_at ASC, id ASC`
	rows, err := r.db.QueryContext(ctx, query, groupID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	members := make([]Member, 0)
	for rows.Next() {
		var m Member
		if err := rows.Scan(&m.ID, &m.GroupID, &m.Name, &m.JoinedAt); err != nil {
			return nil, err
		}
		members = append(members, m)
	}

	return members, rows.Err()
}

func (r *repository) MemberIDs(ctx context.Context, groupID uuid.UUID) (map[uuid.UUID]bool, error) {
	members, err := r.ListMembers(ctx, groupID)
	if err != nil {
		return nil, err
	}

	ids := make(map[uuid.UUID]bool, len(members))
	for _, m := range members {
		ids[m.ID] = true
	}
	return ids, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

func checkFound(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
