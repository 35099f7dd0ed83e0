package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrEmailExists   = errors.New("email already exists")
	ErrInvalidEmail  = errors.New("invalid email format")
	ErrBlankPassword = errors.New("password can't be blank")
	ErrBlankName     = errors.New("name can't be blank")
)

type repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *repository {
	return &repository{db: db}
}

func (r *repository) Register(ctx context.Context, email, name, password string) (*User, error) {
	if email == "" || !strings.Contains(email, "@") {
		return nil, ErrInvalidEmail
	}
	if name == "" {
		return nil, ErrBlankName
	}
	if password == "" {
		return nil, ErrBlankPassword
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	u := &User{
		ID:           uuid.New(),
		Email:        email,
		Name:         name,
		PasswordHash: string(hashedPassword),
		CreatedAt:    time.Now().UTC(),
	}

	query := `INSERT INTO users (id, email, name, password_hash, created_at) VALUES ($1, $2, $3, $4, $5)`
	_, err = r.db.ExecContext(ctx, query, u.ID, u.Email, u.Name, u.PasswordHash, u.CreatedAt)
	if err != nil {
		// unique email
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return nil, ErrEmailExists
		}
		return nil, fmt.Errorf("inserting user: %w", err)
	}

	return u, nil
}

func (r *repository) GetByEmail(ctx context.Context, email string) (*User, error) {
	return r.get(ctx, `WHERE email = $1`, email)
}

func (r *repository) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	return r.get(ctx, `WHERE id = $1`, id)
}

func (r *repository) get(ctx context.Context, where string, arg any) (*User, error) {
	query := `SELECT id, email, COALESCE(name, ''), current_group_id, password_hash, created_at FROM users ` + where

	var u User
	err := r.db.QueryRowContext(ctx, query, arg).Scan(
		&u.ID,
		&u.Email,
		&u.Name,
		&u.CurrentGroupID,
		&u.PasswordHash,
		&u.CreatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("querying user: %w", err)
	}

	return &u, nil
}

func (r *repository) VerifyPassword(hashedPassword, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password))
}

func (r *repository) UpdateName(ctx context.Context, userID uuid.UUID, name string) error {
	if name == "" {
		return ErrBlankName
	}
	query := `UPDATE users SET name = $1 WHERE id = $2`
	_, err := r.db.ExecContext(ctx, query, name, userID)
	return err
}

func (r *repository) SetCurrentGroup(ctx context.Context, userID, groupID uuid.UUID) error {
	query := `UPDATE users SET current_group_id = $1 WHERE id = $2`
	_, err := r.db.ExecContext(ctx, query, groupID, userID)
	return err
}

// ClearCurrentGroup detaches every account pointing at a deleted group.
func (r *repository) ClearCurrentGroup(ctx context.Context, groupID uuid.UUID) error {
	query := `UPDATE users SET current_group_id = NULL WHERE current_group_id = $1`
	_, err := r.db.ExecContext(ctx, query, groupID)
	return err
}
