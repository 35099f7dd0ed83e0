package user

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// User is an authenticated account. Accounts are distinct from group
// members: a member is a display identity inside one group, while an
// account logs in and carries a current group selection.
type User struct {
	ID             uuid.UUID     `json:"id"`
	Email          string        `json:"email"`
	Name           string        `json:"name"`
	CurrentGroupID uuid.NullUUID `json:"current_group_id"`
	PasswordHash   string        `json:"-"`
	CreatedAt      time.Time     `json:"created_at"`
}

type Repository interface {
	Register(ctx context.Context, email, name, password string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
	VerifyPassword(hashedPassword, password string) error
	UpdateName(ctx context.Context, userID uuid.UUID, name string) error
	SetCurrentGroup(ctx context.Context, userID, groupID uuid.UUID) error
	ClearCurrentGroup(ctx context.Context, groupID uuid.UUID) error
}
