package group

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var (
	ErrEmptyName       = errors.New("name can't be empty")
	ErrNameTooLong     = errors.New("name too long")
	ErrNotFound        = errors.New("group not found")
	ErrMemberNotFound  = errors.New("member not found")
	ErrUnknownName     = errors.New("no member with that name")
	ErrDuplicateMember = errors.New("a member with that name already exists")
	ErrMemberInUse     = errors.New("member is referenced by ledger events")
)

const maxNameLength = 100

// Group is the aggregate that owns a full ledger event log. SimplifyDebts
// selects which settlement read-path the group uses; toggling it never
// mutates the ledger.
type Group struct {
	ID            uuid.UUID `json:"id"`
	Name          string    `json:"name"`
	SimplifyDebts bool      `json:"simplify_debts"`
	CreatedBy     uuid.UUID `json:"created_by"`
	CreatedAt     time.Time `json:"created_at"`
}

// Member is a participant identity scoped to exactly one group. Display
// names are unique within the group.
type Member struct {
	ID       uuid.UUID `json:"id"`
	GroupID  uuid.UUID `json:"group_id"`
	Name     string    `json:"name"`
	JoinedAt time.Time `json:"joined_at"`
}

func NewGroup(name string, createdBy uuid.UUID) (*Group, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}

	return &Group{
		ID:        uuid.New(),
		Name:      name,
		CreatedBy: createdBy,
		CreatedAt: time.Now().UTC(),
	}, nil
}

func NewMember(groupID uuid.UUID, name string) (*Member, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}

	return &Member{
		ID:       uuid.New(),
		GroupID:  groupID,
		Name:     name,
		JoinedAt: time.Now().UTC(),
	}, nil
}

func validateName(name string) error {
	if name == "" {
		return ErrEmptyName
	}
	if len(name) > maxNameLength {
		return ErrNameTooLong
	}
	return nil
}

// ResolveNames maps display names to member ids. The engine keys members
// by id only; names exist at the boundary. A missing name, or a name that
// resolves to more than one member, is a bad reference in the request and
// rejected as such, never a silent merge.
func ResolveNames(members []Member, names []string) ([]uuid.UUID, error) {
	byName := make(map[string][]uuid.UUID, len(members))
	for _, m := range members {
		byName[m.Name] = append(byName[m.Name], m.ID)
	}

	ids := make([]uuid.UUID, 0, len(names))
	for _, name := range names {
		matches := byName[name]
		switch len(matches) {
		case 1:
			ids = append(ids, matches[0])
		case 0:
			return nil, fmt.Errorf("%w: %q", ErrUnknownName, name)
		default:
			return nil, fmt.Errorf("%w: %q is ambiguous", ErrUnknownName, name)
		}
	}
	return ids, nil
}
