package api

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tallyhq/tally/auditlog"
	"github.com/tallyhq/tally/group"
	"github.com/tallyhq/tally/ledger"
	"github.com/tallyhq/tally/session"
	"github.com/tallyhq/tally/user"
)

// In-memory doubles for the sql repositories. Passwords are stored as
// plain text here; hashing belongs to the real repository.

type memUsers struct {
	mu    sync.Mutex
	users map[uuid.UUID]*user.User
}

func newMemUsers() *memUsers {
	return &memUsers{users: make(map[uuid.UUID]*user.User)}
}

func (m *memUsers) Register(ctx context.Context, email, name, password string) (*user.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if email == "" {
		return nil, user.ErrInvalidEmail
	}
	for _, u := range m.users {
		if u.Email == email {
			return nil, user.ErrEmailExists
		}
	}

	u := &user.User{
		ID:           uuid.New(),
		Email:        email,
		Name:         name,
		PasswordHash: password,
		CreatedAt:    time.Now().UTC(),
	}
	m.users[u.ID] = u
	return u, nil
}

func (m *memUsers) GetByEmail(ctx context.Context, email string) (*user.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, u := range m.users {
		if u.Email == email {
			clone := *u
			return &clone, nil
		}
	}
	return nil, nil
}

func (m *memUsers) GetByID(ctx context.Context, id uuid.UUID) (*user.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[id]
	if !ok {
		return nil, nil
	}
	clone := *u
	return &clone, nil
}

func (m *memUsers) VerifyPassword(hashedPassword, password string) error {
	if hashedPassword != password {
		return user.ErrBlankPassword
	}
	return nil
}

func (m *memUsers) UpdateName(ctx context.Context, userID uuid.UUID, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if u, ok := m.users[userID]; ok {
		u.Name = name
	}
	return nil
}

func (m *memUsers) SetCurrentGroup(ctx context.Context, userID, groupID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if u, ok := m.users[userID]; ok {
		u.CurrentGroupID = uuid.NullUUID{UUID: groupID, Valid: true}
	}
	return nil
}

func (m *memUsers) ClearCurrentGroup(ctx context.Context, groupID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, u := range m.users {
		if u.CurrentGroupID.Valid && u.CurrentGroupID.UUID == groupID {
			u.CurrentGroupID = uuid.NullUUID{}
		}
	}
	return nil
}

type memSessions struct {
	mu       sync.Mutex
	sessions map[string]*session.Session
}

func newMemSessions() *memSessions {
	return &memSessions{sessions: make(map[string]*session.Session)}
}

func (m *memSessions) Create(ctx context.Context, userID uuid.UUID) (*session.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now().UTC()
	sess := &session.Session{
		ID:        uuid.New(),
		UserID:    userID,
		Token:     uuid.NewString(),
		ExpiresAt: now.Add(time.Hour),
		CreatedAt: now,
	}
	m.sessions[sess.Token] = sess
	return sess, nil
}

func (m *memSessions) GetByToken(ctx context.Context, token string) (*session.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, ok := m.sessions[token]
	if !ok {
		return nil, session.ErrInvalidSession
	}
	if time.Now().After(sess.ExpiresAt) {
		return nil, session.ErrExpiredSession
	}
	clone := *sess
	return &clone, nil
}

func (m *memSessions) Delete(ctx context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.sessions, token)
	return nil
}

func (m *memSessions) DeleteByUserID(ctx context.Context, userID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for token, sess := range m.sessions {
		if sess.UserID == userID {
			delete(m.sessions, token)
		}
	}
	return nil
}

func (m *memSessions) PurgeExpired(ctx context.Context) (int64, error) {
	return 0, nil
}

type memGroups struct {
	mu      sync.Mutex
	groups  []group.Group
	members map[uuid.UUID][]group.Member
	events  group.EventChecker
}

func newMemGroups(events group.EventChecker) *memGroups {
	return &memGroups{
		members: make(map[uuid.UUID][]group.Member),
		events:  events,
	}
}

func (m *memGroups) Create(ctx context.Context, g *group.Group) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.groups = append(m.groups, *g)
	return nil
}

func (m *memGroups) GetByID(ctx context.Context, id uuid.UUID) (*group.Group, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.groups {
		if m.groups[i].ID == id {
			clone := m.groups[i]
			return &clone, nil
		}
	}
	return nil, group.ErrNotFound
}

func (m *memGroups) List(ctx context.Context) ([]group.Group, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return append([]group.Group(nil), m.groups...), nil
}

func (m *memGroups) Rename(ctx context.Context, id uuid.UUID, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.groups {
		if m.groups[i].ID == id {
			m.groups[i].Name = name
			return nil
		}
	}
	return group.ErrNotFound
}

func (m *memGroups) Delete(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.groups {
		if m.groups[i].ID == id {
			m.groups = append(m.groups[:i], m.groups[i+1:]...)
			delete(m.members, id)
			return nil
		}
	}
	return group.ErrNotFound
}

func (m *memGroups) SetSimplifyDebts(ctx context.Context, id uuid.UUID, simplify bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.groups {
		if m.groups[i].ID == id {
			m.groups[i].SimplifyDebts = simplify
			return nil
		}
	}
	return group.ErrNotFound
}

func (m *memGroups) AddMember(ctx context.Context, member *group.Member) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.members[member.GroupID] {
		if existing.Name == member.Name {
			return group.ErrDuplicateMember
		}
	}
	m.members[member.GroupID] = append(m.members[member.GroupID], *member)
	return nil
}

func (m *memGroups) RemoveMember(ctx context.Context, groupID, memberID uuid.UUID) error {
	referenced, err := m.events.HasMemberEvents(ctx, groupID, memberID)
	if err != nil {
		return err
	}
	if referenced {
		return group.ErrMemberInUse
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	members := m.members[groupID]
	for i := range members {
		if members[i].ID == memberID {
			m.members[groupID] = append(members[:i], members[i+1:]...)
			return nil
		}
	}
	return group.ErrMemberNotFound
}

func (m *memGroups) ListMembers(ctx context.Context, groupID uuid.UUID) ([]group.Member, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return append([]group.Member(nil), m.members[groupID]...), nil
}

func (m *memGroups) MemberIDs(ctx context.Context, groupID uuid.UUID) (map[uuid.UUID]bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ids := make(map[uuid.UUID]bool, len(m.members[groupID]))
	for _, member := range m.members[groupID] {
		ids[member.ID] = true
	}
	return ids, nil
}

type memAuditLogger struct {
	mu      sync.Mutex
	entries []auditlog.Entry
}

func (m *memAuditLogger) Save(ctx context.Context, entry auditlog.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries = append(m.entries, entry)
	return nil
}

func (m *memAuditLogger) ListByGroup(ctx context.Context, groupID uuid.UUID, limit int) ([]auditlog.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entries := make([]auditlog.Entry, 0, limit)
	for i := len(m.entries) - 1; i >= 0 && len(entries) < limit; i-- {
		entry := m.entries[i]
		if entry.GroupID.Valid && entry.GroupID.UUID == groupID {
			entries = append(entries, entry)
		}
	}
	return entries, nil
}

var (
	_ auditlog.Logger    = (*memAuditLogger)(nil)
	_ auditlog.Reader    = (*memAuditLogger)(nil)
	_ user.Repository    = (*memUsers)(nil)
	_ session.Repository = (*memSessions)(nil)
	_ group.Repository   = (*memGroups)(nil)
	_ ledger.Repository  = (*ledger.MemoryRepository)(nil)
)
