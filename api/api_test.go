package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tallyhq/tally/auditlog"
	"github.com/tallyhq/tally/grouplock"
	"github.com/tallyhq/tally/ledger"
	"github.com/tallyhq/tally/middleware"
)

type testEnv struct {
	t            *testing.T
	handler      http.Handler
	token        string
	audit        *memAuditLogger
	shutdownOnce sync.Once
	worker       *auditlog.Worker
}

// stopAudit shuts the audit worker down, draining pending entries. Safe
// to call more than once.
func (e *testEnv) stopAudit() {
	e.shutdownOnce.Do(e.worker.Shutdown)
}

// newTestEnv wires the server the same way main does, swapping the sql
// repositories for in-memory ones.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	users := newMemUsers()
	sessions := newMemSessions()
	ledgerRepo := ledger.NewMemoryRepository()
	groups := newMemGroups(ledgerRepo)

	auditStore := &memAuditLogger{}
	worker := auditlog.NewWorker(auditStore, 16)
	worker.Start()

	locks := grouplock.NewRegistry(time.Second)
	ledgerSvc := ledger.NewService(ledgerRepo, groups, locks)
	server := NewServer(users, sessions, groups, ledgerSvc, worker, auditStore)

	router := chi.NewRouter()
	router.Use(middleware.AuthMiddleware(sessions))
	router.Mount("/api", server.Routes())

	env := &testEnv{t: t, handler: router, audit: auditStore, worker: worker}
	t.Cleanup(env.stopAudit)
	return env
}

func (e *testEnv) do(method, path string, body any) *httptest.ResponseRecorder {
	e.t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(e.t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if e.token != "" {
		req.Header.Set("Authorization", "Bearer "+e.token)
	}

	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) decode(rec *httptest.ResponseRecorder, into any) {
	e.t.Helper()
	require.NoError(e.t, json.NewDecoder(rec.Body).Decode(into))
}

func (e *testEnv) signUp(email string) {
	e.t.Helper()

	rec := e.do(http.MethodPost, "/api/auth/register", map[string]string{
		"email":    email,
		"name":     "tester",
		"password": "hunter2",
	})
	require.Equal(e.t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp struct {
		Token string `json:"token"`
	}
	e.decode(rec, &resp)
	require.NotEmpty(e.t, resp.Token)
	e.token = resp.Token
}

func (e *testEnv) createGroup(name string) {
	e.t.Helper()
	rec := e.do(http.MethodPost, "/api/groups", map[string]string{"name": name})
	require.Equal(e.t, http.StatusCreated, rec.Code, rec.Body.String())
}

func (e *testEnv) addMember(name string) {
	e.t.Helper()
	rec := e.do(http.MethodPost, "/api/users", map[string]string{"name": name})
	require.Equal(e.t, http.StatusCreated, rec.Code, rec.Body.String())
}

func (e *testEnv) balances() map[string]float64 {
	e.t.Helper()

	rec := e.do(http.MethodGet, "/api/balances", nil)
	require.Equal(e.t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		Balances map[string]float64 `json:"balances"`
	}
	e.decode(rec, &resp)
	return resp.Balances
}

func (e *testEnv) settlements(path string) []settlementRow {
	e.t.Helper()

	rec := e.do(http.MethodGet, path, nil)
	require.Equal(e.t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		Settlements []settlementRow `json:"settlements"`
	}
	e.decode(rec, &resp)
	return resp.Settlements
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(http.MethodGet, "/api/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAuthRequired(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodGet, "/api/balances", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(http.MethodPost, "/api/expenses", map[string]string{})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRegisterAndLogin(t *testing.T) {
	env := newTestEnv(t)
	env.signUp("ana@example.com")

	rec := env.do(http.MethodGet, "/api/auth/me", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	// Duplicate email is rejected.
	rec = env.do(http.MethodPost, "/api/auth/register", map[string]string{
		"email":    "ana@example.com",
		"name":     "other",
		"password": "pw",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(http.MethodPost, "/api/auth/login", map[string]string{
		"email":    "ana@example.com",
		"password": "wrong",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(http.MethodPost, "/api/auth/login", map[string]string{
		"email":    "ana@example.com",
		"password": "hunter2",
	})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestExpenseFlow(t *testing.T) {
	env := newTestEnv(t)
	env.signUp("ana@example.com")
	env.createGroup("dinner club")
	for _, name := range []string{"alice", "bob", "carol"} {
		env.addMember(name)
	}

	rec := env.do(http.MethodPost, "/api/expenses", map[string]any{
		"description":  "dinner",
		"amount":       "30.00",
		"payer":        "alice",
		"participants": []string{"alice", "bob", "carol"},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created expenseResponse
	env.decode(rec, &created)
	assert.Equal(t, 30.0, created.Amount)
	assert.Equal(t, "alice", created.Payer)

	assert.Equal(t, map[string]float64{
		"alice": 20,
		"bob":   -10,
		"carol": -10,
	}, env.balances())

	rows := env.settlements("/api/settlements")
	require.Len(t, rows, 2)
	for _, row := range rows {
		assert.Equal(t, "alice", row.To)
		assert.Equal(t, 10.0, row.Amount)
		assert.False(t, row.Settled)
	}

	// bob pays his share back; his row drops out.
	rec = env.do(http.MethodPost, "/api/settle", map[string]any{
		"from":   "bob",
		"to":     "alice",
		"amount": "10.00",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rows = env.settlements("/api/settlements")
	require.Len(t, rows, 1)
	assert.Equal(t, "carol", rows[0].From)

	// Update rewrites the split; delete erases it entirely.
	rec = env.do(http.MethodPut, fmt.Sprintf("/api/expenses/%s", created.ID), map[string]any{
		"description":  "dinner, corrected",
		"amount":       "20.00",
		"payer":        "alice",
		"participants": []string{"alice", "bob"},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = env.do(http.MethodDelete, fmt.Sprintf("/api/expenses/%s", created.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	// Only bob's repayment remains, so alice now owes him back.
	balances := env.balances()
	assert.Equal(t, -10.0, balances["alice"])
	assert.Equal(t, 10.0, balances["bob"])
	assert.Equal(t, 0.0, balances["carol"])
}

func TestExpenseErrors(t *testing.T) {
	env := newTestEnv(t)
	env.signUp("ana@example.com")
	env.createGroup("errors")
	env.addMember("alice")

	tests := []struct {
		name string
		body map[string]any
		want int
	}{
		{
			name: "unknown payer",
			body: map[string]any{
				"description": "x", "amount": "1.00",
				"payer": "nobody", "participants": []string{"alice"},
			},
			want: http.StatusBadRequest,
		},
		{
			name: "zero amount",
			body: map[string]any{
				"description": "x", "amount": "0",
				"payer": "alice", "participants": []string{"alice"},
			},
			want: http.StatusBadRequest,
		},
		{
			name: "sub-cent amount",
			body: map[string]any{
				"description": "x", "amount": "1.005",
				"payer": "alice", "participants": []string{"alice"},
			},
			want: http.StatusBadRequest,
		},
		{
			name: "empty participants",
			body: map[string]any{
				"description": "x", "amount": "1.00",
				"payer": "alice", "participants": []string{},
			},
			want: http.StatusBadRequest,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := env.do(http.MethodPost, "/api/expenses", tc.body)
			assert.Equal(t, tc.want, rec.Code, rec.Body.String())
		})
	}

	rec := env.do(http.MethodPut, fmt.Sprintf("/api/expenses/%s", "00000000-0000-0000-0000-000000000001"), map[string]any{
		"description": "ghost", "amount": "1.00",
		"payer": "alice", "participants": []string{"alice"},
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(http.MethodDelete, "/api/expenses/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSimplifyToggleSelectsReadPath(t *testing.T) {
	env := newTestEnv(t)
	env.signUp("ana@example.com")
	env.createGroup("chain")
	for _, name := range []string{"a", "b", "c"} {
		env.addMember(name)
	}

	// a owes b, b owes c, same amount.
	for _, pair := range [][2]string{{"b", "a"}, {"c", "b"}} {
		rec := env.do(http.MethodPost, "/api/expenses", map[string]any{
			"description":  "loan",
			"amount":       "10.00",
			"payer":        pair[0],
			"participants": []string{pair[1]},
		})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	}

	assert.Len(t, env.settlements("/api/settlements"), 2)
	assert.Len(t, env.settlements("/api/settlements/simplified"), 1)

	rec := env.do(http.MethodPost, "/api/simplify", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]bool
	env.decode(rec, &resp)
	assert.True(t, resp["simplify_debts"])

	// With the flag on, the default listing simplifies too.
	assert.Len(t, env.settlements("/api/settlements"), 1)
}

func TestMemberManagement(t *testing.T) {
	env := newTestEnv(t)
	env.signUp("ana@example.com")
	env.createGroup("members")
	env.addMember("alice")
	env.addMember("bob")

	// Duplicate display name within the group.
	rec := env.do(http.MethodPost, "/api/users", map[string]string{"name": "alice"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(http.MethodGet, "/api/group", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var current groupResponse
	env.decode(rec, &current)
	require.Len(t, current.Members, 2)

	alice := current.Members[0]
	rec = env.do(http.MethodPost, "/api/expenses", map[string]any{
		"description":  "coffee",
		"amount":       "3.50",
		"payer":        "alice",
		"participants": []string{"alice", "bob"},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	// Referenced by a ledger event, so removal is refused.
	rec = env.do(http.MethodDelete, fmt.Sprintf("/api/users/%s", alice.ID), nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	env.addMember("carol")
	rec = env.do(http.MethodGet, "/api/group", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	env.decode(rec, &current)

	carol := current.Members[len(current.Members)-1]
	rec = env.do(http.MethodDelete, fmt.Sprintf("/api/users/%s", carol.ID), nil)
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// A missing member id is a 404; a bad name in a request body is a 400.
	rec = env.do(http.MethodDelete, fmt.Sprintf("/api/users/%s", uuid.NewString()), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(http.MethodPost, "/api/settle", map[string]any{
		"from":   "nobody",
		"to":     "alice",
		"amount": "1.00",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
}

func TestGroupLifecycle(t *testing.T) {
	env := newTestEnv(t)
	env.signUp("ana@example.com")

	// No group selected and none exist.
	rec := env.do(http.MethodGet, "/api/group", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	env.createGroup("first")
	env.createGroup("second")

	rec = env.do(http.MethodGet, "/api/groups", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var groups []struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}
	env.decode(rec, &groups)
	require.Len(t, groups, 2)

	// The first created group became current automatically.
	rec = env.do(http.MethodGet, "/api/group", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var current groupResponse
	env.decode(rec, &current)
	assert.Equal(t, "first", current.Name)

	rec = env.do(http.MethodPut, "/api/groups/current", map[string]string{"group_id": groups[1].ID})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(http.MethodGet, "/api/group", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	env.decode(rec, &current)
	assert.Equal(t, "second", current.Name)

	rec = env.do(http.MethodPut, fmt.Sprintf("/api/groups/%s", groups[1].ID), map[string]string{"name": "renamed"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(http.MethodDelete, fmt.Sprintf("/api/groups/%s", groups[1].ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	// Selection falls back to the oldest remaining group.
	rec = env.do(http.MethodGet, "/api/group", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	env.decode(rec, &current)
	assert.Equal(t, "first", current.Name)
}

func TestAuditTrail(t *testing.T) {
	env := newTestEnv(t)
	env.signUp("ana@example.com")
	env.createGroup("audited")
	env.addMember("alice")

	rec := env.do(http.MethodPost, "/api/expenses", map[string]any{
		"description":  "solo",
		"amount":       "5.00",
		"payer":        "alice",
		"participants": []string{"alice"},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	env.stopAudit()

	env.audit.mu.Lock()
	actions := make([]string, 0, len(env.audit.entries))
	for _, entry := range env.audit.entries {
		actions = append(actions, entry.Action)
	}
	env.audit.mu.Unlock()
	assert.Contains(t, actions, auditlog.ActionMemberAdded)
	assert.Contains(t, actions, auditlog.ActionExpenseCreated)

	rec = env.do(http.MethodGet, "/api/activity", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var feed struct {
		Activity []auditlog.Entry `json:"activity"`
	}
	env.decode(rec, &feed)
	require.NotEmpty(t, feed.Activity)
	// Newest first.
	assert.Equal(t, auditlog.ActionExpenseCreated, feed.Activity[0].Action)
}
