// Package api exposes the ledger engine over JSON HTTP. Handlers resolve
// member display names to ids at this boundary; everything below keys by
// id only.
package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/tallyhq/tally/auditlog"
	"github.com/tallyhq/tally/group"
	"github.com/tallyhq/tally/ledger"
	"github.com/tallyhq/tally/middleware"
	"github.com/tallyhq/tally/session"
	"github.com/tallyhq/tally/user"
)

type Server struct {
	users    user.Repository
	sessions session.Repository
	groups   group.Repository
	ledger   *ledger.Service
	audit    *auditlog.Worker
	activity auditlog.Reader
}

func NewServer(
	users user.Repository,
	sessions session.Repository,
	groups group.Repository,
	ledgerSvc *ledger.Service,
	audit *auditlog.Worker,
	activity auditlog.Reader,
) *Server {
	return &Server{
		users:    users,
		sessions: sessions,
		groups:   groups,
		ledger:   ledgerSvc,
		audit:    audit,
		activity: activity,
	}
}

// Routes mounts every endpoint under /api. Auth endpoints are public,
// the rest require a session.
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/health", s.health)
	r.Post("/auth/register", s.register)
	r.Post("/auth/login", s.login)

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth())

		r.Get("/auth/me", s.me)
		r.Post("/auth/logout", s.logout)

		r.Get("/groups", s.listGroups)
		r.Post("/groups", s.createGroup)
		r.Get("/group", s.currentGroup)
		r.Put("/groups/current", s.switchGroup)
		r.Put("/groups/{id}", s.renameGroup)
		r.Delete("/groups/{id}", s.deleteGroup)

		r.Post("/users", s.addMember)
		r.Delete("/users/{id}", s.removeMember)

		r.Get("/expenses", s.listExpenses)
		r.Post("/expenses", s.createExpense)
		r.Put("/expenses/{id}", s.updateExpense)
		r.Delete("/expenses/{id}", s.deleteExpense)
		r.Post("/settle", s.settle)

		r.Get("/balances", s.balances)
		r.Get("/settlements", s.settlements)
		r.Get("/settlements/simplified", s.simplifiedSettlements)
		r.Post("/simplify", s.toggleSimplify)
		r.Get("/activity", s.listActivity)
	})

	return r
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// authedUser loads the account behind the request's session.
func (s *Server) authedUser(ctx context.Context) (*user.User, error) {
	userID, ok := middleware.GetUserID(ctx)
	if !ok {
		return nil, session.ErrInvalidSession
	}
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, session.ErrInvalidSession
	}
	return u, nil
}

// resolveCurrentGroup finds the caller's selected group, falling back to
// the oldest group when no selection is stored.
func (s *Server) resolveCurrentGroup(ctx context.Context) (*group.Group, error) {
	u, err := s.authedUser(ctx)
	if err != nil {
		return nil, err
	}

	if u.CurrentGroupID.Valid {
		g, err := s.groups.GetByID(ctx, u.CurrentGroupID.UUID)
		if err == nil {
			return g, nil
		}
		if err != group.ErrNotFound {
			return nil, err
		}
	}

	all, err := s.groups.List(ctx)
	if err != nil {
		return nil, err
	}
	if len(all) == 0 {
		return nil, group.ErrNotFound
	}
	return &all[0], nil
}

func (s *Server) record(ctx context.Context, action string, groupID uuid.UUID, data any) {
	opts := []auditlog.EntryOption{
		auditlog.WithAction(action),
		auditlog.WithGroup(groupID),
		auditlog.WithData(data),
	}
	if actorID, ok := middleware.GetUserID(ctx); ok {
		opts = append(opts, auditlog.WithActor(actorID))
	}
	s.audit.Record(auditlog.NewEntry(opts...))
}
