package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/tallyhq/tally/auditlog"
	"github.com/tallyhq/tally/group"
	"github.com/tallyhq/tally/ledger"
)

type createGroupRequest struct {
	Name string `json:"name"`
}

type switchGroupRequest struct {
	GroupID uuid.UUID `json:"group_id"`
}

type addMemberRequest struct {
	Name string `json:"name"`
}

type groupResponse struct {
	ID            uuid.UUID      `json:"id"`
	Name          string         `json:"name"`
	SimplifyDebts bool           `json:"simplify_debts"`
	Members       []group.Member `json:"members"`
}

type settlementRow struct {
	From    string  `json:"from"`
	To      string  `json:"to"`
	Amount  float64 `json:"amount"`
	Settled bool    `json:"settled"`
}

func (s *Server) listGroups(w http.ResponseWriter, r *http.Request) {
	groups, err := s.groups.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, groups)
}

func (s *Server) createGroup(w http.ResponseWriter, r *http.Request) {
	var req createGroupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid request body")
		return
	}

	u, err := s.authedUser(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	g, err := group.NewGroup(req.Name, u.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.groups.Create(r.Context(), g); err != nil {
		writeError(w, err)
		return
	}

	// First group becomes the caller's current one.
	if !u.CurrentGroupID.Valid {
		if err := s.users.SetCurrentGroup(r.Context(), u.ID, g.ID); err != nil {
			writeError(w, err)
			return
		}
	}

	writeJSON(w, http.StatusCreated, g)
}

func (s *Server) currentGroup(w http.ResponseWriter, r *http.Request) {
	g, err := s.resolveCurrentGroup(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	members, err := s.groups.ListMembers(r.Context(), g.ID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, groupResponse{
		ID:            g.ID,
		Name:          g.Name,
		SimplifyDebts: g.SimplifyDebts,
		Members:       members,
	})
}

func (s *Server) switchGroup(w http.ResponseWriter, r *http.Request) {
	var req switchGroupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid request body")
		return
	}

	if _, err := s.groups.GetByID(r.Context(), req.GroupID); err != nil {
		writeError(w, err)
		return
	}

	u, err := s.authedUser(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.users.SetCurrentGroup(r.Context(), u.ID, req.GroupID); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true, "current_group_id": req.GroupID})
}

func (s *Server) renameGroup(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		badRequest(w, "invalid group id")
		return
	}

	var req createGroupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	if req.Name == "" {
		writeError(w, group.ErrEmptyName)
		return
	}

	if err := s.groups.Rename(r.Context(), id, req.Name); err != nil {
		writeError(w, err)
		return
	}

	g, err := s.groups.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, g)
}

func (s *Server) deleteGroup(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		badRequest(w, "invalid group id")
		return
	}

	if err := s.groups.Delete(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	if err := s.users.ClearCurrentGroup(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	s.ledger.ForgetGroup(id)

	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) addMember(w http.ResponseWriter, r *http.Request) {
	var req addMemberRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid request body")
		return
	}

	g, err := s.resolveCurrentGroup(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	m, err := group.NewMember(g.ID, req.Name)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.groups.AddMember(r.Context(), m); err != nil {
		writeError(w, err)
		return
	}

	s.record(r.Context(), auditlog.ActionMemberAdded, g.ID, map[string]string{
		"member_id": m.ID.String(),
		"name":      m.Name,
	})

	writeJSON(w, http.StatusCreated, m)
}

func (s *Server) removeMember(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		badRequest(w, "invalid member id")
		return
	}

	g, err := s.resolveCurrentGroup(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	if err := s.groups.RemoveMember(r.Context(), g.ID, id); err != nil {
		writeError(w, err)
		return
	}

	s.record(r.Context(), auditlog.ActionMemberRemoved, g.ID, map[string]string{
		"member_id": id.String(),
	})

	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) balances(w http.ResponseWriter, r *http.Request) {
	g, err := s.resolveCurrentGroup(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	members, err := s.groups.ListMembers(r.Context(), g.ID)
	if err != nil {
		writeError(w, err)
		return
	}

	balances, err := s.ledger.Balances(r.Context(), g.ID)
	if err != nil {
		writeError(w, err)
		return
	}

	// Every member appears, zero or not.
	byName := make(map[string]float64, len(members))
	for _, m := range members {
		byName[m.Name] = ledger.DecimalFromCents(balances[m.ID]).InexactFloat64()
	}

	writeJSON(w, http.StatusOK, map[string]any{"balances": byName})
}

func (s *Server) settlements(w http.ResponseWriter, r *http.Request) {
	g, err := s.resolveCurrentGroup(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	s.writeSettlements(w, r, g, g.SimplifyDebts)
}

func (s *Server) simplifiedSettlements(w http.ResponseWriter, r *http.Request) {
	g, err := s.resolveCurrentGroup(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	s.writeSettlements(w, r, g, true)
}

func (s *Server) writeSettlements(w http.ResponseWriter, r *http.Request, g *group.Group, simplified bool) {
	members, err := s.groups.ListMembers(r.Context(), g.ID)
	if err != nil {
		writeError(w, err)
		return
	}

	settlements, err := s.ledger.Settlements(r.Context(), g.ID, simplified)
	if err != nil {
		writeError(w, err)
		return
	}

	names := make(map[uuid.UUID]string, len(members))
	for _, m := range members {
		names[m.ID] = m.Name
	}

	// A settled pair drops out of the list entirely, so outstanding rows
	// are always settled=false; the field exists for the client's shape.
	rows := make([]settlementRow, 0, len(settlements))
	for _, st := range settlements {
		rows = append(rows, settlementRow{
			From:   names[st.FromID],
			To:     names[st.ToID],
			Amount: ledger.DecimalFromCents(st.AmountCents).InexactFloat64(),
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{"settlements": rows})
}

func (s *Server) toggleSimplify(w http.ResponseWriter, r *http.Request) {
	g, err := s.resolveCurrentGroup(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	newValue := !g.SimplifyDebts
	if err := s.groups.SetSimplifyDebts(r.Context(), g.ID, newValue); err != nil {
		writeError(w, err)
		return
	}

	s.record(r.Context(), auditlog.ActionSimplifyToggled, g.ID, map[string]bool{
		"simplify_debts": newValue,
	})

	writeJSON(w, http.StatusOK, map[string]bool{"simplify_debts": newValue})
}

const activityFeedLimit = 50

// listActivity returns the current group's audit trail, newest first.
// Entries written by the background worker may lag a mutation briefly.
func (s *Server) listActivity(w http.ResponseWriter, r *http.Request) {
	g, err := s.resolveCurrentGroup(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	entries, err := s.activity.ListByGroup(r.Context(), g.ID, activityFeedLimit)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"activity": entries})
}
