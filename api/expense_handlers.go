package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tallyhq/tally/auditlog"
	"github.com/tallyhq/tally/group"
	"github.com/tallyhq/tally/ledger"
)

type expenseRequest struct {
	Description  string          `json:"description"`
	Amount       decimal.Decimal `json:"amount"`
	Payer        string          `json:"payer"`
	Participants []string        `json:"participants"`
	Category     string          `json:"category,omitempty"`
	Notes        string          `json:"notes,omitempty"`
}

type settleRequest struct {
	From   string          `json:"from"`
	To     string          `json:"to"`
	Amount decimal.Decimal `json:"amount"`
}

type expenseResponse struct {
	ID           uuid.UUID `json:"id"`
	Description  string    `json:"description"`
	Amount       float64   `json:"amount"`
	Payer        string    `json:"payer"`
	Participants []string  `json:"participants"`
	Category     string    `json:"category,omitempty"`
	Notes        string    `json:"notes,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

type transferResponse struct {
	ID        uuid.UUID `json:"id"`
	From      string    `json:"from"`
	To        string    `json:"to"`
	Amount    float64   `json:"amount"`
	CreatedAt time.Time `json:"created_at"`
}

func (s *Server) listExpenses(w http.ResponseWriter, r *http.Request) {
	g, members, err := s.currentGroupWithMembers(r)
	if err != nil {
		writeError(w, err)
		return
	}

	expenses, err := s.ledger.Expenses(r.Context(), g.ID)
	if err != nil {
		writeError(w, err)
		return
	}

	names := memberNames(members)
	rows := make([]expenseResponse, 0, len(expenses))
	for _, e := range expenses {
		rows = append(rows, toExpenseResponse(&e, names))
	}

	writeJSON(w, http.StatusOK, map[string]any{"expenses": rows})
}

func (s *Server) createExpense(w http.ResponseWriter, r *http.Request) {
	g, members, err := s.currentGroupWithMembers(r)
	if err != nil {
		writeError(w, err)
		return
	}

	in, err := decodeExpenseInput(r, members)
	if err != nil {
		writeError(w, err)
		return
	}

	expense, err := s.ledger.AddExpense(r.Context(), g.ID, *in)
	if err != nil {
		writeError(w, err)
		return
	}

	s.record(r.Context(), auditlog.ActionExpenseCreated, g.ID, map[string]any{
		"expense_id":   expense.ID.String(),
		"amount_cents": expense.AmountCents,
	})

	writeJSON(w, http.StatusCreated, toExpenseResponse(expense, memberNames(members)))
}

func (s *Server) updateExpense(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		badRequest(w, "invalid expense id")
		return
	}

	g, members, err := s.currentGroupWithMembers(r)
	if err != nil {
		writeError(w, err)
		return
	}

	in, err := decodeExpenseInput(r, members)
	if err != nil {
		writeError(w, err)
		return
	}

	expense, err := s.ledger.UpdateExpense(r.Context(), g.ID, id, *in)
	if err != nil {
		writeError(w, err)
		return
	}

	s.record(r.Context(), auditlog.ActionExpenseUpdated, g.ID, map[string]any{
		"expense_id":   expense.ID.String(),
		"amount_cents": expense.AmountCents,
	})

	writeJSON(w, http.StatusOK, toExpenseResponse(expense, memberNames(members)))
}

func (s *Server) deleteExpense(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		badRequest(w, "invalid expense id")
		return
	}

	g, err := s.resolveCurrentGroup(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	if err := s.ledger.DeleteExpense(r.Context(), g.ID, id); err != nil {
		writeError(w, err)
		return
	}

	s.record(r.Context(), auditlog.ActionExpenseDeleted, g.ID, map[string]string{
		"expense_id": id.String(),
	})

	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) settle(w http.ResponseWriter, r *http.Request) {
	var req settleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid request body")
		return
	}

	g, members, err := s.currentGroupWithMembers(r)
	if err != nil {
		writeError(w, err)
		return
	}

	ids, err := group.ResolveNames(members, []string{req.From, req.To})
	if err != nil {
		writeError(w, err)
		return
	}

	cents, err := ledger.CentsFromDecimal(req.Amount)
	if err != nil {
		writeError(w, err)
		return
	}

	transfer, err := s.ledger.RecordSettlement(r.Context(), g.ID, ids[0], ids[1], cents)
	if err != nil {
		writeError(w, err)
		return
	}

	s.record(r.Context(), auditlog.ActionSettlementRecorded, g.ID, map[string]any{
		"transfer_id":  transfer.ID.String(),
		"from":         req.From,
		"to":           req.To,
		"amount_cents": transfer.AmountCents,
	})

	writeJSON(w, http.StatusCreated, transferResponse{
		ID:        transfer.ID,
		From:      req.From,
		To:        req.To,
		Amount:    ledger.DecimalFromCents(transfer.AmountCents).InexactFloat64(),
		CreatedAt: transfer.CreatedAt,
	})
}

func (s *Server) currentGroupWithMembers(r *http.Request) (*group.Group, []group.Member, error) {
	g, err := s.resolveCurrentGroup(r.Context())
	if err != nil {
		return nil, nil, err
	}
	members, err := s.groups.ListMembers(r.Context(), g.ID)
	if err != nil {
		return nil, nil, err
	}
	return g, members, nil
}

// decodeExpenseInput parses the request body and resolves names to ids.
func decodeExpenseInput(r *http.Request, members []group.Member) (*ledger.ExpenseInput, error) {
	var req expenseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, errInvalidBody
	}

	cents, err := ledger.CentsFromDecimal(req.Amount)
	if err != nil {
		return nil, err
	}

	payerIDs, err := group.ResolveNames(members, []string{req.Payer})
	if err != nil {
		return nil, err
	}
	participantIDs, err := group.ResolveNames(members, req.Participants)
	if err != nil {
		return nil, err
	}

	return &ledger.ExpenseInput{
		Description:    req.Description,
		AmountCents:    cents,
		PayerID:        payerIDs[0],
		ParticipantIDs: participantIDs,
		Category:       req.Category,
		Notes:          req.Notes,
	}, nil
}

func memberNames(members []group.Member) map[uuid.UUID]string {
	names := make(map[uuid.UUID]string, len(members))
	for _, m := range members {
		names[m.ID] = m.Name
	}
	return names
}

func toExpenseResponse(e *ledger.Expense, names map[uuid.UUID]string) expenseResponse {
	participants := make([]string, 0, len(e.ParticipantIDs))
	for _, id := range e.ParticipantIDs {
		participants = append(participants, names[id])
	}

	return expenseResponse{
		ID:           e.ID,
		Description:  e.Description,
		Amount:       ledger.DecimalFromCents(e.AmountCents).InexactFloat64(),
		Payer:        names[e.PayerID],
		Participants: participants,
		Category:     e.Category,
		Notes:        e.Notes,
		CreatedAt:    e.CreatedAt,
	}
}
