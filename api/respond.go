package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/tallyhq/tally/group"
	"github.com/tallyhq/tally/ledger"
	"github.com/tallyhq/tally/user"
)

// errInvalidBody covers JSON bodies that fail to decode at all.
var errInvalidBody = errors.New("invalid request body")

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

// writeError maps domain errors onto HTTP statuses in one place. The
// message is the error text itself; every validation error carries
// enough detail to render to a user.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError

	switch {
	case isValidation(err):
		status = http.StatusBadRequest
	case errors.Is(err, ledger.ErrNotFound),
		errors.Is(err, group.ErrNotFound),
		errors.Is(err, group.ErrMemberNotFound):
		status = http.StatusNotFound
	case errors.Is(err, ledger.ErrLockContention):
		status = http.StatusServiceUnavailable
	}

	if status == http.StatusInternalServerError {
		slog.Error("request failed", "error", err)
		writeJSON(w, status, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func isValidation(err error) bool {
	for _, sentinel := range []error{
		errInvalidBody,
		ledger.ErrInvalidAmount,
		ledger.ErrEmptyDescription,
		ledger.ErrEmptyParticipants,
		ledger.ErrInvalidMember,
		ledger.ErrSelfTransfer,
		group.ErrEmptyName,
		group.ErrNameTooLong,
		group.ErrUnknownName,
		group.ErrDuplicateMember,
		group.ErrMemberInUse,
		user.ErrEmailExists,
		user.ErrInvalidEmail,
		user.ErrBlankPassword,
		user.ErrBlankName,
	} {
		if errors.Is(err, sentinel) {
			return true
		}
	}
	return false
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, map[string]string{"error": msg})
}
