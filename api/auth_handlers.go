package api

import (
	"encoding/json"
	"net/http"

	"github.com/tallyhq/tally/session"
	"github.com/tallyhq/tally/user"
)

type registerRequest struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type authResponse struct {
	User  *user.User `json:"user"`
	Token string     `json:"token"`
}

func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid request body")
		return
	}

	u, err := s.users.Register(r.Context(), req.Email, req.Name, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}

	sess, err := s.sessions.Create(r.Context(), u.ID)
	if err != nil {
		writeError(w, err)
		return
	}

	s.setSessionCookie(w, sess)
	writeJSON(w, http.StatusCreated, authResponse{User: u, Token: sess.Token})
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid request body")
		return
	}

	u, err := s.users.GetByEmail(r.Context(), req.Email)
	if err != nil {
		writeError(w, err)
		return
	}
	if u == nil || s.users.VerifyPassword(u.PasswordHash, req.Password) != nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid email or password"})
		return
	}

	sess, err := s.sessions.Create(r.Context(), u.ID)
	if err != nil {
		writeError(w, err)
		return
	}

	s.setSessionCookie(w, sess)
	writeJSON(w, http.StatusOK, authResponse{User: u, Token: sess.Token})
}

func (s *Server) me(w http.ResponseWriter, r *http.Request) {
	u, err := s.authedUser(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": u})
}

func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(session.CookieName); err == nil {
		s.sessions.Delete(r.Context(), cookie.Value)
	}

	http.SetCookie(w, &http.Cookie{
		Name:   session.CookieName,
		Value:  "",
		Path:   "/",
		MaxAge: -1,
	})

	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) setSessionCookie(w http.ResponseWriter, sess *session.Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     session.CookieName,
		Value:    sess.Token,
		Path:     "/",
		Expires:  sess.ExpiresAt,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}
