package http

import (
	"net/http"
	"time"

	"fintrack/internal/log"
	"fintrack/internal/services"
)

type tokenRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenResponse struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var in services.RegisterInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}

	u, err := s.deps.Users.Register(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}

	log.FromContext(r.Context()).InfoContext(r.Context(), "User registered", log.FieldUserID, u.ID)
	writeJSON(w, http.StatusCreated, u)
}

func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	var in tokenRequest
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}

	u, err := s.deps.Users.Authenticate(r.Context(), in.Email, in.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}

	token, expires, err := s.deps.Tokens.Issue(u.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tokenResponse{AccessToken: token, TokenType: "Bearer", ExpiresAt: expires.UTC()})
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	u, err := s.deps.Users.Get(r.Context(), userFromContext(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}
