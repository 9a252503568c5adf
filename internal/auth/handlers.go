package auth

import (
	"encoding/json"
	"net/http"

	"github.com/pkg/errors"

	"github.com/roach88/shelf/internal/httpjson"
)

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type tokenResponse struct {
	Token string `json:"token"`
}

type meResponse struct {
	User *Identity `json:"user"`
}

// ServeRegister handles POST /register.
func (s *Service) ServeRegister(w http.ResponseWriter, r *http.Request) {
	var c credentials
	if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
		httpjson.Message(w, http.StatusBadRequest, httpjson.MsgInvalidBody)
		return
	}

	token, err := s.Register(r.Context(), c.Username, c.Password)
	switch {
	case errors.Is(err, ErrMissingCredentials):
		httpjson.Message(w, http.StatusBadRequest, "Username and password are required")
	case errors.Is(err, ErrUserExists):
		httpjson.Message(w, http.StatusBadRequest, "Username already exists")
	case err != nil:
		s.logger.ErrorContext(r.Context(), "register failed", "error", err)
		httpjson.Message(w, http.StatusInternalServerError, "Error creating user")
	default:
		httpjson.Write(w, http.StatusCreated, tokenResponse{Token: token})
	}
}

// ServeLogin handles POST /login.
func (s *Service) ServeLogin(w http.ResponseWriter, r *http.Request) {
	var c credentials
	if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
		httpjson.Message(w, http.StatusBadRequest, httpjson.MsgInvalidBody)
		return
	}

	token, err := s.Login(r.Context(), c.Username, c.Password)
	switch {
	case errors.Is(err, ErrInvalidCredentials):
		httpjson.Message(w, http.StatusUnauthorized, "Invalid credentials")
	case err != nil:
		s.logger.ErrorContext(r.Context(), "login failed", "error", err)
		httpjson.Message(w, http.StatusInternalServerError, "Error finding user")
	default:
		httpjson.Write(w, http.StatusOK, tokenResponse{Token: token})
	}
}

// ServeMe handles GET /me. It must run behind Middleware.Require.
func ServeMe(w http.ResponseWriter, r *http.Request) {
	id, ok := FromContext(r.Context())
	if !ok {
		httpjson.Message(w, http.StatusUnauthorized, httpjson.MsgAuthRequired)
		return
	}
	httpjson.Write(w, http.StatusOK, meResponse{User: id})
}
