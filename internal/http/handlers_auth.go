package http

import (
	"errors"
	"net/http"

	"finanzas/internal/core"
)

type credentialsRequest struct {
	Nombre     *string `json:"nombre"`
	Contrasena *string `json:"contrasena"`
}

func (c credentialsRequest) values() (string, string, error) {
	if c.Nombre == nil || c.Contrasena == nil {
		return "", "", core.Validation("nombre and contrasena are required")
	}
	return *c.Nombre, *c.Contrasena, nil
}

func (s *Server) decodeCredentials(w http.ResponseWriter, r *http.Request) (string, string, error) {
	var req credentialsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return "", "", err
	}
	return req.values()
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	username, password, err := s.decodeCredentials(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	user, err := s.deps.Auth.Register(r.Context(), username, password)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	NewJSONResponse().Status(http.StatusCreated).Body(struct {
		Message string    `json:"message"`
		User    core.User `json:"user"`
	}{"user created", user}).Write(w)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	username, password, err := s.decodeCredentials(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	user, token, err := s.deps.Auth.Login(r.Context(), username, password)
	if errors.Is(err, core.ErrNotFound) || errors.Is(err, core.ErrAuthentication) {
		UnauthorizedError(core.Message(err)).Write(w)
		return
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	NewJSONResponse().Body(struct {
		User  core.User `json:"user"`
		Token string    `json:"token"`
	}{user, token}).Write(w)
}

// handleLogout always acknowledges. A valid bearer token is revoked.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.deps.Auth.Logout(r.Context(), bearerToken(r))
	MessageResponse(http.StatusOK, "logout successful").Write(w)
}

func (s *Server) handleProtected(w http.ResponseWriter, r *http.Request) {
	claim := ClaimFromContext(r.Context())
	if claim == nil {
		UnauthorizedError("unauthorized: missing or invalid token").Write(w)
		return
	}
	NewJSONResponse().Body(struct {
		Message string      `json:"message"`
		User    *core.Claim `json:"user"`
	}{"access granted", claim}).Write(w)
}

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.deps.Users.List(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	NewJSONResponse().Body(users).Write(w)
}
