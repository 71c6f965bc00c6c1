package http

import (
	"net/http"
	"time"

	applog "despesas/internal/log"
	"despesas/internal/services"
)

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, "register", err)
		return
	}

	u, err := s.users.Register(r.Context(), services.RegisterInput{
		Name:             req.Name,
		Email:            req.Email,
		Password:         req.Password,
		RegisterPassword: req.RegisterPassword,
	})
	if err != nil {
		writeError(w, r, "register", err)
		return
	}
	NewJSONResponse().Status(http.StatusCreated).Body(struct {
		Message string       `json:"message"`
		User    userResponse `json:"user"`
	}{"Usuário registrado com sucesso", toUserResponse(u)}).Write(w)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, "login", err)
		return
	}

	session, err := s.users.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, r, "login", err)
		return
	}

	// A fresh login must not be rejected by a stale negative lookup.
	s.userCache.Delete(session.User.ID)

	s.logger.InfoContext(r.Context(), "User logged in", applog.FieldUserID, session.User.ID)
	NewJSONResponse().
		Cookie(s.sessionCookie(session.Token, session.ExpiresAt)).
		Body(struct {
			Message   string       `json:"message"`
			Token     string       `json:"token"`
			ExpiresAt time.Time    `json:"expiresAt"`
			User      userResponse `json:"user"`
		}{"Login realizado com sucesso", session.Token, session.ExpiresAt.UTC(), toUserResponse(session.User)}).
		Write(w)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().
		Cookie(s.clearedSessionCookie()).
		Body(message{Message: "Logout realizado com sucesso"}).
		Write(w)
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	u, err := s.users.Profile(r.Context(), userID(r))
	if err != nil {
		writeError(w, r, applog.OpRead, err)
		return
	}
	NewJSONResponse().Body(toUserResponse(u)).Write(w)
}
