package http

import (
	"fmt"
	"net/http"

	applog "despesas/internal/log"
	"despesas/internal/services"
)

// demoService returns the demo service or writes a 404 when it is absent.
func (s *Server) demoService(w http.ResponseWriter, r *http.Request) (*services.DemoService, bool) {
	if s.demo == nil {
		writeError(w, r, applog.OpReset, services.ErrDemoDisabled)
		return nil, false
	}
	return s.demo, true
}

func (s *Server) handleDemoCredentials(w http.ResponseWriter, r *http.Request) {
	demo, ok := s.demoService(w, r)
	if !ok {
		return
	}
	creds, err := demo.Credentials()
	if err != nil {
		writeError(w, r, applog.OpRead, err)
		return
	}
	NewJSONResponse().Body(map[string]string{"email": creds.Email, "password": creds.Password}).Write(w)
}

func (s *Server) handleDemoReset(w http.ResponseWriter, r *http.Request) {
	demo, ok := s.demoService(w, r)
	if !ok {
		return
	}
	res, err := demo.Reset(r.Context())
	if err != nil {
		writeError(w, r, applog.OpReset, err)
		return
	}
	NewJSONResponse().Body(toDemoResultResponse("Dados de demonstração restaurados", res)).Write(w)
}

func (s *Server) handleDemoInitialize(w http.ResponseWriter, r *http.Request) {
	demo, ok := s.demoService(w, r)
	if !ok {
		return
	}
	u, res, err := demo.Initialize(r.Context())
	if err != nil {
		writeError(w, r, applog.OpReset, err)
		return
	}
	s.userCache.Delete(u.ID)
	NewJSONResponse().Body(toDemoResultResponse(
		fmt.Sprintf("Usuário demo %s inicializado", u.Email), res)).Write(w)
}

func (s *Server) handleDemoUpdatePassword(w http.ResponseWriter, r *http.Request) {
	demo, ok := s.demoService(w, r)
	if !ok {
		return
	}
	u, err := demo.EnsureDemoUser(r.Context())
	if err != nil {
		writeError(w, r, applog.OpUpdate, err)
		return
	}
	s.userCache.Delete(u.ID)
	NewJSONResponse().Body(struct {
		Message string       `json:"message"`
		User    userResponse `json:"user"`
	}{"Senha do usuário demo atualizada", toUserResponse(u)}).Write(w)
}
