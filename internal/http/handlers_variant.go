package http

import (
	"fmt"
	"net/http"
	"strings"

	"despesas/internal/core"
	applog "despesas/internal/log"
)

// handleSaveVariant merges the override fields into one month's variant.
func (s *Server) handleSaveVariant(w http.ResponseWriter, r *http.Request) {
	var req variantRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, applog.OpUpdate, err)
		return
	}
	patch, err := req.toPatch()
	if err != nil {
		writeError(w, r, applog.OpUpdate, err)
		return
	}

	v, err := s.variants.SaveMonthVariant(r.Context(), userID(r), r.PathValue("id"), req.Month, patch)
	if err != nil {
		writeError(w, r, applog.OpUpdate, err)
		return
	}
	NewJSONResponse().Body(struct {
		Message string          `json:"message"`
		Variant variantResponse `json:"variant"`
	}{"Variação salva com sucesso", toVariantResponse(v)}).Write(w)
}

// handleSpreadVariant applies the override fields to one month ("only") or
// from a month onward ("future", the default).
func (s *Server) handleSpreadVariant(w http.ResponseWriter, r *http.Request) {
	var req variantRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, applog.OpUpdate, err)
		return
	}
	patch, err := req.toPatch()
	if err != nil {
		writeError(w, r, applog.OpUpdate, err)
		return
	}

	scope := core.ScopeFuture
	if raw := strings.TrimSpace(req.Scope); raw != "" {
		scope = core.Scope(raw)
	}

	switch scope {
	case core.ScopeOnly:
		v, err := s.variants.SaveMonthVariant(r.Context(), userID(r), r.PathValue("id"), req.Month, patch)
		if err != nil {
			writeError(w, r, applog.OpUpdate, err)
			return
		}
		NewJSONResponse().Body(struct {
			Message string          `json:"message"`
			Scope   string          `json:"scope"`
			Variant variantResponse `json:"variant"`
		}{"Variação salva com sucesso", string(scope), toVariantResponse(v)}).Write(w)
	case core.ScopeFuture:
		outcomes, err := s.variants.SpreadFromMonth(r.Context(), userID(r), r.PathValue("id"), req.Month, patch)
		if err != nil {
			writeError(w, r, applog.OpUpdate, err)
			return
		}
		NewJSONResponse().Body(map[string]any{
			"message": fmt.Sprintf("Variação aplicada a %d meses", len(outcomes)),
			"scope":   string(scope),
			"months":  outcomes,
		}).Write(w)
	default:
		writeError(w, r, applog.OpUpdate, fmt.Errorf("%w: %q", core.ErrInvalidScope, req.Scope))
	}
}
