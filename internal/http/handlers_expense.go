package http

import (
	"net/http"

	applog "despesas/internal/log"
)

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	var req createExpenseRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, applog.OpCreate, err)
		return
	}
	in, err := req.toInput()
	if err != nil {
		writeError(w, r, applog.OpCreate, err)
		return
	}

	e, err := s.expenses.CreateExpense(r.Context(), userID(r), in)
	if err != nil {
		writeError(w, r, applog.OpCreate, err)
		return
	}

	NewJSONResponse().
		Status(http.StatusCreated).
		Header("Location", "/api/expenses/"+e.ID+"/variants").
		Body(struct {
			Message string          `json:"message"`
			Expense expenseResponse `json:"expense"`
		}{"Despesa criada com sucesso", toExpenseResponse(e)}).
		Write(w)
}

func (s *Server) handleListMonth(w http.ResponseWriter, r *http.Request) {
	month := queryMonth(r, s.now())
	views, err := s.expenses.ListEffectiveMonth(r.Context(), userID(r), month)
	if err != nil {
		writeError(w, r, applog.OpList, err)
		return
	}

	out := make([]viewResponse, 0, len(views))
	for _, v := range views {
		out = append(out, toViewResponse(v))
	}
	NewJSONResponse().Body(out).Write(w)
}

func (s *Server) handleMonthSummary(w http.ResponseWriter, r *http.Request) {
	month := queryMonth(r, s.now())
	summary, err := s.expenses.MonthSummary(r.Context(), userID(r), month)
	if err != nil {
		writeError(w, r, applog.OpList, err)
		return
	}
	NewJSONResponse().Body(toSummaryResponse(summary)).Write(w)
}

func (s *Server) handleHasAny(w http.ResponseWriter, r *http.Request) {
	has, err := s.expenses.HasAny(r.Context(), userID(r))
	if err != nil {
		writeError(w, r, "has_any", err)
		return
	}
	NewJSONResponse().Body(map[string]bool{"hasAny": has}).Write(w)
}

func (s *Server) handleResolveMonth(w http.ResponseWriter, r *http.Request) {
	view, err := s.expenses.ResolveMonth(r.Context(), userID(r), r.PathValue("id"), r.PathValue("month"))
	if err != nil {
		writeError(w, r, applog.OpRead, err)
		return
	}
	NewJSONResponse().Body(toViewResponse(view)).Write(w)
}

func (s *Server) handleListVariants(w http.ResponseWriter, r *http.Request) {
	variants, err := s.expenses.ListVariants(r.Context(), userID(r), r.PathValue("id"))
	if err != nil {
		writeError(w, r, "list_variants", err)
		return
	}
	NewJSONResponse().Body(toVariantResponses(variants)).Write(w)
}

func (s *Server) handleEditExpense(w http.ResponseWriter, r *http.Request) {
	var req editRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, applog.OpUpdate, err)
		return
	}
	updates, err := req.Updates.toUpdates()
	if err != nil {
		writeError(w, r, applog.OpUpdate, err)
		return
	}

	res, err := s.expenses.EditWithScope(r.Context(), userID(r), r.PathValue("id"), req.Scope, req.Month, updates)
	if err != nil {
		writeError(w, r, applog.OpUpdate, err)
		return
	}
	NewJSONResponse().Body(toEditResponse(res)).Write(w)
}

func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	res, err := s.expenses.DeleteWithScope(r.Context(), userID(r), r.PathValue("id"), q.Get("scope"), q.Get("month"))
	if err != nil {
		writeError(w, r, applog.OpDelete, err)
		return
	}
	NewJSONResponse().Body(toDeleteResponse(res)).Write(w)
}
