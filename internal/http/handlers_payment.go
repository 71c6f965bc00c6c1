package http

import (
	"net/http"

	applog "despesas/internal/log"
)

func (s *Server) handleMarkPaid(w http.ResponseWriter, r *http.Request) {
	var req paymentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, applog.OpPay, err)
		return
	}
	in, err := req.toInput()
	if err != nil {
		writeError(w, r, applog.OpPay, err)
		return
	}

	p, err := s.expenses.MarkPaid(r.Context(), userID(r), r.PathValue("id"), req.Month, in)
	if err != nil {
		writeError(w, r, applog.OpPay, err)
		return
	}
	NewJSONResponse().Status(http.StatusCreated).Body(struct {
		Message string          `json:"message"`
		Payment paymentResponse `json:"payment"`
	}{"Pagamento registrado com sucesso", toPaymentResponse(p)}).Write(w)
}

func (s *Server) handleUnmarkPaid(w http.ResponseWriter, r *http.Request) {
	month := r.URL.Query().Get("month")
	if err := s.expenses.UnmarkPaid(r.Context(), userID(r), r.PathValue("id"), month); err != nil {
		writeError(w, r, applog.OpUnpay, err)
		return
	}
	NewJSONResponse().Body(message{Message: "Pagamento removido com sucesso"}).Write(w)
}
