package handler

import (
	"context"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/pagofacil-pos/api/internal/domain"
	"github.com/pagofacil-pos/api/internal/middleware"
	"github.com/pagofacil-pos/api/internal/service"
)

// ReportServicer defines the service methods needed by report handlers.
type ReportServicer interface {
	Daily(ctx context.Context, actor domain.Actor, requestedDay string) (*service.DailyReport, error)
}

// ReportHandler handles reporting endpoints.
type ReportHandler struct {
	svc ReportServicer
}

func NewReportHandler(svc ReportServicer) *ReportHandler {
	return &ReportHandler{svc: svc}
}

func (h *ReportHandler) RegisterRoutes(r chi.Router) {
	r.Get("/daily", h.Daily)
}

// Daily handles GET /reports/daily?dayKey=YYYY-MM-DD. The service coerces
// non-admin callers to today and to their own sales.
func (h *ReportHandler) Daily(w http.ResponseWriter, r *http.Request) {
	actor := middleware.ActorFromContext(r.Context())

	report, err := h.svc.Daily(r.Context(), actor, r.URL.Query().Get("dayKey"))
	if err != nil {
		if errors.Is(err, service.ErrInvalidDayKey) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		log.Printf("ERROR: daily report: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, report)
}
