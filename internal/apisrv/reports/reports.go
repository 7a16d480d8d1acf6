// Package reports exposes the report service over the JSON reporting
// surface consumed by the dashboard.
package reports

import (
	"errors"
	"net/http"
	"time"

	"log/slog"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"github.com/dineops/pos-insights-manager/internal/dto"
	"github.com/dineops/pos-insights-manager/internal/entity"
	"github.com/dineops/pos-insights-manager/internal/pos"
	"github.com/dineops/pos-insights-manager/internal/report"
)

// Server handles the reporting routes.
type Server struct {
	svc *report.Service
}

func New(svc *report.Service) *Server {
	return &Server{svc: svc}
}

// Routes mounts the reporting surface on a chi router.
func (s *Server) Routes(r chi.Router) {
	r.Post("/insights", s.handleInsights)
	r.Post("/coverage", s.handleCoverage)
}

func (s *Server) handleInsights(w http.ResponseWriter, r *http.Request) {
	var req dto.InsightsRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		_ = render.Render(w, r, ErrInvalidRequest(err))
		return
	}

	svcReq, err := req.ToReportRequest()
	if err != nil {
		_ = render.Render(w, r, ErrInvalidRequest(err))
		return
	}

	rep, err := s.svc.BuildInsights(r.Context(), svcReq)
	if err != nil {
		s.renderServiceError(w, r, err)
		return
	}
	render.JSON(w, r, dto.ConvertInsightsReport(rep))
}

type coverageRequest struct {
	RestaurantId string `json:"restaurantId"`
	StartDate    string `json:"startDate"`
	EndDate      string `json:"endDate"`
}

func (s *Server) handleCoverage(w http.ResponseWriter, r *http.Request) {
	var req coverageRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		_ = render.Render(w, r, ErrInvalidRequest(err))
		return
	}

	start, err := time.ParseInLocation(entity.DateLayout, req.StartDate, time.UTC)
	if err != nil {
		_ = render.Render(w, r, ErrInvalidRequest(err))
		return
	}
	end, err := time.ParseInLocation(entity.DateLayout, req.EndDate, time.UTC)
	if err != nil {
		_ = render.Render(w, r, ErrInvalidRequest(err))
		return
	}

	rep, err := s.svc.Coverage(r.Context(), req.RestaurantId, start, end)
	if err != nil {
		s.renderServiceError(w, r, err)
		return
	}
	render.JSON(w, r, dto.ConvertCoverageReport(rep))
}

func (s *Server) renderServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, pos.ErrInvalidRange),
		errors.Is(err, report.ErrNoRestaurants):
		_ = render.Render(w, r, ErrInvalidRequest(err))
	case errors.Is(err, report.ErrMirrorDisabled):
		_ = render.Render(w, r, ErrUnavailable(err))
	default:
		slog.Default().ErrorContext(r.Context(), "report request failed",
			slog.String("err", err.Error()))
		_ = render.Render(w, r, ErrInternalServerError(err))
	}
}
