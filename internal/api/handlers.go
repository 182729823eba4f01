package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"tollfee/internal/integrations/csvfile"
	"tollfee/internal/metrics"
	"tollfee/internal/model"
	"tollfee/internal/store"
	"tollfee/internal/toll"
)

// Event types published to the stream and to webhooks.
const (
	EventPassageCreated   = "passage.created"
	EventPassageDeleted   = "passage.deleted"
	EventPassagesImported = "passages.imported"
	EventPassagesCleared  = "passages.cleared"
)

// Health
func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) ReadyHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 500*time.Millisecond)
	defer cancel()
	if err := s.Store.Ping(ctx); err != nil {
		writeProblem(w, http.StatusServiceUnavailable, "Not Ready", err.Error(), r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// VehicleTypesHandler handles GET /api/meta/vehicle-types
func (s *Server) VehicleTypesHandler(w http.ResponseWriter, r *http.Request) {
	writeData(w, http.StatusOK, model.VehicleTypeOptions())
}

// ListPassagesHandler handles GET /api/passages. Charges always come from a full
// recompute over the stored passages.
func (s *Server) ListPassagesHandler(w http.ResponseWriter, r *http.Request) {
	passages, err := s.Store.ListPassages(r.Context())
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "List passages failed", err.Error(), r.URL.Path)
		return
	}
	views, err := s.views(passages)
	if err != nil {
		s.calculationFailed(w, r, err)
		return
	}
	writeData(w, http.StatusOK, views)
}

// CreatePassageHandler handles POST /api/passages
func (s *Server) CreatePassageHandler(w http.ResponseWriter, r *http.Request) {
	in, err := decodePassageInput(w, r)
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
		return
	}
	if fe := in.Validate(); fe != nil {
		writeValidationProblem(w, r, fe.Error(), fe)
		return
	}
	p, err := s.Store.CreatePassage(r.Context(), in)
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "Create passage failed", err.Error(), r.URL.Path)
		return
	}
	metrics.PassagesIngested.WithLabelValues(string(p.VehicleType), "api").Inc()

	// A charge depends only on the passages of the same vehicle.
	same, err := s.Store.ListPassagesByVehicle(r.Context(), p.VehicleID)
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "List passages failed", err.Error(), r.URL.Path)
		return
	}
	charges, err := s.calculate(same)
	if err != nil {
		s.calculationFailed(w, r, err)
		return
	}
	view := model.NewPassageView(p, charges[p.ID])
	s.publish(r.Context(), EventPassageCreated, view)
	writeData(w, http.StatusCreated, view)
}

// ImportPassagesHandler handles POST /api/passages/import with a CSV body. Nothing
// is stored unless every row is valid.
func (s *Server) ImportPassagesHandler(w http.ResponseWriter, r *http.Request) {
	ct := strings.ToLower(r.Header.Get("Content-Type"))
	if ct != "" && !strings.HasPrefix(ct, "text/csv") && !strings.HasPrefix(ct, "text/plain") {
		writeProblem(w, http.StatusUnsupportedMediaType, "Unsupported Media Type", "send text/csv", r.URL.Path)
		return
	}
	ins, err := csvfile.Parse(r.Context(), http.MaxBytesReader(w, r.Body, maxCSVBody))
	var pe *csvfile.ParseError
	switch {
	case errors.As(err, &pe):
		writeValidationProblem(w, r, pe.Error(), pe.Rows)
		return
	case err != nil:
		writeProblem(w, http.StatusBadRequest, "Invalid CSV", err.Error(), r.URL.Path)
		return
	case len(ins) == 0:
		writeProblem(w, http.StatusBadRequest, "Invalid CSV", "no passages in file", r.URL.Path)
		return
	}
	created, err := s.Store.CreatePassages(r.Context(), ins)
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "Import failed", err.Error(), r.URL.Path)
		return
	}
	for _, p := range created {
		metrics.PassagesIngested.WithLabelValues(string(p.VehicleType), "csv").Inc()
	}
	result := map[string]int{"created": len(created)}
	s.publish(r.Context(), EventPassagesImported, result)
	writeData(w, http.StatusCreated, result)
}

// DeletePassageHandler handles DELETE /api/passages/{id}
func (s *Server) DeletePassageHandler(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.Store.DeletePassage(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeProblem(w, http.StatusNotFound, "Passage not found", "", r.URL.Path)
			return
		}
		writeProblem(w, http.StatusInternalServerError, "Delete passage failed", err.Error(), r.URL.Path)
		return
	}
	s.publish(r.Context(), EventPassageDeleted, map[string]string{"id": id})
	w.WriteHeader(http.StatusNoContent)
}

// ClearPassagesHandler handles DELETE /api/passages
func (s *Server) ClearPassagesHandler(w http.ResponseWriter, r *http.Request) {
	if err := s.Store.ClearPassages(r.Context()); err != nil {
		writeProblem(w, http.StatusInternalServerError, "Clear passages failed", err.Error(), r.URL.Path)
		return
	}
	s.publish(r.Context(), EventPassagesCleared, map[string]any{})
	w.WriteHeader(http.StatusNoContent)
}

// DailyStatementHandler handles GET /api/vehicles/{vehicleId}/days/{date}
func (s *Server) DailyStatementHandler(w http.ResponseWriter, r *http.Request) {
	vehicleID := strings.TrimSpace(chi.URLParam(r, "vehicleId"))
	date, err := toll.ParseDateKey(chi.URLParam(r, "date"))
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid date", err.Error(), r.URL.Path)
		return
	}
	passages, err := s.Store.ListPassagesByVehicle(r.Context(), vehicleID)
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "List passages failed", err.Error(), r.URL.Path)
		return
	}
	views, err := s.views(passages)
	if err != nil {
		s.calculationFailed(w, r, err)
		return
	}
	cal := s.Engine.Calendar()
	st := model.DailyStatement{VehicleID: vehicleID, Date: date, Passages: []model.PassageView{}}
	for _, v := range views {
		at, err := toll.ParseTimestamp(v.Timestamp)
		if err != nil || cal.LocalDateKey(at) != date {
			continue
		}
		st.Passages = append(st.Passages, v)
		st.Total += v.ChargedFee
	}
	writeJSON(w, http.StatusOK, st)
}

// WebhookDLQHandler handles GET /api/admin/webhook-dlq
func (s *Server) WebhookDLQHandler(w http.ResponseWriter, r *http.Request) {
	items, err := s.Store.ListWebhookDLQ(r.Context(), 100)
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "List dead letters failed", err.Error(), r.URL.Path)
		return
	}
	writeData(w, http.StatusOK, items)
}

// views merges passages, in their given order, with freshly computed charges.
func (s *Server) views(passages []model.Passage) ([]model.PassageView, error) {
	charges, err := s.calculate(passages)
	if err != nil {
		return nil, err
	}
	out := make([]model.PassageView, 0, len(passages))
	for _, p := range passages {
		out = append(out, model.NewPassageView(p, charges[p.ID]))
	}
	return out, nil
}

func (s *Server) calculationFailed(w http.ResponseWriter, r *http.Request, err error) {
	var te *toll.TimestampError
	detail := err.Error()
	if errors.As(err, &te) {
		detail = fmt.Sprintf("stored passage %s has an unresolvable timestamp %q", te.PassageID, te.Value)
	}
	s.Logger.Error("charge calculation failed", zap.Error(err))
	writeProblem(w, http.StatusInternalServerError, "Charge calculation failed", detail, r.URL.Path)
}
