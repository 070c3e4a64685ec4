package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sugarcypher/sweetguard/internal/models"
	"github.com/sugarcypher/sweetguard/internal/resolver"
	"github.com/sugarcypher/sweetguard/internal/sugar"
)

// foodResponse is a resolution result as sent to clients
type foodResponse struct {
	Barcode string `json:"barcode"`
	models.Result
	Sugar *sugar.Assessment `json:"sugar,omitempty"`
}

func newFoodResponse(barcode string, res models.Result) foodResponse {
	return foodResponse{
		Barcode: barcode,
		Result:  res,
		Sugar:   sugar.ForRecord(res.Record),
	}
}

// statusFor maps resolver errors onto HTTP statuses
func statusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, resolver.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, resolver.ErrExhausted):
		return http.StatusNotFound
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) handleGetFood(w http.ResponseWriter, r *http.Request) {
	barcode := chi.URLParam(r, "barcode")

	res, err := s.resolver.Resolve(r.Context(), barcode)
	if err != nil {
		s.log.Debug("resolve failed", "barcode", barcode, "error", err, "request_id", requestIDFrom(r.Context()))
		writeJSON(w, statusFor(err), models.Failure(err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, newFoodResponse(barcode, res))
}

func (s *Server) handleCacheStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.resolver.CacheStats(r.Context())
	if err != nil {
		s.log.Error("cache stats failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, models.Failure("cache unavailable"))
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleClearCache(w http.ResponseWriter, r *http.Request) {
	if err := s.resolver.ClearCache(r.Context()); err != nil {
		s.log.Error("clear cache failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, models.Failure("cache unavailable"))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSources(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.resolver.Sources())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
