package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/wonny/pulse/internal/contracts"
	"github.com/wonny/pulse/internal/serving"
	"github.com/wonny/pulse/pkg/logger"
)

const dateFormat = "2006-01-02"

// AnalyticsHandler handles the read-only analytics endpoints
type AnalyticsHandler struct {
	service *serving.Service
	logger  *logger.Logger
}

// NewAnalyticsHandler creates a new analytics handler
func NewAnalyticsHandler(service *serving.Service, log *logger.Logger) *AnalyticsHandler {
	return &AnalyticsHandler{service: service, logger: log}
}

// GetCatalog returns the metric catalog
// GET /api/analytics/metrics
func (h *AnalyticsHandler) GetCatalog(w http.ResponseWriter, r *http.Request) {
	resp, err := h.service.GetCatalog(r.Context())
	if err != nil {
		h.respondServiceError(w, err, "Failed to load metric catalog")
		return
	}
	respondJSON(w, http.StatusOK, resp)
}

// GetDailySeries returns a metric's daily series with baseline bands
// GET /api/analytics/metric/daily?metric_key=&start_date=&end_date=
func (h *AnalyticsHandler) GetDailySeries(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Query().Get("metric_key")
	start, end, err := parseDateRange(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	resp, err := h.service.GetDailySeries(r.Context(), key, start, end)
	if err != nil {
		h.respondServiceError(w, err, "Failed to load daily series")
		return
	}
	respondJSON(w, http.StatusOK, resp)
}

// GetOverview returns dashboard tiles for all metrics
// GET /api/analytics/overview?end_date=
func (h *AnalyticsHandler) GetOverview(w http.ResponseWriter, r *http.Request) {
	var asOf *time.Time
	if raw := r.URL.Query().Get("end_date"); raw != "" {
		d, err := time.Parse(dateFormat, raw)
		if err != nil {
			respondError(w, http.StatusBadRequest, "end_date must be YYYY-MM-DD")
			return
		}
		asOf = &d
	}

	resp, err := h.service.GetOverview(r.Context(), asOf)
	if err != nil {
		h.respondServiceError(w, err, "Failed to load overview")
		return
	}
	respondJSON(w, http.StatusOK, resp)
}

// GetAnomalies returns flagged days in a range
// GET /api/analytics/anomalies?start_date=&end_date=&min_level=
func (h *AnalyticsHandler) GetAnomalies(w http.ResponseWriter, r *http.Request) {
	start, end, err := parseDateRange(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	minLevel := contracts.ParseAnomalyLevel(r.URL.Query().Get("min_level"))

	resp, err := h.service.GetAnomalies(r.Context(), start, end, minLevel)
	if err != nil {
		h.respondServiceError(w, err, "Failed to load anomalies")
		return
	}
	respondJSON(w, http.StatusOK, resp)
}

// GetCorrelations returns precomputed correlations for a metric
// GET /api/analytics/correlations?metric_key=&window_days=
func (h *AnalyticsHandler) GetCorrelations(w http.ResponseWriter, r *http.Request) {
	windowDays := 0
	if raw := r.URL.Query().Get("window_days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			respondError(w, http.StatusBadRequest, "window_days must be an integer")
			return
		}
		windowDays = n
	}

	resp, err := h.service.GetCorrelations(r.Context(), r.URL.Query().Get("metric_key"), windowDays)
	if err != nil {
		h.respondServiceError(w, err, "Failed to load correlations")
		return
	}
	respondJSON(w, http.StatusOK, resp)
}

// GetScores returns daily recovery and strain scores
// GET /api/analytics/scores?start_date=&end_date=
func (h *AnalyticsHandler) GetScores(w http.ResponseWriter, r *http.Request) {
	start, end, err := parseDateRange(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	resp, err := h.service.GetScores(r.Context(), start, end)
	if err != nil {
		h.respondServiceError(w, err, "Failed to load scores")
		return
	}
	respondJSON(w, http.StatusOK, resp)
}

// GetChartContext returns structured explanation context for a chart
// GET /api/analytics/chart-context?metric_key=&start_date=&end_date=&focus_date=
func (h *AnalyticsHandler) GetChartContext(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Query().Get("metric_key")
	start, end, err := parseDateRange(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	var focus *time.Time
	if raw := r.URL.Query().Get("focus_date"); raw != "" {
		d, err := time.Parse(dateFormat, raw)
		if err != nil {
			respondError(w, http.StatusBadRequest, "focus_date must be YYYY-MM-DD")
			return
		}
		focus = &d
	}

	resp, err := h.service.GetChartContext(r.Context(), key, start, end, focus)
	if err != nil {
		h.respondServiceError(w, err, "Failed to build chart context")
		return
	}
	respondJSON(w, http.StatusOK, resp)
}

func (h *AnalyticsHandler) respondServiceError(w http.ResponseWriter, err error, fallback string) {
	if errors.Is(err, serving.ErrInvalidRequest) {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	h.logger.WithError(err).Error(fallback)
	respondError(w, http.StatusInternalServerError, fallback)
}

func parseDateRange(r *http.Request) (time.Time, time.Time, error) {
	start, err := time.Parse(dateFormat, r.URL.Query().Get("start_date"))
	if err != nil {
		return time.Time{}, time.Time{}, errors.New("start_date must be YYYY-MM-DD")
	}
	end, err := time.Parse(dateFormat, r.URL.Query().Get("end_date"))
	if err != nil {
		return time.Time{}, time.Time{}, errors.New("end_date must be YYYY-MM-DD")
	}
	return start, end, nil
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"error": message,
	})
}
