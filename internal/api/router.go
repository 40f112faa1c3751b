package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"golang.org/x/time/rate"

	"github.com/wonny/pulse/internal/api/handlers"
	"github.com/wonny/pulse/pkg/logger"
)

// NewRouter creates and configures the HTTP router
func NewRouter(analytics *handlers.AnalyticsHandler, pipeline *handlers.PipelineHandler, health *handlers.HealthHandler, log *logger.Logger) http.Handler {
	r := mux.NewRouter()

	// Health check
	r.HandleFunc("/health", health.Check).Methods("GET")

	api := r.PathPrefix("/api").Subrouter()

	// Read-only analytics endpoints
	api.HandleFunc("/analytics/metrics", analytics.GetCatalog).Methods("GET")
	api.HandleFunc("/analytics/metric/daily", analytics.GetDailySeries).Methods("GET")
	api.HandleFunc("/analytics/overview", analytics.GetOverview).Methods("GET")
	api.HandleFunc("/analytics/anomalies", analytics.GetAnomalies).Methods("GET")
	api.HandleFunc("/analytics/correlations", analytics.GetCorrelations).Methods("GET")
	api.HandleFunc("/analytics/scores", analytics.GetScores).Methods("GET")
	api.HandleFunc("/analytics/chart-context", analytics.GetChartContext).Methods("GET")

	// Pipeline control
	api.HandleFunc("/pipeline/run", pipeline.Run).Methods("POST")
	api.HandleFunc("/pipeline/status", pipeline.Status).Methods("GET")

	// Apply middleware
	r.Use(loggingMiddleware(log))
	r.Use(recoveryMiddleware(log))
	r.Use(rateLimitMiddleware())

	return r
}

// loggingMiddleware logs HTTP requests
func loggingMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			next.ServeHTTP(w, r)

			log.WithFields(map[string]interface{}{
				"method":   r.Method,
				"path":     r.URL.Path,
				"duration": time.Since(start),
			}).Debug("HTTP request")
		})
	}
}

// recoveryMiddleware recovers from panics
func recoveryMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					log.WithFields(map[string]interface{}{
						"error": err,
						"path":  r.URL.Path,
					}).Error("Panic recovered")

					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					json.NewEncoder(w).Encode(map[string]string{
						"error": "Internal server error",
					})
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}

// rateLimitMiddleware bounds request throughput for the whole API.
// The dashboard is a single-user surface, so a global limiter is enough.
func rateLimitMiddleware() mux.MiddlewareFunc {
	limiter := rate.NewLimiter(rate.Limit(50), 100)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow() {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				json.NewEncoder(w).Encode(map[string]string{
					"error": "Too many requests",
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
