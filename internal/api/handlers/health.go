package handlers

import (
	"net/http"

	"github.com/wonny/pulse/pkg/database"
	"github.com/wonny/pulse/pkg/logger"
	"github.com/wonny/pulse/pkg/redis"
)

// HealthHandler reports service health
type HealthHandler struct {
	db     *database.DB
	redis  *redis.Client
	logger *logger.Logger
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(db *database.DB, redisClient *redis.Client, log *logger.Logger) *HealthHandler {
	return &HealthHandler{db: db, redis: redisClient, logger: log}
}

// Check returns server and dependency health
// GET /health
func (h *HealthHandler) Check(w http.ResponseWriter, r *http.Request) {
	status, err := h.db.HealthCheck(r.Context())
	if err != nil {
		h.logger.WithError(err).Error("Database health check failed")
		respondJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
			"status":   "degraded",
			"service":  "pulse-api",
			"database": status,
		})
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":        "ok",
		"service":       "pulse-api",
		"database":      status,
		"cache_enabled": h.redis.Enabled(),
	})
}
