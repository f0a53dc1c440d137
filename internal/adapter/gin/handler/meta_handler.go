package handler

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"user-records-api/pkg/logger"
)

const readinessTimeout = 2 * time.Second

// Pinger reports whether a dependency can serve requests.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Endpoint describes one public route in the GET / listing.
type Endpoint struct {
	Method      string `json:"method"`
	Path        string `json:"path"`
	Description string `json:"description"`
}

// ServiceInfo describes the running service.
type ServiceInfo struct {
	Name      string
	Version   string
	Endpoints []Endpoint
}

// MetaHandler serves liveness, readiness and service metadata.
type MetaHandler struct {
	info     ServiceInfo
	db       Pinger
	hostname string
	log      *zap.Logger
}

// NewMetaHandler creates a MetaHandler. db backs the readiness check only.
func NewMetaHandler(info ServiceInfo, db Pinger, log *zap.Logger) *MetaHandler {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	return &MetaHandler{
		info:     info,
		db:       db,
		hostname: hostname,
		log:      log,
	}
}

// Health handles GET /health. It never touches the database.
func (h *MetaHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": h.info.Name,
	})
}

// Index handles GET /
func (h *MetaHandler) Index(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message":   "Application API",
		"version":   h.info.Version,
		"hostname":  h.hostname,
		"endpoints": h.info.Endpoints,
	})
}

// Ready handles GET /ready by pinging the database.
func (h *MetaHandler) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), readinessTimeout)
	defer cancel()

	if h.db == nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "database unavailable"})
		return
	}
	if err := h.db.Ping(ctx); err != nil {
		logger.WithContext(ctx, h.log).Warn("readiness check failed", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "database unavailable"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":   "ready",
		"database": "connected",
		"service":  h.info.Name,
	})
}
