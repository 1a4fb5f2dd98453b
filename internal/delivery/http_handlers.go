package delivery

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"growthdash/internal/domain"
	"growthdash/internal/usecase"
	"growthdash/pkg/logger"
)

// SessionHeader scopes latest-request-wins to one dashboard view.
const SessionHeader = "X-View-Session"

// HealthChecker is implemented by stores that can verify their connection.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// handles HTTP requests
type HTTPHandlers struct {
	analyticsService  *usecase.AnalyticsService
	credentialService *usecase.CredentialService
	health            HealthChecker
	logger            *logger.Logger
}

func NewHTTPHandlers(
	analyticsService *usecase.AnalyticsService,
	credentialService *usecase.CredentialService,
	health HealthChecker,
	logger *logger.Logger,
) *HTTPHandlers {
	return &HTTPHandlers{
		analyticsService:  analyticsService,
		credentialService: credentialService,
		health:            health,
		logger:            logger,
	}
}

// GetDaily returns the daily view for a range and mode together with the
// source breakdown and lifetime summary for the same range.
func (h *HTTPHandlers) GetDaily(c *gin.Context) {
	ctx := c.Request.Context()

	r, ok := h.parseRange(c)
	if !ok {
		return
	}

	mode, err := domain.ParseViewMode(c.Query("mode"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":      "Invalid view mode",
			"message":    "mode must be one of count, cost, drill",
			"request_id": c.GetString("request_id"),
		})
		return
	}

	result, err := h.analyticsService.Compute(ctx, usecase.ViewRequest{
		Range:   r,
		Mode:    mode,
		Session: c.GetHeader(SessionHeader),
	})
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":       result,
		"request_id": c.GetString("request_id"),
	})
}

// GetSources returns the per-kind source breakdown.
func (h *HTTPHandlers) GetSources(c *gin.Context) {
	r, ok := h.parseRange(c)
	if !ok {
		return
	}

	sources, err := h.analyticsService.Sources(c.Request.Context(), r)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"range":      r,
		"data":       sources,
		"request_id": c.GetString("request_id"),
	})
}

// GetSummary returns the lifetime cost summary.
func (h *HTTPHandlers) GetSummary(c *gin.Context) {
	r, ok := h.parseRange(c)
	if !ok {
		return
	}

	summary, err := h.analyticsService.Summary(c.Request.Context(), r)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":       summary,
		"request_id": c.GetString("request_id"),
	})
}

// GetCredentialStatus reports whether an ad platform is connected.
func (h *HTTPHandlers) GetCredentialStatus(c *gin.Context) {
	status, err := h.credentialService.Status(c.Request.Context(), c.Param("platform"))
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":       status,
		"request_id": c.GetString("request_id"),
	})
}

// GetAPIInfo returns API v1 information and available endpoints
func (h *HTTPHandlers) GetAPIInfo(c *gin.Context) {
	rangeParams := gin.H{
		"from": "Optional start date (YYYY-MM-DD), defaults to the start of the default range",
		"to":   "Optional end date (YYYY-MM-DD), defaults to today",
	}

	c.JSON(http.StatusOK, gin.H{
		"api_version": "v1",
		"service":     "Growth Dashboard Analytics",
		"version":     "1.0.0",
		"description": "Daily goal counts, ad spend and cost-per-acquisition for the growth dashboard",
		"endpoints": gin.H{
			"daily": gin.H{
				"path":        "/api/v1/analytics/daily",
				"description": "Daily buckets in count, cost or drill mode plus source breakdown and summary",
				"parameters": gin.H{
					"from": rangeParams["from"],
					"to":   rangeParams["to"],
					"mode": "Optional view mode: count (default), cost, drill",
				},
				"headers": gin.H{
					SessionHeader: "Optional view session; a newer request for the same session supersedes older ones",
				},
				"example": "/api/v1/analytics/daily?from=2025-01-01&to=2025-01-31&mode=drill",
			},
			"sources": gin.H{
				"path":        "/api/v1/analytics/sources",
				"description": "Source breakdown per goal event kind",
				"parameters":  rangeParams,
			},
			"summary": gin.H{
				"path":        "/api/v1/analytics/summary",
				"description": "Cost per follower, per paid signup and per social signup",
				"parameters":  rangeParams,
			},
			"credentials": gin.H{
				"path":        "/api/v1/credentials/:platform",
				"description": "Connection status of an ad platform",
				"example":     "/api/v1/credentials/meta",
			},
		},
		"request_id": c.GetString("request_id"),
	})
}

// HealthCheck returns the health status of the service
func (h *HTTPHandlers) HealthCheck(c *gin.Context) {
	health := gin.H{
		"status":     "healthy",
		"timestamp":  time.Now().UTC().Format(time.RFC3339),
		"service":    "growthdash",
		"version":    "1.0.0",
		"request_id": c.GetString("request_id"),
	}

	if h.health != nil {
		if err := h.health.Ping(c.Request.Context()); err != nil {
			h.logger.WithContext(c.Request.Context()).WithError(err).Warn("Event store health check failed")
			health["status"] = "unhealthy"
			health["store"] = err.Error()
			c.JSON(http.StatusServiceUnavailable, health)
			return
		}
		health["store"] = "ok"
	}

	c.JSON(http.StatusOK, health)
}

// parseRange reads from/to and writes a 400 when they do not form a range.
func (h *HTTPHandlers) parseRange(c *gin.Context) (domain.DateRange, bool) {
	r, err := h.analyticsService.ResolveRange(c.Query("from"), c.Query("to"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":      "Invalid date range",
			"message":    err.Error(),
			"request_id": c.GetString("request_id"),
		})
		return domain.DateRange{}, false
	}
	return r, true
}

// writeError maps service errors onto status codes.
func (h *HTTPHandlers) writeError(c *gin.Context, err error) {
	requestID := c.GetString("request_id")
	log := h.logger.WithContext(c.Request.Context())

	switch {
	case errors.Is(err, domain.ErrInvalidRange):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":      "Invalid date range",
			"message":    err.Error(),
			"request_id": requestID,
		})
	case errors.Is(err, domain.ErrUnknownMode), errors.Is(err, domain.ErrInvalidPlatform):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":      "Invalid request",
			"message":    err.Error(),
			"request_id": requestID,
		})
	case errors.Is(err, domain.ErrStaleRequest):
		c.JSON(http.StatusConflict, gin.H{
			"error":      "Request superseded",
			"message":    "A newer request for this view session replaced this one",
			"request_id": requestID,
		})
	case errors.Is(err, domain.ErrFetchFailed):
		log.WithError(err).Error("Event store read failed")
		c.JSON(http.StatusBadGateway, gin.H{
			"error":      "Event store unavailable",
			"message":    err.Error(),
			"retryable":  true,
			"request_id": requestID,
		})
	default:
		log.WithError(err).Error("Request failed")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":      "Internal server error",
			"message":    err.Error(),
			"request_id": requestID,
		})
	}
}
