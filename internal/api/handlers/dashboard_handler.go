package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	redisc "github.com/contact-recon/backend/internal/cache/redis"
	"github.com/contact-recon/backend/internal/storage/models"
	"github.com/contact-recon/backend/internal/storage/sqlite"
	"github.com/contact-recon/backend/pkg/logger"
)

type DashboardHandler struct {
	db       *sqlite.Client
	redis    *redisc.Client
	cacheTTL time.Duration
}

func NewDashboardHandler(db *sqlite.Client, redis *redisc.Client, cacheTTL time.Duration) *DashboardHandler {
	return &DashboardHandler{db: db, redis: redis, cacheTTL: cacheTTL}
}

// GetSummary aggregates queue, extraction and store counts. Counting
// queries hit every table, so the summary is served from redis for a
// short TTL when a cache is configured.
func (h *DashboardHandler) GetSummary(c *fiber.Ctx) error {
	if h.redis != nil {
		var cached models.DashboardSummary
		if hit, err := h.redis.GetDashboard(c.Context(), &cached); err == nil && hit {
			return c.JSON(cached)
		}
	}

	summary, err := h.buildSummary()
	if err != nil {
		logger.Error("Failed to build dashboard summary", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to build dashboard summary",
		})
	}

	if h.redis != nil {
		if err := h.redis.SetDashboard(c.Context(), summary, h.cacheTTL); err != nil {
			logger.Warn("Failed to cache dashboard summary", zap.Error(err))
		}
	}

	return c.JSON(summary)
}

func (h *DashboardHandler) buildSummary() (*models.DashboardSummary, error) {
	byStatus, err := h.db.CountQueueByStatus()
	if err != nil {
		return nil, err
	}
	byType, err := h.db.CountQueueByType()
	if err != nil {
		return nil, err
	}
	byExtraction, err := h.db.ExtractionStatusCounts()
	if err != nil {
		return nil, err
	}
	identities, err := h.db.CountIdentities()
	if err != nil {
		return nil, err
	}
	records, err := h.db.CountRawRecords()
	if err != nil {
		return nil, err
	}

	return &models.DashboardSummary{
		QueueByStatus:      byStatus,
		QueueByType:        byType,
		ExtractionByStatus: byExtraction,
		Identities:         identities,
		RawRecords:         records,
		GeneratedAt:        time.Now(),
	}, nil
}
