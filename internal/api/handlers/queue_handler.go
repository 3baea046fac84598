package handlers

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/contact-recon/backend/internal/queue"
	"github.com/contact-recon/backend/internal/storage/models"
	"github.com/contact-recon/backend/internal/storage/sqlite"
	"github.com/contact-recon/backend/pkg/logger"
)

type QueueHandler struct {
	queue *queue.Manager
}

func NewQueueHandler(q *queue.Manager) *QueueHandler {
	return &QueueHandler{queue: q}
}

func (h *QueueHandler) ListEntries(c *fiber.Ctx) error {
	minConfidence, _ := strconv.ParseFloat(c.Query("min_confidence", "0"), 64)

	filter := models.QueueFilter{
		Status:        models.QueueStatus(c.Query("status", string(models.StatusPending))),
		QueueType:     models.QueueType(c.Query("type")),
		MinConfidence: minConfidence,
		Domain:        c.Query("domain"),
		Limit:         c.QueryInt("limit", 50),
		Offset:        c.QueryInt("offset", 0),
	}

	entries, err := h.queue.List(filter)
	if err != nil {
		logger.Error("Failed to list queue entries", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to list queue entries",
		})
	}

	return c.JSON(fiber.Map{
		"entries": entries,
		"count":   len(entries),
		"limit":   filter.Limit,
		"offset":  filter.Offset,
	})
}

func (h *QueueHandler) GetEntry(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid queue entry ID",
		})
	}

	detail, err := h.queue.GetDetail(int64(id))
	if errors.Is(err, sqlite.ErrNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Queue entry not found",
		})
	}
	if err != nil {
		logger.Error("Failed to load queue entry", zap.Int("id", id), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load queue entry",
		})
	}

	return c.JSON(detail)
}

func (h *QueueHandler) ApproveEntry(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid queue entry ID",
		})
	}

	var req struct {
		ActorID       string               `json:"actor_id"`
		Modifications *models.ProposedData `json:"modifications"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if req.ActorID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "actor_id is required",
		})
	}

	entry, err := h.queue.Approve(int64(id), req.ActorID, req.Modifications)
	switch {
	case errors.Is(err, sqlite.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Queue entry not found",
		})
	case errors.Is(err, queue.ErrStateConflict):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "Queue entry already reviewed",
		})
	case err != nil:
		logger.Error("Failed to apply approval", zap.Int("id", id), zap.Error(err))
		// the entry stays approved with the failure on its audit trail
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Approval recorded but apply failed",
			"entry": entry,
		})
	}

	return c.JSON(entry)
}

func (h *QueueHandler) RejectEntry(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid queue entry ID",
		})
	}

	var req struct {
		ActorID string `json:"actor_id"`
		Reason  string `json:"reason"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if req.ActorID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "actor_id is required",
		})
	}

	entry, err := h.queue.Reject(int64(id), req.ActorID, req.Reason)
	switch {
	case errors.Is(err, sqlite.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Queue entry not found",
		})
	case errors.Is(err, queue.ErrStateConflict):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "Queue entry already reviewed",
		})
	case err != nil:
		logger.Error("Failed to reject entry", zap.Int("id", id), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to reject entry",
		})
	}

	return c.JSON(entry)
}

func (h *QueueHandler) BulkApprove(c *fiber.Ctx) error {
	var req struct {
		ActorID       string  `json:"actor_id"`
		MinConfidence float64 `json:"min_confidence"`
		QueueType     string  `json:"queue_type"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if req.ActorID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "actor_id is required",
		})
	}

	results, err := h.queue.BulkApprove(req.ActorID, req.MinConfidence, models.QueueType(req.QueueType))
	if err != nil {
		logger.Error("Bulk approval failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Bulk approval failed",
		})
	}

	applied := 0
	for _, r := range results {
		if r.Applied {
			applied++
		}
	}

	return c.JSON(fiber.Map{
		"results": results,
		"applied": applied,
		"total":   len(results),
	})
}

func (h *QueueHandler) Cleanup(c *fiber.Ctx) error {
	deleted, err := h.queue.Cleanup()
	if err != nil {
		logger.Error("Queue cleanup failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Queue cleanup failed",
		})
	}

	return c.JSON(fiber.Map{
		"deleted": deleted,
	})
}
