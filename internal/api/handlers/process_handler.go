package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/contact-recon/backend/internal/pipeline"
	"github.com/contact-recon/backend/internal/storage/sqlite"
	"github.com/contact-recon/backend/pkg/logger"
)

type ProcessHandler struct {
	processor *pipeline.Processor
}

func NewProcessHandler(p *pipeline.Processor) *ProcessHandler {
	return &ProcessHandler{processor: p}
}

func (h *ProcessHandler) ProcessRecord(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid record ID",
		})
	}

	outcome, err := h.processor.ProcessRecord(c.Context(), int64(id))
	if errors.Is(err, sqlite.ErrNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Record not found",
		})
	}
	if err != nil {
		logger.Error("Failed to process record", zap.Int("id", id), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to process record",
		})
	}

	return c.JSON(outcome)
}

func (h *ProcessHandler) ProcessBatch(c *fiber.Ctx) error {
	var req struct {
		Limit     int  `json:"limit"`
		Reprocess bool `json:"reprocess"`
	}
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Invalid request body",
			})
		}
	}
	if req.Limit <= 0 {
		req.Limit = 100
	}

	report, err := h.processor.ProcessBatch(c.Context(), req.Limit, req.Reprocess)
	if err != nil {
		logger.Error("Batch processing failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Batch processing failed",
		})
	}

	return c.JSON(report)
}

func (h *ProcessHandler) ProcessDuplicates(c *fiber.Ctx) error {
	report, err := h.processor.SweepDuplicates(c.Context())
	if err != nil {
		logger.Error("Duplicate sweep failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Duplicate sweep failed",
		})
	}

	return c.JSON(report)
}

func (h *ProcessHandler) ProcessSplits(c *fiber.Ctx) error {
	report, err := h.processor.SweepSplits(c.Context())
	if err != nil {
		logger.Error("Split sweep failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Split sweep failed",
		})
	}

	return c.JSON(report)
}

func (h *ProcessHandler) ProcessFull(c *fiber.Ctx) error {
	var req struct {
		Limit     int  `json:"limit"`
		Reprocess bool `json:"reprocess"`
	}
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Invalid request body",
			})
		}
	}
	if req.Limit <= 0 {
		req.Limit = 100
	}

	report, err := h.processor.RunFull(c.Context(), req.Limit, req.Reprocess)
	if err != nil {
		logger.Error("Full pipeline run failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Full pipeline run failed",
		})
	}

	return c.JSON(report)
}
