package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/contact-recon/backend/internal/storage/models"
	"github.com/contact-recon/backend/internal/storage/sqlite"
	"github.com/contact-recon/backend/pkg/logger"
	"github.com/contact-recon/backend/pkg/utils"
)

type RecordsHandler struct {
	db *sqlite.Client
}

func NewRecordsHandler(db *sqlite.Client) *RecordsHandler {
	return &RecordsHandler{db: db}
}

// IngestRecords accepts a batch of raw recipient strings. Records that
// repeat the same raw input within one submission are collapsed; the
// pipeline is a separate, explicit trigger.
func (h *RecordsHandler) IngestRecords(c *fiber.Ctx) error {
	var req struct {
		Records []struct {
			RawInput   string   `json:"raw_input"`
			ContextIDs []string `json:"context_ids"`
		} `json:"records"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if len(req.Records) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "records is required",
		})
	}

	seen := make(map[string]bool, len(req.Records))
	var ids []int64
	skipped := 0

	for _, r := range req.Records {
		if r.RawInput == "" {
			skipped++
			continue
		}
		key := utils.HashString(r.RawInput)
		if seen[key] {
			skipped++
			continue
		}
		seen[key] = true

		id, err := h.db.InsertRawRecord(&models.RawRecord{
			RawInput:   r.RawInput,
			ContextIDs: r.ContextIDs,
		})
		if err != nil {
			logger.Error("Failed to insert raw record", zap.Error(err))
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Failed to insert records",
			})
		}
		ids = append(ids, id)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"inserted":   len(ids),
		"skipped":    skipped,
		"record_ids": ids,
	})
}

func (h *RecordsHandler) GetRecord(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid record ID",
		})
	}

	rec, err := h.db.GetRawRecord(int64(id))
	if errors.Is(err, sqlite.ErrNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Record not found",
		})
	}
	if err != nil {
		logger.Error("Failed to load record", zap.Int("id", id), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load record",
		})
	}

	return c.JSON(rec)
}
