package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/contact-recon/backend/internal/domainpattern"
	"github.com/contact-recon/backend/pkg/logger"
)

type DomainHandler struct {
	analyzer *domainpattern.Analyzer
}

func NewDomainHandler(a *domainpattern.Analyzer) *DomainHandler {
	return &DomainHandler{analyzer: a}
}

func (h *DomainHandler) GetPattern(c *fiber.Ctx) error {
	domain := c.Params("domain")
	if domain == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Domain is required",
		})
	}

	pattern, err := h.analyzer.Analyze(c.Context(), domain)
	if err != nil {
		logger.Error("Domain analysis failed", zap.String("domain", domain), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Domain analysis failed",
		})
	}

	return c.JSON(pattern)
}

func (h *DomainHandler) RefreshPattern(c *fiber.Ctx) error {
	domain := c.Params("domain")
	if domain == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Domain is required",
		})
	}

	pattern, err := h.analyzer.Refresh(c.Context(), domain)
	if err != nil {
		logger.Error("Domain refresh failed", zap.String("domain", domain), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Domain refresh failed",
		})
	}

	return c.JSON(pattern)
}
