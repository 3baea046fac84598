package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"

	redisc "github.com/contact-recon/backend/internal/cache/redis"
	"github.com/contact-recon/backend/internal/storage/sqlite"
)

type HealthHandler struct {
	db    *sqlite.Client
	redis *redisc.Client
}

func NewHealthHandler(db *sqlite.Client, redis *redisc.Client) *HealthHandler {
	return &HealthHandler{db: db, redis: redis}
}

func (h *HealthHandler) Check(c *fiber.Ctx) error {
	status := "healthy"
	checks := fiber.Map{}

	if err := h.db.Ping(); err != nil {
		status = "unhealthy"
		checks["sqlite"] = err.Error()
	} else {
		checks["sqlite"] = "ok"
	}

	if h.redis != nil {
		if err := h.redis.Ping(c.Context()); err != nil {
			status = "degraded"
			checks["redis"] = err.Error()
		} else {
			checks["redis"] = "ok"
		}
	}

	code := fiber.StatusOK
	if status == "unhealthy" {
		code = fiber.StatusServiceUnavailable
	}

	return c.Status(code).JSON(fiber.Map{
		"status": status,
		"checks": checks,
		"time":   time.Now().Unix(),
	})
}
