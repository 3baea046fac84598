package validation

import (
	"regexp"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

var scriptPattern = regexp.MustCompile(`(?i)(<script|<iframe|javascript:|onerror=|onload=)`)

type Config struct {
	MaxBodySize         int
	MaxActorIDLength    int
	MaxReasonLength     int
	AllowedContentTypes []string
	Logger              *zap.Logger
}

// Middleware enforces content type and basic field sanity on mutating
// requests before they reach a handler.
func Middleware(cfg Config) fiber.Handler {
	if cfg.MaxBodySize == 0 {
		cfg.MaxBodySize = 1 << 20
	}
	if cfg.MaxActorIDLength == 0 {
		cfg.MaxActorIDLength = 128
	}
	if cfg.MaxReasonLength == 0 {
		cfg.MaxReasonLength = 2000
	}
	if len(cfg.AllowedContentTypes) == 0 {
		cfg.AllowedContentTypes = []string{"application/json"}
	}

	return func(c *fiber.Ctx) error {
		if c.Method() != fiber.MethodPost && c.Method() != fiber.MethodPut {
			return c.Next()
		}

		if len(c.Body()) > cfg.MaxBodySize {
			return c.Status(fiber.StatusRequestEntityTooLarge).JSON(fiber.Map{
				"error": "Request body exceeds maximum size",
			})
		}

		if contentType := c.Get("Content-Type"); contentType != "" && len(c.Body()) > 0 {
			allowed := false
			for _, allowedType := range cfg.AllowedContentTypes {
				if strings.Contains(contentType, allowedType) {
					allowed = true
					break
				}
			}
			if !allowed {
				return c.Status(fiber.StatusUnsupportedMediaType).JSON(fiber.Map{
					"error": "Unsupported content type",
				})
			}
		}

		if len(c.Body()) == 0 {
			return c.Next()
		}

		var req map[string]interface{}
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Invalid JSON format",
			})
		}

		if actorID, ok := req["actor_id"].(string); ok {
			if len(actorID) > cfg.MaxActorIDLength || scriptPattern.MatchString(actorID) {
				cfg.Logger.Warn("Rejected suspicious actor_id",
					zap.String("ip", c.IP()), zap.String("path", c.Path()))
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"error": "Invalid actor_id",
				})
			}
		}

		if reason, ok := req["reason"].(string); ok {
			if len(reason) > cfg.MaxReasonLength || scriptPattern.MatchString(reason) {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"error": "Invalid reason",
				})
			}
		}

		return c.Next()
	}
}
