package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/nicnocquee/bluesky-later/internal/service"
)

type CronHandler struct {
	ps service.PublishService
}

func NewCronHandler(ps service.PublishService) *CronHandler {
	return &CronHandler{ps: ps}
}

// PublishDue runs the delivery loop synchronously and reports how the batch
// went. The route is guarded by the shared-secret middleware.
func (h *CronHandler) PublishDue(c *fiber.Ctx) error {
	summary, err := h.ps.Run(c.Context())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	return c.Status(fiber.StatusOK).JSON(summary)
}
