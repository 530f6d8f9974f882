package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/nicnocquee/bluesky-later/internal/service"
)

// ProxyHandler exposes the metadata resolver and image relay to browser
// clients that cannot reach them directly because of CORS.
type ProxyHandler struct {
	cards service.CardService
}

func NewProxyHandler(cards service.CardService) *ProxyHandler {
	return &ProxyHandler{cards: cards}
}

func (h *ProxyHandler) GetCard(c *fiber.Ctx) error {
	pageURL := c.Query("url")
	if pageURL == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "url query parameter is required",
		})
	}

	// Resolution never fails; the worst case is a degraded card.
	card := h.cards.ResolveCard(c.Context(), pageURL)
	return c.Status(fiber.StatusOK).JSON(card)
}

func (h *ProxyHandler) GetImage(c *fiber.Ctx) error {
	imageURL := c.Query("url")
	if imageURL == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "url query parameter is required",
		})
	}

	data, contentType, err := h.cards.FetchImage(c.Context(), imageURL)
	if err != nil {
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	if contentType != "" {
		c.Set(fiber.HeaderContentType, contentType)
	}
	return c.Status(fiber.StatusOK).Send(data)
}
