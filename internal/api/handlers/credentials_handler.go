package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/nicnocquee/bluesky-later/internal/repository"
	"github.com/nicnocquee/bluesky-later/internal/transfer"
)

type CredentialsHandler struct {
	store repository.PostStore
}

func NewCredentialsHandler(store repository.PostStore) *CredentialsHandler {
	return &CredentialsHandler{store: store}
}

// GetCredentials responds 404 when no credentials are stored; remote store
// clients translate that into absence rather than an error.
func (h *CredentialsHandler) GetCredentials(c *fiber.Ctx) error {
	creds, err := h.store.GetCredentials(c.Context())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "unable to load credentials",
		})
	}
	if creds == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "no credentials stored",
		})
	}
	return c.Status(fiber.StatusOK).JSON(creds)
}

func (h *CredentialsHandler) SetCredentials(c *fiber.Ctx) error {
	var cu transfer.CredentialsUpdate
	if err := c.BodyParser(&cu); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "unable to parse request body",
		})
	}
	if cu.Identifier == "" || cu.Password == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "identifier and password are required",
		})
	}

	if err := h.store.SetCredentials(c.Context(), cu.Identifier, cu.Password); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "unable to store credentials",
		})
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *CredentialsHandler) DeleteCredentials(c *fiber.Ctx) error {
	if err := h.store.DeleteCredentials(c.Context()); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "unable to delete credentials",
		})
	}
	return c.SendStatus(fiber.StatusNoContent)
}
