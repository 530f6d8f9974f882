package handlers

import (
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/hibiken/asynq"
	"github.com/nicnocquee/bluesky-later/internal/models"
	"github.com/nicnocquee/bluesky-later/internal/queue"
	"github.com/nicnocquee/bluesky-later/internal/repository"
	"github.com/nicnocquee/bluesky-later/internal/transfer"
)

type PostHandler struct {
	store       repository.PostStore
	AsynqClient *asynq.Client
}

// NewPostHandler creates the CRUD handlers for posts. asynqClient may be nil
// when delayed delivery is not configured; the polling loop then handles all
// deliveries.
func NewPostHandler(store repository.PostStore, asynqClient *asynq.Client) *PostHandler {
	return &PostHandler{store: store, AsynqClient: asynqClient}
}

func (h *PostHandler) CreatePost(c *fiber.Ctx) error {
	var pc transfer.PostCreation
	if err := c.BodyParser(&pc); err != nil {
		slog.Info(err.Error())
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "unable to parse request body",
		})
	}

	if pc.Content == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "content is required",
		})
	}
	if pc.ScheduledFor.IsZero() {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "scheduled_for is required",
		})
	}

	post, err := h.store.CreatePost(c.Context(), &models.Post{
		Content:      pc.Content,
		ScheduledFor: pc.ScheduledFor,
		ScheduledTz:  pc.ScheduledTz,
		URL:          pc.URL,
		Image:        pc.Image,
	})
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	if h.AsynqClient != nil {
		delay := time.Until(post.ScheduledFor)
		if err := queue.EnqueuePost(h.AsynqClient, queue.PublishPostPayload{PostID: post.ID}, delay); err != nil {
			// The polling loop still delivers the post; scheduling the task
			// is an optimization, not a requirement.
			slog.Error("failed to enqueue delivery task", "post_id", post.ID, "error", err.Error())
		}
	}

	return c.Status(fiber.StatusCreated).JSON(post)
}

func (h *PostHandler) ListPosts(c *fiber.Ctx) error {
	posts, err := h.store.GetAllPosts(c.Context())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "unable to list posts",
		})
	}
	if posts == nil {
		posts = []*models.Post{}
	}
	return c.Status(fiber.StatusOK).JSON(posts)
}

func (h *PostHandler) ListDuePosts(c *fiber.Ctx) error {
	posts, err := h.store.GetPendingDuePosts(c.Context())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "unable to list due posts",
		})
	}
	if posts == nil {
		posts = []*models.Post{}
	}
	return c.Status(fiber.StatusOK).JSON(posts)
}

// ClaimPosts atomically claims due pending posts for processing. With an id
// in the body only that post is claimed; the response is the list of claimed
// posts, possibly empty.
func (h *PostHandler) ClaimPosts(c *fiber.Ctx) error {
	var req transfer.ClaimRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "unable to parse request body",
			})
		}
	}

	var posts []*models.Post
	var err error
	if req.ID != 0 {
		var post *models.Post
		post, err = h.store.ClaimPost(c.Context(), req.ID)
		if post != nil {
			posts = []*models.Post{post}
		}
	} else {
		posts, err = h.store.ClaimDuePosts(c.Context())
	}
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "unable to claim posts",
		})
	}

	if posts == nil {
		posts = []*models.Post{}
	}
	return c.Status(fiber.StatusOK).JSON(posts)
}

func (h *PostHandler) GetPost(c *fiber.Ctx) error {
	id, err := GetPostID(c)
	if err != nil {
		return err
	}

	post, err := h.store.GetPost(c.Context(), id)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "unable to load post",
		})
	}
	if post == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "post not found",
		})
	}
	return c.Status(fiber.StatusOK).JSON(post)
}

func (h *PostHandler) UpdatePost(c *fiber.Ctx) error {
	id, err := GetPostID(c)
	if err != nil {
		return err
	}

	var changes repository.PostChanges
	if err := c.BodyParser(&changes); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "unable to parse request body",
		})
	}

	if err := h.store.UpdatePost(c.Context(), id, &changes); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "unable to update post",
		})
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *PostHandler) DeletePost(c *fiber.Ctx) error {
	id, err := GetPostID(c)
	if err != nil {
		return err
	}

	if err := h.store.DeletePost(c.Context(), id); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "unable to delete post",
		})
	}
	return c.SendStatus(fiber.StatusNoContent)
}
