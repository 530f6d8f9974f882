package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/nicnocquee/bluesky-later/internal/bluesky"
	"github.com/nicnocquee/bluesky-later/internal/models"
	"github.com/nicnocquee/bluesky-later/internal/repository"
	"github.com/nicnocquee/bluesky-later/internal/transfer"
)

// PublishService runs the delivery loop: select due posts, build payloads,
// publish them and record the terminal status. One createSession per run,
// posts processed sequentially in selection order, per-post errors contained.
type PublishService interface {
	// Run processes every due pending post once. Only store and
	// authentication errors abort the run.
	Run(ctx context.Context) (*transfer.RunSummary, error)

	// RunOne publishes a single post if it is still pending and due; a no-op
	// otherwise. Used by the delayed delivery queue.
	RunOne(ctx context.Context, postID int64) error
}

type publishService struct {
	store    repository.PostStore
	pds      PDSClient
	payloads PayloadService
}

func NewPublishService(store repository.PostStore, pds PDSClient, payloads PayloadService) PublishService {
	return &publishService{
		store:    store,
		pds:      pds,
		payloads: payloads,
	}
}

func (s *publishService) Run(ctx context.Context) (*transfer.RunSummary, error) {
	summary := &transfer.RunSummary{}

	due, err := s.store.GetPendingDuePosts(ctx)
	if err != nil {
		return nil, fmt.Errorf("select due posts: %w", err)
	}
	if len(due) == 0 {
		return summary, nil
	}

	creds, err := s.store.GetCredentials(ctx)
	if err != nil {
		return nil, fmt.Errorf("load credentials: %w", err)
	}
	if creds == nil {
		// Without credentials nothing can be attempted. Leave the pending
		// posts untouched for a later run.
		slog.Warn("no credentials stored, skipping publish run", "due_posts", len(due))
		return summary, nil
	}

	session, err := s.pds.CreateSession(ctx, creds.Identifier, creds.Password)
	if err != nil {
		return nil, fmt.Errorf("authenticate: %w", err)
	}

	claimed, err := s.store.ClaimDuePosts(ctx)
	if err != nil {
		return nil, fmt.Errorf("claim due posts: %w", err)
	}

	for _, post := range claimed {
		summary.Attempted++
		if s.publishOne(ctx, post, session) {
			summary.Published++
		} else {
			summary.Failed++
		}
	}

	return summary, nil
}

func (s *publishService) RunOne(ctx context.Context, postID int64) error {
	post, err := s.store.ClaimPost(ctx, postID)
	if err != nil {
		return fmt.Errorf("claim post %d: %w", postID, err)
	}
	if post == nil {
		// Already published, failed, deleted, or not due yet.
		return nil
	}

	creds, err := s.store.GetCredentials(ctx)
	if err != nil {
		return fmt.Errorf("load credentials: %w", err)
	}
	if creds == nil {
		slog.Warn("no credentials stored, releasing claimed post", "post_id", postID)
		s.release(ctx, post.ID)
		return nil
	}

	session, err := s.pds.CreateSession(ctx, creds.Identifier, creds.Password)
	if err != nil {
		s.release(ctx, post.ID)
		return fmt.Errorf("authenticate: %w", err)
	}

	s.publishOne(ctx, post, session)
	return nil
}

// publishOne builds and submits a single post, then writes the terminal
// status back. Build and publish failures are recorded as failed on the post
// itself and never abort the caller's batch.
func (s *publishService) publishOne(ctx context.Context, post *models.Post, session *bluesky.Session) bool {
	record, err := s.payloads.Build(ctx, post, session)
	if err != nil {
		s.markFailed(ctx, post.ID, err)
		return false
	}

	resp, err := s.pds.CreateRecord(ctx, session, record)
	if err != nil {
		s.markFailed(ctx, post.ID, err)
		return false
	}

	if err := s.store.UpdatePost(ctx, post.ID, repository.StatusChange(models.PostStatusPublished, "")); err != nil {
		slog.Error("failed to record published status", "post_id", post.ID, "error", err.Error())
	}
	slog.Info("post published", "post_id", post.ID, "uri", resp.URI)
	return true
}

func (s *publishService) markFailed(ctx context.Context, postID int64, cause error) {
	slog.Info("post publish failed", "post_id", postID, "error", cause.Error())
	if err := s.store.UpdatePost(ctx, postID, repository.StatusChange(models.PostStatusFailed, cause.Error())); err != nil {
		slog.Error("failed to record failed status", "post_id", postID, "error", err.Error())
	}
}

func (s *publishService) release(ctx context.Context, postID int64) {
	if err := s.store.UpdatePost(ctx, postID, repository.StatusChange(models.PostStatusPending, "")); err != nil {
		slog.Error("failed to release claimed post", "post_id", postID, "error", err.Error())
	}
}
