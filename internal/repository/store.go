package repository

import (
	"context"
	"time"

	"github.com/nicnocquee/bluesky-later/internal/models"
)

// PostStore is the single persistence capability the rest of the system
// depends on. Three implementations exist: an embedded SQLite store, a
// Postgres store for hosted deployments, and an HTTP client speaking to a
// hosted instance's API. Callers never know which one is active.
//
// GetCredentials returns (nil, nil) when no credentials are stored; absence
// is a valid state, not an error.
type PostStore interface {
	// GetPendingDuePosts returns the posts ready for delivery, evaluated at
	// call time: pending posts with scheduled_for at or before now, plus
	// processing rows stuck past the stale cutoff, so a run that died
	// mid-delivery cannot strand its claims. Read-only.
	GetPendingDuePosts(ctx context.Context) ([]*models.Post, error)

	// ClaimDuePosts atomically transitions due pending posts to processing
	// and returns the claimed rows, so overlapping runs never publish the
	// same post twice. Rows stuck in processing longer than the stale cutoff
	// are re-claimed.
	ClaimDuePosts(ctx context.Context) ([]*models.Post, error)

	// ClaimPost claims a single post if it is pending and due. Returns
	// (nil, nil) when the post is missing or not claimable.
	ClaimPost(ctx context.Context, id int64) (*models.Post, error)

	GetAllPosts(ctx context.Context) ([]*models.Post, error)
	GetPost(ctx context.Context, id int64) (*models.Post, error)
	CreatePost(ctx context.Context, post *models.Post) (*models.Post, error)
	UpdatePost(ctx context.Context, id int64, changes *PostChanges) error
	DeletePost(ctx context.Context, id int64) error

	GetCredentials(ctx context.Context) (*models.Credentials, error)
	SetCredentials(ctx context.Context, identifier, password string) error
	DeleteCredentials(ctx context.Context) error
}

// PostChanges is a partial update: nil fields are left untouched.
type PostChanges struct {
	Content      *string           `json:"content,omitempty"`
	ScheduledFor *time.Time        `json:"scheduled_for,omitempty"`
	ScheduledTz  *string           `json:"scheduled_tz,omitempty"`
	Status       *string           `json:"status,omitempty"`
	Error        *string           `json:"error,omitempty"`
	URL          *string           `json:"url,omitempty"`
	Image        *models.PostImage `json:"image,omitempty"`
}

// staleProcessingCutoff is how long a post may sit in processing before a
// claim considers the owning run dead and takes it over.
const staleProcessingCutoff = 10 * time.Minute

func strPtr(s string) *string { return &s }

// StatusChange builds the write-back for a publish outcome: published clears
// the error text, failed records it.
func StatusChange(status, errMsg string) *PostChanges {
	return &PostChanges{
		Status: strPtr(status),
		Error:  strPtr(errMsg),
	}
}
