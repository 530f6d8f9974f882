package models

import (
	"time"

	"github.com/nicnocquee/bluesky-later/internal/bluesky"
)

type Post struct {
	ID           int64      `db:"id" json:"id"`
	Content      string     `db:"content" json:"content"`
	ScheduledFor time.Time  `db:"scheduled_for" json:"scheduled_for"`
	ScheduledTz  string     `db:"scheduled_tz" json:"scheduled_tz,omitempty"`
	Status       string     `db:"status" json:"status"` // pending, processing, published, failed
	Error        string     `db:"error" json:"error,omitempty"`
	URL          string     `db:"url" json:"url,omitempty"`
	Image        *PostImage `db:"image" json:"image,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}

// PostImage is the stored reference to a compose-time image: the asset key of
// the raw bytes in the media bucket, the alt text, and the blob handle once
// the image has been uploaded to the PDS.
type PostImage struct {
	AssetKey string           `json:"asset_key,omitempty"`
	Alt      string           `json:"alt"`
	Blob     *bluesky.BlobRef `json:"blob,omitempty"`
}

const (
	PostStatusPending    = "pending"
	PostStatusProcessing = "processing"
	PostStatusPublished  = "published"
	PostStatusFailed     = "failed"
)
