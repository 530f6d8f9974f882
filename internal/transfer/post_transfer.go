package transfer

import (
	"time"

	"github.com/nicnocquee/bluesky-later/internal/models"
)

type PostCreation struct {
	Content      string            `json:"content"`
	ScheduledFor time.Time         `json:"scheduled_for"`
	ScheduledTz  string            `json:"scheduled_tz"`
	URL          string            `json:"url"`
	Image        *models.PostImage `json:"image"`
}

type CredentialsUpdate struct {
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
}

type ClaimRequest struct {
	ID int64 `json:"id"`
}

// RunSummary reports one invocation of the publishing loop.
type RunSummary struct {
	Attempted int `json:"attempted"`
	Published int `json:"published"`
	Failed    int `json:"failed"`
}
