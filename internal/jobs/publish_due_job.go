package job

import (
	"context"
	"log/slog"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/nicnocquee/bluesky-later/internal/service"
)

// PublishDueJob adapts the publish loop to the in-process cron schedule used
// in local deployments.
type PublishDueJob struct {
	ps service.PublishService
}

func NewPublishDueJob(ps service.PublishService) *PublishDueJob {
	return &PublishDueJob{ps: ps}
}

func (j *PublishDueJob) PublishDuePosts() {
	ctx := context.Background()

	runID, err := gonanoid.New()
	if err != nil {
		runID = "unknown"
	}

	summary, err := j.ps.Run(ctx)
	if err != nil {
		slog.Error("publish run failed", "run_id", runID, "error", err.Error())
		return
	}
	if summary.Attempted > 0 {
		slog.Info("publish run complete",
			"run_id", runID,
			"attempted", summary.Attempted,
			"published", summary.Published,
			"failed", summary.Failed,
		)
	}
}
