package queue

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
)

// EnqueuePost schedules a delayed delivery task for one post. The polling
// loop remains the source of truth: the task handler re-checks pending-due
// state, so a post picked up by either path is published once.
func EnqueuePost(asynqClient *asynq.Client, payload PublishPostPayload, delay time.Duration) error {
	taskPayload, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	task := asynq.NewTask(TaskTypePublishPost, taskPayload)

	if delay < 0 {
		delay = 0
	}
	_, err = asynqClient.Enqueue(task, asynq.ProcessIn(delay))
	if err != nil {
		return err
	}

	slog.Info("delivery task scheduled", "post_id", payload.PostID, "delay", delay.String())
	return nil
}
