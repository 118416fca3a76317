package tasks

import (
	"context"

	"github.com/redis/go-redis/v9"
)

const (
	TypeSessionCleanup = "session_cleanup"
	TypeUploadCheck    = "upload_check"
)

type Task struct {
	Type     string `json:"type"`
	UploadID string `json:"uploadId,omitempty"`
}

// Queue appends tasks to the redis stream read by the worker.
type Queue struct {
	client *redis.Client
	stream string
}

func NewQueue(client *redis.Client, stream string) *Queue {
	return &Queue{client: client, stream: stream}
}

func (q *Queue) Enqueue(ctx context.Context, task Task) error {
	values := map[string]any{"type": task.Type}
	if task.UploadID != "" {
		values["uploadId"] = task.UploadID
	}
	return q.client.XAdd(ctx, &redis.XAddArgs{
		Stream: q.stream,
		Values: values,
	}).Err()
}
