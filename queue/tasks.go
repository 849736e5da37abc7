package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
)

const (
	// GenerateCertificateTask is scheduled each time certificate generation
	// is requested for a student and course run.
	GenerateCertificateTask = "certificate:generate"
)

// GenerationPayload is serialized into the task payload so the worker knows
// which student and course run to generate a certificate for.
type GenerationPayload struct {
	UserID   uint   `json:"user_id"`
	Username string `json:"username"`
	CourseID string `json:"course_id"`
}

// TaskQueue schedules certificate generation work. Enqueueing is
// fire-and-forget; the worker reports nothing back to the caller.
type TaskQueue interface {
	EnqueueGeneration(ctx context.Context, payload GenerationPayload) error
}

// AsynqQueue is the redis-backed TaskQueue used in production.
type AsynqQueue struct {
	client *asynq.Client
}

// NewAsynqQueue connects a TaskQueue to the redis instance at addr.
func NewAsynqQueue(addr string) *AsynqQueue {
	return &AsynqQueue{client: asynq.NewClient(asynq.RedisClientOpt{Addr: addr})}
}

// EnqueueGeneration enqueues a certificate generation job.
func (q *AsynqQueue) EnqueueGeneration(ctx context.Context, payload GenerationPayload) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	task := asynq.NewTask(GenerateCertificateTask, data)
	if _, err := q.client.EnqueueContext(ctx, task, asynq.MaxRetry(5)); err != nil {
		return fmt.Errorf("enqueue generation task: %w", err)
	}
	return nil
}

// Close releases the underlying redis connection.
func (q *AsynqQueue) Close() error {
	return q.client.Close()
}
