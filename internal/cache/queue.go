package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RefreshJob asks the worker to run the pipeline.
type RefreshJob struct {
	ID          string    `json:"id"`
	RequestedAt time.Time `json:"requested_at"`
	Reason      string    `json:"reason,omitempty"`
}

// RefreshQueue is the Redis list key of pending refresh jobs.
const RefreshQueue = KeyPrefix + "jobs:refresh"

// Enqueue pushes job onto the left of queue.
func Enqueue(ctx context.Context, r *Redis, queue string, job RefreshJob) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("queue marshal: %w", err)
	}
	return r.client.LPush(ctx, queue, data).Err()
}

// Pending returns the number of queued jobs.
func Pending(ctx context.Context, r *Redis, queue string) (int64, error) {
	return r.client.LLen(ctx, queue).Result()
}

// Dequeue blocks up to timeout for a job from the right of queue. A timeout
// or a cancelled ctx yields (nil, nil) so the caller can loop and check for
// shutdown.
func Dequeue(ctx context.Context, r *Redis, queue string, timeout time.Duration) (*RefreshJob, error) {
	result, err := r.client.BRPop(ctx, timeout, queue).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) || ctx.Err() != nil {
			return nil, nil
		}
		return nil, fmt.Errorf("queue dequeue: %w", err)
	}
	// [key, value]
	if len(result) < 2 {
		return nil, nil
	}
	var job RefreshJob
	if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
		return nil, fmt.Errorf("queue unmarshal: %w", err)
	}
	return &job, nil
}

// Queue binds a Redis list key to the refresh job helpers.
type Queue struct {
	r   *Redis
	key string
}

// NewQueue returns the queue stored under key.
func NewQueue(r *Redis, key string) *Queue {
	return &Queue{r: r, key: key}
}

// Push enqueues job.
func (q *Queue) Push(ctx context.Context, job RefreshJob) error {
	return Enqueue(ctx, q.r, q.key, job)
}

// Pop waits up to timeout for the oldest job.
func (q *Queue) Pop(ctx context.Context, timeout time.Duration) (*RefreshJob, error) {
	return Dequeue(ctx, q.r, q.key, timeout)
}

// Len returns the number of pending jobs.
func (q *Queue) Len(ctx context.Context) (int64, error) {
	return Pending(ctx, q.r, q.key)
}
