package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// MaxRetries is the number of attempts before a job is dead-lettered.
const MaxRetries = 3

// JobType identifies the job kind.
type JobType string

const JobSendQRCodes JobType = "send_qr_codes"

// SendQRCodesPayload asks the worker to email QR codes. Empty ParticipantIDs
// means every participant of the event with an email address.
type SendQRCodesPayload struct {
	EventID        string   `json:"event_id"`
	ParticipantIDs []string `json:"participant_ids,omitempty"`
}

// Job is the envelope stored on the queue.
type Job struct {
	ID        string          `json:"id"`
	Type      JobType         `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Attempt   int             `json:"attempt"`
	CreatedAt time.Time       `json:"created_at"`
}

// NewJob wraps a payload in a fresh envelope.
func NewJob(t JobType, payload any) (Job, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return Job{}, fmt.Errorf("marshal payload: %w", err)
	}
	return Job{ID: uuid.NewString(), Type: t, Payload: body, CreatedAt: time.Now().UTC()}, nil
}

// Queue is the abstraction over different backends.
type Queue interface {
	Publish(ctx context.Context, job Job) error
	Consume(ctx context.Context) (<-chan Job, error)
	// Retry requeues a failed job, or dead-letters it once MaxRetries is reached.
	// It reports whether the job was dead-lettered.
	Retry(ctx context.Context, job Job) (bool, error)
}

// InMemory is a channel-backed queue for dev/testing.
type InMemory struct {
	ch  chan Job
	mu  sync.Mutex
	dlq []Job
}

// NewInMemory creates a bounded in-memory queue.
func NewInMemory(size int) *InMemory {
	return &InMemory{ch: make(chan Job, size)}
}

// Publish enqueues a job.
func (q *InMemory) Publish(ctx context.Context, job Job) error {
	select {
	case q.ch <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Consume returns a channel for workers.
func (q *InMemory) Consume(ctx context.Context) (<-chan Job, error) {
	out := make(chan Job)
	go func() {
		defer close(out)
		for {
			select {
			case job := <-q.ch:
				select {
				case out <- job:
				case <-ctx.Done():
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func (q *InMemory) Retry(ctx context.Context, job Job) (bool, error) {
	job.Attempt++
	if job.Attempt >= MaxRetries {
		q.mu.Lock()
		q.dlq = append(q.dlq, job)
		q.mu.Unlock()
		return true, nil
	}
	return false, q.Publish(ctx, job)
}

// DeadLetters returns a snapshot of dead-lettered jobs.
func (q *InMemory) DeadLetters() []Job {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]Job(nil), q.dlq...)
}

// RedisQueue implements a Redis list-backed queue.
type RedisQueue struct {
	client *redis.Client
	key    string
	dlq    string
	block  time.Duration
}

// NewRedisQueue builds a queue using LPUSH/BRPOP semantics. Dead letters go to
// key + ":dlq".
func NewRedisQueue(client *redis.Client, key string) *RedisQueue {
	if key == "" {
		key = "evently:jobs"
	}
	return &RedisQueue{client: client, key: key, dlq: key + ":dlq", block: 5 * time.Second}
}

// Publish enqueues a job.
func (q *RedisQueue) Publish(ctx context.Context, job Job) error {
	return q.push(ctx, q.key, job)
}

func (q *RedisQueue) push(ctx context.Context, key string, job Job) error {
	raw, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	if err := q.client.LPush(ctx, key, raw).Err(); err != nil {
		return fmt.Errorf("lpush %s: %w", key, err)
	}
	return nil
}

// Consume streams jobs using BRPOP. Malformed entries are dropped.
func (q *RedisQueue) Consume(ctx context.Context) (<-chan Job, error) {
	out := make(chan Job)
	go func() {
		defer close(out)
		for {
			res, err := q.client.BRPop(ctx, q.block, q.key).Result()
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				if err != redis.Nil {
					// connection trouble; avoid a hot loop
					select {
					case <-time.After(time.Second):
					case <-ctx.Done():
						return
					}
				}
				continue
			}
			if len(res) != 2 {
				continue
			}
			var job Job
			if err := json.Unmarshal([]byte(res[1]), &job); err != nil {
				continue
			}
			select {
			case out <- job:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func (q *RedisQueue) Retry(ctx context.Context, job Job) (bool, error) {
	job.Attempt++
	if job.Attempt >= MaxRetries {
		return true, q.push(ctx, q.dlq, job)
	}
	return false, q.push(ctx, q.key, job)
}

// Pending reports the number of queued jobs.
func (q *RedisQueue) Pending(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, q.key).Result()
}
