package queue

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newJob(t *testing.T) Job {
	t.Helper()
	job, err := NewJob(JobSendQRCodes, SendQRCodesPayload{EventID: "e1", ParticipantIDs: []string{"p1"}})
	require.NoError(t, err)
	return job
}

func receive(t *testing.T, ch <-chan Job) Job {
	t.Helper()
	select {
	case job := <-ch:
		return job
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for job")
	}
	return Job{}
}

func TestInMemoryRoundTripAndRetry(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	q := NewInMemory(4)
	ch, err := q.Consume(ctx)
	require.NoError(t, err)

	job := newJob(t)
	require.NoError(t, q.Publish(ctx, job))
	got := receive(t, ch)
	assert.Equal(t, job.ID, got.ID)

	var payload SendQRCodesPayload
	require.NoError(t, json.Unmarshal(got.Payload, &payload))
	assert.Equal(t, "e1", payload.EventID)

	for i := 1; i < MaxRetries; i++ {
		dead, err := q.Retry(ctx, got)
		require.NoError(t, err)
		assert.False(t, dead)
		got = receive(t, ch)
		assert.Equal(t, i, got.Attempt)
	}
	dead, err := q.Retry(ctx, got)
	require.NoError(t, err)
	assert.True(t, dead)
	assert.Len(t, q.DeadLetters(), 1)
}

func TestRedisQueue(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	q := NewRedisQueue(client, "test:jobs")
	q.block = time.Second

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	job := newJob(t)
	require.NoError(t, q.Publish(ctx, job))
	n, err := q.Pending(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	mr.Lpush("test:jobs", "garbage")

	ch, err := q.Consume(ctx)
	require.NoError(t, err)
	got := receive(t, ch)
	assert.Equal(t, job.ID, got.ID)
	assert.Equal(t, JobSendQRCodes, got.Type)

	got.Attempt = MaxRetries - 1
	dead, err := q.Retry(ctx, got)
	require.NoError(t, err)
	assert.True(t, dead)

	dlq, err := mr.List("test:jobs:dlq")
	require.NoError(t, err)
	assert.Len(t, dlq, 1)
}
