package jobqueue

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewQueue(t *testing.T) {
	tests := []struct {
		name            string
		workers         int
		expectedWorkers int
	}{
		{"Valid worker count", 5, 5},
		{"Zero workers", 0, DefaultWorkers},
		{"Negative workers", -1, DefaultWorkers},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			queue := NewQueue(nil, tt.workers)

			assert.NotNil(t, queue)
			assert.Equal(t, tt.expectedWorkers, queue.workers)
			assert.Empty(t, queue.handlers)
			assert.False(t, queue.running)
		})
	}
}

func TestQueue_WithoutClient(t *testing.T) {
	queue := NewQueue(nil, 1)

	_, err := queue.EnqueueJob(context.Background(), JobTypeLedgerReplay, nil)
	assert.ErrorIs(t, err, ErrQueueUnavailable)

	var nilQueue *Queue
	_, err = nilQueue.EnqueueJob(context.Background(), JobTypeLedgerReplay, nil)
	assert.ErrorIs(t, err, ErrQueueUnavailable)

	// Start is a no-op and Stop must not block.
	queue.Start()
	assert.False(t, queue.running)
	queue.Stop()
}

func TestQueue_EnqueueStoresPendingJob(t *testing.T) {
	client := newIsolatedRedisClient(t, isolatedJobQueueTestRedisDB)
	queue := NewQueue(client, 1)
	ctx := context.Background()

	job, err := queue.EnqueueJob(ctx, JobTypeLedgerReplay, ReplayJobPayload{DeadLetterID: 3, EventID: "evt_3"}.ToMap())
	require.NoError(t, err)
	assert.NotEmpty(t, job.ID)
	assert.Equal(t, JobStatusPending, job.Status)
	assert.Equal(t, DefaultMaxRetries, job.MaxRetries)

	size, err := queue.GetQueueSize(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), size)

	stored, err := queue.GetJob(ctx, job.ID)
	require.NoError(t, err)
	payload, err := ReplayJobPayloadFromMap(stored.Payload)
	require.NoError(t, err)
	assert.Equal(t, uint(3), payload.DeadLetterID)

	stats, err := queue.GetJobStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats[JobStatusPending])
}

func TestQueue_ProcessesRegisteredHandler(t *testing.T) {
	client := newIsolatedRedisClient(t, isolatedJobQueueTestRedisDB)
	queue := NewQueue(client, 1)
	ctx := context.Background()

	done := make(chan uint, 1)
	queue.Register(JobTypeLedgerReplay, func(ctx context.Context, job *Job) error {
		p, err := ReplayJobPayloadFromMap(job.Payload)
		if err != nil {
			return Permanent(err)
		}
		done <- p.DeadLetterID
		return nil
	})

	job, err := queue.EnqueueJob(ctx, JobTypeLedgerReplay, ReplayJobPayload{DeadLetterID: 9}.ToMap())
	require.NoError(t, err)

	queue.Start()
	defer queue.Stop()

	select {
	case id := <-done:
		assert.Equal(t, uint(9), id)
	case <-time.After(5 * time.Second):
		t.Fatal("job was not processed")
	}

	require.Eventually(t, func() bool {
		_, err := queue.GetJob(ctx, job.ID)
		return errors.Is(err, redis.Nil)
	}, 5*time.Second, 50*time.Millisecond)

	require.Eventually(t, func() bool {
		stats, err := queue.GetJobStats(ctx)
		return err == nil && stats[JobStatusCompleted] == 1
	}, 5*time.Second, 50*time.Millisecond)
}

func TestQueue_PermanentFailureSkipsRetries(t *testing.T) {
	client := newIsolatedRedisClient(t, isolatedJobQueueTestRedisDB)
	queue := NewQueue(client, 1)
	queue.retryDelay = 10 * time.Millisecond
	ctx := context.Background()

	var calls atomic.Int32
	queue.Register(JobTypeLedgerReplay, func(ctx context.Context, job *Job) error {
		calls.Add(1)
		return Permanent(errors.New("not replayable"))
	})

	job, err := queue.EnqueueJob(ctx, JobTypeLedgerReplay, ReplayJobPayload{DeadLetterID: 1}.ToMap())
	require.NoError(t, err)

	queue.Start()
	defer queue.Stop()

	require.Eventually(t, func() bool {
		stored, err := queue.GetJob(ctx, job.ID)
		return err == nil && stored.Status == JobStatusFailed
	}, 5*time.Second, 50*time.Millisecond)

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, int32(1), calls.Load())

	stored, err := queue.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, "not replayable", stored.ErrorMsg)
}

func TestQueue_TransientFailureIsRetried(t *testing.T) {
	client := newIsolatedRedisClient(t, isolatedJobQueueTestRedisDB)
	queue := NewQueue(client, 1)
	queue.retryDelay = 10 * time.Millisecond
	ctx := context.Background()

	var calls atomic.Int32
	queue.Register(JobTypeLedgerReplay, func(ctx context.Context, job *Job) error {
		if calls.Add(1) == 1 {
			return errors.New("database busy")
		}
		return nil
	})

	_, err := queue.EnqueueJob(ctx, JobTypeLedgerReplay, ReplayJobPayload{DeadLetterID: 1}.ToMap())
	require.NoError(t, err)

	queue.Start()
	defer queue.Stop()

	require.Eventually(t, func() bool {
		stats, err := queue.GetJobStats(ctx)
		return err == nil && stats[JobStatusCompleted] == 1
	}, 5*time.Second, 50*time.Millisecond)
	assert.Equal(t, int32(2), calls.Load())
}

func TestQueue_UnknownTypeFailsPermanently(t *testing.T) {
	client := newIsolatedRedisClient(t, isolatedJobQueueTestRedisDB)
	queue := NewQueue(client, 1)
	ctx := context.Background()

	job, err := queue.EnqueueJob(ctx, JobType("unknown"), nil)
	require.NoError(t, err)

	queue.Start()
	defer queue.Stop()

	require.Eventually(t, func() bool {
		stored, err := queue.GetJob(ctx, job.ID)
		return err == nil && stored.Status == JobStatusFailed
	}, 5*time.Second, 50*time.Millisecond)
}

func TestQueue_RecoverStuckRequeuesOldJobs(t *testing.T) {
	client := newIsolatedRedisClient(t, isolatedJobQueueTestRedisDB)
	queue := NewQueue(client, 1)
	ctx := context.Background()

	job, err := queue.EnqueueJob(ctx, JobTypeLedgerReplay, ReplayJobPayload{DeadLetterID: 1}.ToMap())
	require.NoError(t, err)

	// simulate a worker that crashed mid-job
	require.NoError(t, client.RPopLPush(ctx, JobQueueKey, JobProcessingKey).Err())
	job.MarkAsProcessing()
	old := time.Now().Add(-time.Hour)
	job.ProcessedAt = &old
	queue.updateJob(ctx, job)

	queue.recoverStuck(ctx, 10*time.Minute)

	processing, err := queue.GetProcessingSize(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), processing)
	pending, err := queue.GetQueueSize(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), pending)

	stored, err := queue.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, JobStatusPending, stored.Status)
}

func TestConstants(t *testing.T) {
	assert.Equal(t, "ledger_job:", JobKeyPrefix)
	assert.Equal(t, "ledger_job_queue", JobQueueKey)
	assert.Equal(t, 3, DefaultMaxRetries)
	assert.Equal(t, 24*time.Hour, JobTTL)
}
