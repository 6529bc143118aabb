package jobqueue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	// Redis keys
	JobKeyPrefix     = "ledger_job:"
	JobQueueKey      = "ledger_job_queue"
	JobProcessingKey = "ledger_job_processing"
	JobStatsKey      = "ledger_job_stats"

	DefaultMaxRetries = 3
	DefaultWorkers    = 2
	JobTTL            = 24 * time.Hour
)

var ErrQueueUnavailable = errors.New("job queue unavailable")

// Handler executes one job. Returning an error wrapped with Permanent fails
// the job without further attempts.
type Handler func(ctx context.Context, job *Job) error

// Queue runs registered handlers for jobs stored in Redis.
type Queue struct {
	client     *redis.Client
	workers    int
	handlers   map[JobType]Handler
	retryDelay time.Duration
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	mu         sync.Mutex
	running    bool
}

// NewQueue creates a queue backed by client. workers <= 0 selects DefaultWorkers.
func NewQueue(client *redis.Client, workers int) *Queue {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	return &Queue{
		client:     client,
		workers:    workers,
		handlers:   make(map[JobType]Handler),
		retryDelay: time.Minute,
	}
}

// Register binds a handler to a job type. Must be called before Start.
func (q *Queue) Register(jobType JobType, h Handler) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.handlers[jobType] = h
}

// Start launches the workers and the stuck-job sweeper.
func (q *Queue) Start() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.running || q.client == nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	q.cancel = cancel
	q.running = true
	log.Infof("[JobQueue] Starting %d workers", q.workers)

	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker(ctx, i)
	}

	q.wg.Add(1)
	go q.stuckSweeper(ctx, 10*time.Minute, time.Minute)
}

// Stop cancels the workers and waits for in-flight jobs to return.
func (q *Queue) Stop() {
	q.mu.Lock()
	if !q.running {
		q.mu.Unlock()
		return
	}
	q.running = false
	cancel := q.cancel
	q.mu.Unlock()

	log.Info("[JobQueue] Stopping workers...")
	cancel()
	q.wg.Wait()
	log.Info("[JobQueue] All workers stopped")
}

func (q *Queue) stuckSweeper(ctx context.Context, maxAge, interval time.Duration) {
	defer q.wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			q.recoverStuck(ctx, maxAge)
		}
	}
}

// recoverStuck moves jobs that sat in processing longer than maxAge back to
// the pending list.
func (q *Queue) recoverStuck(ctx context.Context, maxAge time.Duration) {
	ids, err := q.client.LRange(ctx, JobProcessingKey, 0, -1).Result()
	if err != nil {
		log.Errorf("[JobQueue] Sweeper LRange error: %v", err)
		return
	}
	now := time.Now()
	for _, id := range ids {
		job, err := q.GetJob(ctx, id)
		if err != nil {
			if !errors.Is(err, redis.Nil) {
				log.Errorf("[JobQueue] Sweeper could not load job %s: %v", id, err)
			}
			q.removeFromProcessing(ctx, id)
			continue
		}
		if job.Status != JobStatusProcessing {
			q.removeFromProcessing(ctx, id)
			continue
		}
		started := job.UpdatedAt
		if job.ProcessedAt != nil && !job.ProcessedAt.IsZero() {
			started = *job.ProcessedAt
		}
		if now.Sub(started) <= maxAge {
			continue
		}
		log.Warnf("[JobQueue] Recovering stuck job %s (type=%s), age=%s", job.ID, job.Type, now.Sub(started))
		job.Status = JobStatusPending
		job.ErrorMsg = "recovered by sweeper"
		job.UpdatedAt = now
		q.updateJob(ctx, job)
		q.removeFromProcessing(ctx, id)
		_ = q.client.RPush(ctx, JobQueueKey, id).Err()
	}
}

func (q *Queue) worker(ctx context.Context, id int) {
	defer q.wg.Done()
	log.Debugf("[JobQueue] Worker %d started", id)

	for ctx.Err() == nil {
		job, err := q.dequeueJob(ctx)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			if !errors.Is(err, redis.Nil) {
				log.Errorf("[JobQueue] Worker %d: Error dequeuing job: %v", id, err)
				time.Sleep(time.Second)
			}
			continue
		}
		log.Infof("[JobQueue] Worker %d processing job %s (Type: %s)", id, job.ID, job.Type)
		// A job that started runs to completion even while stopping.
		q.processJob(context.WithoutCancel(ctx), job)
	}
	log.Debugf("[JobQueue] Worker %d stopping", id)
}

// EnqueueJob stores a new pending job and pushes it onto the queue.
func (q *Queue) EnqueueJob(ctx context.Context, jobType JobType, payload map[string]interface{}) (*Job, error) {
	if q == nil || q.client == nil {
		return nil, ErrQueueUnavailable
	}

	now := time.Now()
	job := &Job{
		ID:         uuid.New().String(),
		Type:       jobType,
		Status:     JobStatusPending,
		Payload:    payload,
		CreatedAt:  now,
		UpdatedAt:  now,
		MaxRetries: DefaultMaxRetries,
	}

	jobData, err := json.Marshal(job)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal job: %w", err)
	}

	pipe := q.client.TxPipeline()
	pipe.Set(ctx, JobKeyPrefix+job.ID, jobData, JobTTL)
	pipe.LPush(ctx, JobQueueKey, job.ID)
	pipe.HIncrBy(ctx, JobStatsKey, string(JobStatusPending), 1)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to enqueue job: %w", err)
	}

	log.Infof("[JobQueue] Enqueued job %s (Type: %s)", job.ID, job.Type)
	return job, nil
}

func (q *Queue) dequeueJob(ctx context.Context) (*Job, error) {
	jobID, err := q.client.BRPopLPush(ctx, JobQueueKey, JobProcessingKey, time.Second).Result()
	if err != nil {
		return nil, err
	}

	job, err := q.GetJob(ctx, jobID)
	if err != nil {
		q.removeFromProcessing(ctx, jobID)
		return nil, fmt.Errorf("job %s could not be loaded: %w", jobID, err)
	}
	return job, nil
}

func (q *Queue) processJob(ctx context.Context, job *Job) {
	job.MarkAsProcessing()
	q.updateJob(ctx, job)

	err := q.dispatch(ctx, job)
	if err == nil {
		log.Infof("[JobQueue] Job %s completed successfully", job.ID)
		job.MarkAsCompleted()
		q.updateJobStats(ctx, JobStatusCompleted, 1)
		q.removeCompletedJob(ctx, job.ID)
		q.removeFromProcessing(ctx, job.ID)
		return
	}

	log.Errorf("[JobQueue] Job %s failed: %v", job.ID, err)
	job.MarkAsFailed(err.Error())
	if IsPermanent(err) {
		job.RetryCount = job.MaxRetries
	}

	if job.IsRetryable() {
		log.Infof("[JobQueue] Retrying job %s (Attempt %d/%d)", job.ID, job.RetryCount, job.MaxRetries)
		job.MarkAsRetrying()
		q.updateJob(ctx, job)
		q.removeFromProcessing(ctx, job.ID)
		jobID := job.ID
		time.AfterFunc(q.retryDelay*time.Duration(job.RetryCount), func() {
			if err := q.client.LPush(context.Background(), JobQueueKey, jobID).Err(); err != nil {
				log.Errorf("[JobQueue] Failed to requeue job %s: %v", jobID, err)
			}
		})
		return
	}

	log.Errorf("[JobQueue] Job %s permanently failed after %d attempts", job.ID, job.RetryCount)
	q.updateJobStats(ctx, JobStatusFailed, 1)
	q.updateJob(ctx, job)
	q.removeFromProcessing(ctx, job.ID)
}

func (q *Queue) dispatch(ctx context.Context, job *Job) error {
	q.mu.Lock()
	h, ok := q.handlers[job.Type]
	q.mu.Unlock()
	if !ok {
		return Permanent(fmt.Errorf("unknown job type: %s", job.Type))
	}
	return h(ctx, job)
}

func (q *Queue) updateJob(ctx context.Context, job *Job) {
	jobData, err := json.Marshal(job)
	if err != nil {
		log.Errorf("[JobQueue] Failed to marshal job %s: %v", job.ID, err)
		return
	}
	if err := q.client.Set(ctx, JobKeyPrefix+job.ID, jobData, JobTTL).Err(); err != nil {
		log.Errorf("[JobQueue] Failed to update job %s: %v", job.ID, err)
	}
}

func (q *Queue) removeFromProcessing(ctx context.Context, jobID string) {
	if err := q.client.LRem(ctx, JobProcessingKey, 1, jobID).Err(); err != nil {
		log.Errorf("[JobQueue] Failed to remove job %s from processing queue: %v", jobID, err)
	}
}

func (q *Queue) removeCompletedJob(ctx context.Context, jobID string) {
	if err := q.client.Del(ctx, JobKeyPrefix+jobID).Err(); err != nil {
		log.Errorf("[JobQueue] Failed to remove completed job %s: %v", jobID, err)
	}
}

func (q *Queue) updateJobStats(ctx context.Context, status JobStatus, delta int64) {
	if err := q.client.HIncrBy(ctx, JobStatsKey, string(status), delta).Err(); err != nil {
		log.Errorf("[JobQueue] Failed to update job stats: %v", err)
	}
}

// GetJob retrieves a job by ID. Completed jobs are removed and return redis.Nil.
func (q *Queue) GetJob(ctx context.Context, jobID string) (*Job, error) {
	jobData, err := q.client.Get(ctx, JobKeyPrefix+jobID).Result()
	if err != nil {
		return nil, err
	}

	var job Job
	if err := json.Unmarshal([]byte(jobData), &job); err != nil {
		return nil, fmt.Errorf("failed to unmarshal job: %w", err)
	}
	return &job, nil
}

// GetJobStats returns counters per terminal status.
func (q *Queue) GetJobStats(ctx context.Context) (map[JobStatus]int64, error) {
	stats, err := q.client.HGetAll(ctx, JobStatsKey).Result()
	if err != nil {
		return nil, err
	}

	result := make(map[JobStatus]int64, len(stats))
	for status, count := range stats {
		if n, err := json.Number(count).Int64(); err == nil {
			result[JobStatus(status)] = n
		}
	}
	return result, nil
}

// GetQueueSize returns the number of pending jobs.
func (q *Queue) GetQueueSize(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, JobQueueKey).Result()
}

// GetProcessingSize returns the number of jobs being processed.
func (q *Queue) GetProcessingSize(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, JobProcessingKey).Result()
}
