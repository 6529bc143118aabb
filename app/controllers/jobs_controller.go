package controllers

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/redis/go-redis/v9"

	"github.com/ManuelReschke/RecoveryLedger/internal/pkg/jobqueue"
)

// JobInspector exposes the state of the background replay queue.
type JobInspector interface {
	GetJob(ctx context.Context, jobID string) (*jobqueue.Job, error)
	GetJobStats(ctx context.Context) (map[jobqueue.JobStatus]int64, error)
	GetQueueSize(ctx context.Context) (int64, error)
	GetProcessingSize(ctx context.Context) (int64, error)
}

type JobsController struct {
	queue JobInspector
}

// NewJobsController creates the controller. queue may be nil when Redis is
// not configured.
func NewJobsController(queue JobInspector) *JobsController {
	return &JobsController{queue: queue}
}

func queueUnavailable(c *fiber.Ctx) error {
	return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
		"ok":      false,
		"error":   "queue_unavailable",
		"message": "Background queue is not configured",
	})
}

// HandleStats serves GET /api/v1/jobs/stats.
func (jc *JobsController) HandleStats(c *fiber.Ctx) error {
	if jc.queue == nil {
		return queueUnavailable(c)
	}
	ctx := c.UserContext()

	pending, err := jc.queue.GetQueueSize(ctx)
	if err != nil {
		return statsUnavailable(c, err)
	}
	processing, err := jc.queue.GetProcessingSize(ctx)
	if err != nil {
		return statsUnavailable(c, err)
	}
	stats, err := jc.queue.GetJobStats(ctx)
	if err != nil {
		return statsUnavailable(c, err)
	}

	return c.JSON(fiber.Map{
		"ok":         true,
		"pending":    pending,
		"processing": processing,
		"completed":  stats[jobqueue.JobStatusCompleted],
		"failed":     stats[jobqueue.JobStatusFailed],
	})
}

func statsUnavailable(c *fiber.Ctx, err error) error {
	log.Errorf("[JobQueue] Stats unavailable: %v", err)
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"ok":      false,
		"error":   "internal_server_error",
		"message": "Queue statistics could not be loaded",
	})
}

// HandleGetJob serves GET /api/v1/jobs/:id. Completed jobs are removed from
// Redis, so a finished replay answers 404.
func (jc *JobsController) HandleGetJob(c *fiber.Ctx) error {
	if jc.queue == nil {
		return queueUnavailable(c)
	}

	job, err := jc.queue.GetJob(c.UserContext(), c.Params("id"))
	if errors.Is(err, redis.Nil) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"ok":      false,
			"error":   "not_found",
			"message": "Job not found or already completed",
		})
	}
	if err != nil {
		log.Errorf("[JobQueue] Loading job %s failed: %v", c.Params("id"), err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"ok":      false,
			"error":   "internal_server_error",
			"message": "Job could not be loaded",
		})
	}
	return c.JSON(fiber.Map{"ok": true, "job": job})
}
