package deadletter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2/log"
	"github.com/stripe/stripe-go/v82"

	"github.com/ManuelReschke/RecoveryLedger/app/repository"
	"github.com/ManuelReschke/RecoveryLedger/internal/pkg/jobqueue"
	"github.com/ManuelReschke/RecoveryLedger/internal/pkg/ledger"
)

// ErrNotReplayable means the dead letter was rejected before it reached the
// ledger. Only verified events that failed to write may be replayed.
var ErrNotReplayable = errors.New("deadletter: not replayable")

// JobEnqueuer schedules background jobs.
type JobEnqueuer interface {
	EnqueueJob(ctx context.Context, jobType jobqueue.JobType, payload map[string]interface{}) (*jobqueue.Job, error)
}

// Invalidator drops cached totals for an org.
type Invalidator interface {
	Invalidate(ctx context.Context, orgID string)
}

// ReplayTicket is returned by Schedule. JobID is set when the replay was
// queued, Result when it ran inline.
type ReplayTicket struct {
	JobID  string
	Result *ledger.ApplyResult
}

// Replayer re-applies dead letters whose ledger write failed.
type Replayer struct {
	repo         repository.DeadLetterRepository
	applier      ledger.Applier
	defaultOrgID string
	queue        JobEnqueuer
	summaries    Invalidator
}

// NewReplayer creates a replayer. queue and summaries may be nil; without a
// queue Schedule replays inline.
func NewReplayer(repo repository.DeadLetterRepository, applier ledger.Applier, defaultOrgID string, queue JobEnqueuer, summaries Invalidator) *Replayer {
	return &Replayer{
		repo:         repo,
		applier:      applier,
		defaultOrgID: defaultOrgID,
		queue:        queue,
		summaries:    summaries,
	}
}

// Replay loads dead letter id and applies its payload again. Replaying an
// event that meanwhile made it into the ledger yields OutcomeDuplicate.
func (r *Replayer) Replay(ctx context.Context, id uint) (ledger.ApplyResult, error) {
	dl, err := r.repo.Get(ctx, id)
	if err != nil {
		return ledger.ApplyResult{}, err
	}
	if dl.Reason != ledger.ReasonLedgerWriteFailed {
		return ledger.ApplyResult{}, fmt.Errorf("%w: dead letter %d has reason %s", ErrNotReplayable, id, dl.Reason)
	}

	raw := dl.Payload
	var envelope stripe.Event
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return ledger.ApplyResult{}, fmt.Errorf("%w: dead letter %d: %v", ErrNotReplayable, id, err)
	}
	evt, err := ledger.ParseEvent(envelope, raw, r.defaultOrgID)
	if err != nil {
		return ledger.ApplyResult{}, fmt.Errorf("%w: dead letter %d: %v", ErrNotReplayable, id, err)
	}

	res, err := r.applier.Apply(ctx, evt)
	if err != nil {
		return res, err
	}
	log.Infof("[DeadLetter] Replayed dead letter %d (event=%s, outcome=%s)", id, evt.EventID, res.Outcome)
	if r.summaries != nil && res.Outcome == ledger.OutcomeApplied && res.OrgID != "" {
		r.summaries.Invalidate(ctx, res.OrgID)
	}
	return res, nil
}

// Schedule queues a replay, or replays inline when no queue is configured.
// The dead letter is checked before queueing so callers get ErrNotReplayable
// and not-found errors synchronously.
func (r *Replayer) Schedule(ctx context.Context, id uint) (ReplayTicket, error) {
	if r.queue == nil {
		res, err := r.Replay(ctx, id)
		if err != nil {
			return ReplayTicket{}, err
		}
		return ReplayTicket{Result: &res}, nil
	}

	dl, err := r.repo.Get(ctx, id)
	if err != nil {
		return ReplayTicket{}, err
	}
	if dl.Reason != ledger.ReasonLedgerWriteFailed {
		return ReplayTicket{}, fmt.Errorf("%w: dead letter %d has reason %s", ErrNotReplayable, id, dl.Reason)
	}

	job, err := r.queue.EnqueueJob(ctx, jobqueue.JobTypeLedgerReplay, jobqueue.ReplayJobPayload{
		DeadLetterID: dl.ID,
		EventID:      dl.EventID,
	}.ToMap())
	if err != nil {
		return ReplayTicket{}, err
	}
	return ReplayTicket{JobID: job.ID}, nil
}

// JobHandler runs queued replays. Dead letters that cannot be replayed fail
// the job without retries.
func (r *Replayer) JobHandler() jobqueue.Handler {
	return func(ctx context.Context, job *jobqueue.Job) error {
		payload, err := jobqueue.ReplayJobPayloadFromMap(job.Payload)
		if err != nil {
			return jobqueue.Permanent(err)
		}
		_, err = r.Replay(ctx, payload.DeadLetterID)
		if errors.Is(err, ErrNotReplayable) {
			return jobqueue.Permanent(err)
		}
		return err
	}
}
