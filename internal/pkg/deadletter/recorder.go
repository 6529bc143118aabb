package deadletter

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/RecoveryLedger/app/models"
	"github.com/ManuelReschke/RecoveryLedger/app/repository"
	"github.com/ManuelReschke/RecoveryLedger/internal/pkg/events"
	"github.com/ManuelReschke/RecoveryLedger/internal/pkg/s3archive"
)

const recordTimeout = 5 * time.Second

// Recorder persists events that were rejected or could not be applied.
type Recorder struct {
	repo      repository.DeadLetterRepository
	archiver  s3archive.Archiver
	publisher events.Publisher
	now       func() time.Time
}

// NewRecorder creates a recorder. archiver and publisher may be nil.
func NewRecorder(repo repository.DeadLetterRepository, archiver s3archive.Archiver, publisher events.Publisher) *Recorder {
	if publisher == nil {
		publisher = &events.NoopPublisher{}
	}
	return &Recorder{
		repo:      repo,
		archiver:  archiver,
		publisher: publisher,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Record stores the payload. It never fails the caller: storage errors are
// logged and the delivery outcome stays whatever it already was.
func (r *Recorder) Record(ctx context.Context, eventID string, payload []byte, reason string) {
	if eventID == "" {
		eventID = models.UnknownEventID
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
	defer cancel()

	now := r.now()
	dl := &models.DeadLetter{
		EventID:  eventID,
		Payload:  append([]byte(nil), payload...),
		Reason:   reason,
		FailedAt: now,
	}

	if r.archiver != nil {
		key, err := r.archiver.Archive(ctx, eventID, payload, now)
		if err != nil {
			log.Warnf("[DeadLetter] Archive failed for event %s: %v", eventID, err)
		} else {
			dl.ArchiveKey = key
		}
	}

	if err := r.repo.Create(ctx, dl); err != nil {
		log.Errorf("[DeadLetter] Failed to persist event %s (reason=%s, %d bytes): %v", eventID, reason, len(payload), err)
		return
	}

	if err := r.publisher.Publish(ctx, events.TopicEventDeadLettered, events.EventDeadLettered{
		EventID: eventID,
		Reason:  reason,
		At:      now,
	}); err != nil {
		log.Warnf("[DeadLetter] Failed to publish notification for event %s: %v", eventID, err)
	}
	log.Warnf("[DeadLetter] Recorded event %s (reason=%s)", eventID, reason)
}

// List returns the most recent dead letters, newest first.
func (r *Recorder) List(ctx context.Context, limit int) ([]models.DeadLetter, error) {
	return r.repo.ListRecent(ctx, limit)
}
