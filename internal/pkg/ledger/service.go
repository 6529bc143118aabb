package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/ManuelReschke/RecoveryLedger/app/models"
	"github.com/ManuelReschke/RecoveryLedger/app/repository"
	"github.com/ManuelReschke/RecoveryLedger/internal/pkg/events"
)

// Outcome is the result of applying one event to the ledger.
type Outcome string

const (
	OutcomeApplied   Outcome = "applied"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeIgnored   Outcome = "ignored"
	OutcomeFailed    Outcome = "failed"
)

// ApplyResult identifies the rows an applied event touched.
type ApplyResult struct {
	Outcome   Outcome
	OrgID     string
	RunID     string
	ReceiptID string
}

// Applier applies verified events to the ledger.
type Applier interface {
	Apply(ctx context.Context, evt *Event) (ApplyResult, error)
}

// Service turns verified events into ledger writes.
type Service struct {
	repo         repository.LedgerRepository
	publisher    events.Publisher
	writeTimeout time.Duration
}

// NewService creates a ledger service from an injected repository.
func NewService(repo repository.LedgerRepository, publisher events.Publisher, writeTimeout time.Duration) *Service {
	if publisher == nil {
		publisher = &events.NoopPublisher{}
	}
	if writeTimeout <= 0 {
		writeTimeout = DefaultWriteTimeout
	}
	return &Service{repo: repo, publisher: publisher, writeTimeout: writeTimeout}
}

// NewServiceFromDB creates a ledger service from a GORM DB handle.
func NewServiceFromDB(db *gorm.DB, publisher events.Publisher, writeTimeout time.Duration) *Service {
	return NewService(repository.NewLedgerRepository(db), publisher, writeTimeout)
}

// Apply records the event and its effect atomically. Redelivered events and a
// second success for an already recovered invoice yield OutcomeDuplicate. The
// write is detached from caller cancellation so a client disconnect cannot
// abort a commit half way; it is still bounded by the write timeout.
func (s *Service) Apply(ctx context.Context, evt *Event) (ApplyResult, error) {
	if evt == nil || evt.EventID == "" {
		return ApplyResult{Outcome: OutcomeFailed}, fmt.Errorf("%w: empty event", ErrMalformedPayload)
	}

	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.writeTimeout)
	defer cancel()

	res, err := s.repo.ApplyEvent(wctx, buildWrite(evt))
	if err != nil {
		return ApplyResult{Outcome: OutcomeFailed}, fmt.Errorf("%w: %v", ErrLedgerWriteFailed, err)
	}
	if !res.Created {
		return ApplyResult{Outcome: OutcomeDuplicate}, nil
	}

	out := ApplyResult{Outcome: OutcomeApplied, OrgID: evt.OrgID}
	if evt.Type == EventOther {
		out.Outcome = OutcomeIgnored
	}
	if res.Run != nil {
		out.RunID = res.Run.ID
	}
	if res.Receipt != nil {
		out.ReceiptID = res.Receipt.ID
	}

	s.notify(wctx, evt, res)
	return out, nil
}

func buildWrite(evt *Event) repository.LedgerWrite {
	w := repository.LedgerWrite{
		Event: models.ProcessedEvent{
			Provider:  models.ProviderStripe,
			EventID:   evt.EventID,
			EventType: evt.ProviderType,
			OrgID:     evt.OrgID,
			InvoiceID: evt.InvoiceID,
		},
	}
	if evt.Type == EventOther {
		return w
	}

	w.Run = &models.Run{
		OrgID:      evt.OrgID,
		CustomerID: evt.CustomerID,
		InvoiceID:  evt.InvoiceID,
		Status:     models.RunStatusStarted,
	}
	if evt.Type == EventPaymentSucceeded {
		w.Receipt = &models.Receipt{
			AmountCents:  evt.AmountCents,
			Currency:     evt.Currency,
			Recovered:    true,
			ReasonCode:   evt.ReasonCode,
			ActionSource: evt.ActionSource,
		}
	}
	return w
}

func (s *Service) notify(ctx context.Context, evt *Event, res *repository.LedgerWriteResult) {
	now := time.Now().UTC()
	if res.Run != nil && res.Receipt == nil {
		if err := s.publisher.Publish(ctx, events.TopicRunStarted, events.RunStarted{
			OrgID:     res.Run.OrgID,
			RunID:     res.Run.ID,
			InvoiceID: res.Run.InvoiceID,
			EventID:   evt.EventID,
			At:        now,
		}); err != nil {
			log.Warnf("[Ledger] Failed to publish %s for event %s: %v", events.TopicRunStarted, evt.EventID, err)
		}
	}
	if res.Receipt != nil {
		if err := s.publisher.Publish(ctx, events.TopicReceiptRecorded, events.ReceiptRecorded{
			OrgID:       res.Receipt.OrgID,
			RunID:       res.Receipt.RunID,
			ReceiptID:   res.Receipt.ID,
			InvoiceID:   res.Receipt.InvoiceID,
			EventID:     evt.EventID,
			AmountCents: res.Receipt.AmountCents,
			Currency:    res.Receipt.Currency,
			At:          now,
		}); err != nil {
			log.Warnf("[Ledger] Failed to publish %s for event %s: %v", events.TopicReceiptRecorded, evt.EventID, err)
		}
	}
}
