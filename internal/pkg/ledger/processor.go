package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/RecoveryLedger/app/models"
)

// State is a webhook processing state. Result.State is always terminal;
// Result.Path lists every state the delivery passed through.
type State string

const (
	StateReceived      State = "received"
	StateVerifying     State = "verifying"
	StateVerified      State = "verified"
	StateRejected      State = "rejected"
	StateDeduplicating State = "deduplicating"
	StateDuplicate     State = "duplicate"
	StateApplying      State = "applying"
	StateApplied       State = "applied"
	StateFailed        State = "failed"
)

// Dead-letter reasons.
const (
	ReasonSignatureInvalid  = "signature_invalid"
	ReasonMalformedPayload  = "malformed_payload"
	ReasonLedgerWriteFailed = "ledger_write_failed"
)

// Result is the terminal outcome of one delivery.
type Result struct {
	State     State
	Path      []State
	Outcome   Outcome
	EventID   string
	OrgID     string
	RunID     string
	ReceiptID string
	Err       error
	Elapsed   time.Duration
}

// DeadLetterSink keeps payloads that were rejected or could not be applied.
// Record must not fail the delivery.
type DeadLetterSink interface {
	Record(ctx context.Context, eventID string, payload []byte, reason string)
}

// Processor drives one delivery through verification, deduplication and the
// ledger write.
type Processor struct {
	verifier           Verifier
	applier            Applier
	deadLetters        DeadLetterSink
	deadLetterRejected bool
}

func NewProcessor(verifier Verifier, applier Applier, deadLetters DeadLetterSink, deadLetterRejected bool) *Processor {
	return &Processor{
		verifier:           verifier,
		applier:            applier,
		deadLetters:        deadLetters,
		deadLetterRejected: deadLetterRejected,
	}
}

// Process handles a raw delivery. It never panics on bad input; every
// terminal transition is logged with the event id and elapsed time.
func (p *Processor) Process(ctx context.Context, payload []byte, signatureHeader string) Result {
	start := time.Now()
	res := Result{EventID: models.UnknownEventID}
	enter := func(s State) {
		res.State = s
		res.Path = append(res.Path, s)
	}
	finish := func() Result {
		res.Elapsed = time.Since(start)
		p.logResult(res)
		return res
	}

	enter(StateReceived)
	enter(StateVerifying)
	evt, err := p.verifier.Verify(payload, signatureHeader)
	if err != nil {
		enter(StateRejected)
		res.Err = err
		switch {
		case errors.Is(err, ErrMalformedPayload):
			p.deadLetter(ctx, models.UnknownEventID, payload, ReasonMalformedPayload)
		default:
			if !errors.Is(err, ErrSignatureInvalid) {
				res.Err = fmt.Errorf("%w: %v", ErrSignatureInvalid, err)
			}
			if p.deadLetterRejected {
				p.deadLetter(ctx, models.UnknownEventID, payload, ReasonSignatureInvalid)
			}
		}
		return finish()
	}

	enter(StateVerified)
	res.EventID = evt.EventID

	// The dedup check and the write share one ledger transaction, so the
	// applying step is only known to have happened once Apply returns.
	enter(StateDeduplicating)
	applied, err := p.applier.Apply(ctx, evt)
	res.Outcome = applied.Outcome
	if err == nil && applied.Outcome == OutcomeDuplicate {
		enter(StateDuplicate)
		return finish()
	}

	enter(StateApplying)
	switch {
	case err != nil:
		enter(StateFailed)
		res.Outcome = OutcomeFailed
		res.Err = err
		reason := ReasonLedgerWriteFailed
		if errors.Is(err, ErrMalformedPayload) {
			reason = ReasonMalformedPayload
		}
		p.deadLetter(ctx, evt.EventID, payload, reason)
	default:
		enter(StateApplied)
		res.OrgID = applied.OrgID
		res.RunID = applied.RunID
		res.ReceiptID = applied.ReceiptID
	}
	return finish()
}

func (p *Processor) deadLetter(ctx context.Context, eventID string, payload []byte, reason string) {
	if p.deadLetters == nil {
		return
	}
	p.deadLetters.Record(context.WithoutCancel(ctx), eventID, payload, reason)
}

func (p *Processor) logResult(res Result) {
	ms := res.Elapsed.Milliseconds()
	switch res.State {
	case StateApplied:
		log.Infof("[Webhook] event=%s outcome=%s run=%s receipt=%s elapsed_ms=%d", res.EventID, res.Outcome, res.RunID, res.ReceiptID, ms)
	case StateDuplicate:
		log.Infof("[Webhook] event=%s outcome=duplicate elapsed_ms=%d", res.EventID, ms)
	case StateRejected:
		log.Warnf("[Webhook] event=%s outcome=rejected elapsed_ms=%d err=%v", res.EventID, ms, res.Err)
	default:
		log.Errorf("[Webhook] event=%s outcome=%s elapsed_ms=%d err=%v", res.EventID, res.State, ms, res.Err)
	}
}
