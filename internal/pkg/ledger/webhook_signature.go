package ledger

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/stripe/stripe-go/v82/webhook"
)

var webhookSecretPattern = regexp.MustCompile(`^whsec_[A-Za-z0-9]{16,}$`)

// Verifier authenticates a raw payload and returns the parsed event.
type Verifier interface {
	Verify(payload []byte, signatureHeader string) (*Event, error)
}

// ValidWebhookSecret reports whether secret looks like a Stripe endpoint secret.
func ValidWebhookSecret(secret string) bool {
	return webhookSecretPattern.MatchString(strings.TrimSpace(secret))
}

// StripeVerifier checks the Stripe-Signature header over the exact bytes
// received. It performs no I/O.
type StripeVerifier struct {
	secret       string
	defaultOrgID string
}

func NewStripeVerifier(secret, defaultOrgID string) *StripeVerifier {
	return &StripeVerifier{
		secret:       strings.TrimSpace(secret),
		defaultOrgID: defaultOrgID,
	}
}

func (v *StripeVerifier) Verify(payload []byte, signatureHeader string) (*Event, error) {
	sig := strings.TrimSpace(signatureHeader)
	if !ValidWebhookSecret(v.secret) || sig == "" || len(payload) == 0 {
		return nil, ErrSignatureInvalid
	}

	evt, err := webhook.ConstructEventWithOptions(payload, sig, v.secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		if isSignatureError(err) {
			return nil, fmt.Errorf("%w: %v", ErrSignatureInvalid, err)
		}
		// Authentic bytes that are not a JSON event envelope.
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	return ParseEvent(evt, payload, v.defaultOrgID)
}

func isSignatureError(err error) bool {
	return errors.Is(err, webhook.ErrNotSigned) ||
		errors.Is(err, webhook.ErrInvalidHeader) ||
		errors.Is(err, webhook.ErrNoValidSignature) ||
		errors.Is(err, webhook.ErrTooOld)
}
