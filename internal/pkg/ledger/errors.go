package ledger

import "errors"

var (
	// ErrSignatureInvalid means the payload could not be authenticated.
	ErrSignatureInvalid = errors.New("ledger: signature invalid")
	// ErrMalformedPayload means the payload verified but is not a usable event.
	ErrMalformedPayload = errors.New("ledger: malformed payload")
	// ErrLedgerWriteFailed means storage rejected or timed out the write.
	// The caller should answer non-2xx so the provider redelivers.
	ErrLedgerWriteFailed = errors.New("ledger: write failed")
)
