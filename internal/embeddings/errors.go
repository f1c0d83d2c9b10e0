package embeddings

import "errors"

// Provider failures fall into two classes: transient ones the scheduler
// may retry with backoff, and terminal ones that fail the task outright.
var (
	// ErrRateLimited marks throttling and other transient provider
	// failures (timeouts, 5xx).
	ErrRateLimited = errors.New("embeddings: rate limited")

	// ErrQuotaExhausted marks an exhausted account quota. Still
	// transient: the quota may be topped up while work waits.
	ErrQuotaExhausted = errors.New("embeddings: quota exhausted")

	// ErrInvalidRequest marks a request the provider rejected and will
	// keep rejecting.
	ErrInvalidRequest = errors.New("embeddings: invalid request")

	// ErrMalformedResponse marks a response that cannot be mapped back
	// to the requested texts.
	ErrMalformedResponse = errors.New("embeddings: malformed response")
)

// IsTransient reports whether err is worth retrying.
func IsTransient(err error) bool {
	return errors.Is(err, ErrRateLimited) || errors.Is(err, ErrQuotaExhausted)
}
