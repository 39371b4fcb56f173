package shared

import "errors"

// Error classes. Failures are wrapped so that errors.Is matches exactly one
// of these.
var (
	// ErrConfig is fatal and raised before startup completes.
	ErrConfig = errors.New("config error")
	// ErrParse marks malformed address or key text. Fatal for one item only.
	ErrParse = errors.New("parse error")
	// ErrTransport marks an unreachable node or a rejected request.
	ErrTransport = errors.New("transport error")
	// ErrFreshness marks a failure to obtain a recent blockhash.
	ErrFreshness = errors.New("freshness error")
	// ErrSigning marks malformed key material at signing time.
	ErrSigning = errors.New("signing error")
)
