package gemini

import (
	"fmt"
	"net/http"
)

// ErrorKind classifies an upstream failure.
type ErrorKind string

const (
	// KindTransport covers connection failures and timeouts.
	KindTransport ErrorKind = "transport"
	// KindHTTP covers non-2xx responses.
	KindHTTP ErrorKind = "http"
	// KindNoCandidates covers 2xx responses carrying no usable candidate.
	KindNoCandidates ErrorKind = "no_candidates"
)

// UpstreamError describes a failed call to the answer service. Detail is
// meant for operator logs and must not be shown to end users.
type UpstreamError struct {
	Kind   ErrorKind
	Status int
	Detail string
	Err    error
}

func (e *UpstreamError) Error() string {
	switch e.Kind {
	case KindHTTP:
		return fmt.Sprintf("gemini: http status %d: %s", e.Status, e.Detail)
	case KindNoCandidates:
		return fmt.Sprintf("gemini: no candidates: %s", e.Detail)
	default:
		if e.Err != nil {
			return fmt.Sprintf("gemini: transport: %v", e.Err)
		}
		return fmt.Sprintf("gemini: transport: %s", e.Detail)
	}
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// IsModelUnsupported reports a 404, which means the configured model id is
// not available for the credential and needs operator action.
func (e *UpstreamError) IsModelUnsupported() bool {
	return e != nil && e.Kind == KindHTTP && e.Status == http.StatusNotFound
}

// IsRateLimited reports a 429 from the provider.
func (e *UpstreamError) IsRateLimited() bool {
	return e != nil && e.Kind == KindHTTP && e.Status == http.StatusTooManyRequests
}

// IsServerError reports a 5xx from the provider.
func (e *UpstreamError) IsServerError() bool {
	return e != nil && e.Kind == KindHTTP && e.Status >= 500 && e.Status <= 599
}
