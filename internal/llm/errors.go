package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/anthropics/anthropic-sdk-go"
	"google.golang.org/api/googleapi"
)

// FailureKind classifies a failed attempt.
type FailureKind string

const (
	FailureNone             FailureKind = ""
	FailureModelUnavailable FailureKind = "model_unavailable"
	FailureTimeout          FailureKind = "timeout"
	FailureStatus           FailureKind = "status"
	FailureEnvelope         FailureKind = "envelope"
	FailureTransport        FailureKind = "transport"
)

var (
	// ErrEmptyResponse is returned when the provider answered without text.
	ErrEmptyResponse = errors.New("no content generated")

	// ErrMalformedEnvelope is returned when the response body cannot be decoded.
	ErrMalformedEnvelope = errors.New("malformed response envelope")
)

// StatusError is a non-2xx answer from a REST provider.
type StatusError struct {
	Provider   ProviderID
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s api error: status=%d body=%s", e.Provider, e.StatusCode, e.Body)
}

// Classify maps an attempt error onto a FailureKind. Every kind other than
// FailureNone advances the retry loop to the next target.
func Classify(err error) FailureKind {
	if err == nil {
		return FailureNone
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return FailureTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return FailureTimeout
	}
	if errors.Is(err, ErrEmptyResponse) || errors.Is(err, ErrMalformedEnvelope) {
		return FailureEnvelope
	}
	if code, ok := statusCode(err); ok {
		if code == http.StatusNotFound {
			return FailureModelUnavailable
		}
		return FailureStatus
	}
	return FailureTransport
}

func statusCode(err error) (int, bool) {
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode, true
	}
	var ge *googleapi.Error
	if errors.As(err, &ge) {
		return ge.Code, true
	}
	var ae *anthropic.Error
	if errors.As(err, &ae) {
		return ae.StatusCode, true
	}
	return 0, false
}
