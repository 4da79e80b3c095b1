package core

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// ErrMalformedResponse marks a server answer that could not be decoded or
// failed basic sanity checks.
var ErrMalformedResponse = errors.New("malformed server response")

// APIError is the failure shape returned by the expense API.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api error: status %d", e.Status)
	}
	return fmt.Sprintf("api error: status %d: %s", e.Status, e.Message)
}

// FailureClass labels why a create call failed, for logs and analytics.
type FailureClass string

const (
	FailureNetwork    FailureClass = "network"
	FailureTimeout    FailureClass = "timeout"
	FailureCanceled   FailureClass = "canceled"
	FailureClient     FailureClass = "client"
	FailureServer     FailureClass = "server"
	FailureUnexpected FailureClass = "unexpected_response"
)

// Classify maps an error from a collaborator call to a FailureClass.
func Classify(err error) FailureClass {
	if err == nil {
		return ""
	}
	if errors.Is(err, ErrMalformedResponse) {
		return FailureUnexpected
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return FailureTimeout
	}
	if errors.Is(err, context.Canceled) {
		return FailureCanceled
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		if apiErr.Status >= 500 {
			return FailureServer
		}
		return FailureClient
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return FailureTimeout
	}
	return FailureNetwork
}
