package httpclient

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// RequestIDHeader carries the request id to the API so both sides can be
// correlated in logs.
const RequestIDHeader = "X-Request-ID"

type requestIDKey struct{}

// WithRequestID makes outgoing calls made with ctx carry id.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestIDFrom returns the id stored by WithRequestID.
func RequestIDFrom(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(requestIDKey{}).(string)
	return id, ok && id != ""
}

// Metrics tracks outgoing calls.
type Metrics struct {
	TotalRequests  int64
	FailedRequests int64
	// AverageLatency is in microseconds.
	AverageLatency int64
}

// tracing stamps every request with an id and keeps call metrics.
type tracing struct {
	next    http.RoundTripper
	total   atomic.Int64
	failed  atomic.Int64
	avgUsec atomic.Int64
}

func (t *tracing) RoundTrip(req *http.Request) (*http.Response, error) {
	id, ok := RequestIDFrom(req.Context())
	if !ok {
		id = uuid.NewString()
	}
	// RoundTrippers must not modify the caller's request.
	req = req.Clone(req.Context())
	req.Header.Set(RequestIDHeader, id)

	start := time.Now()
	resp, err := t.next.RoundTrip(req)
	t.record(time.Since(start), err != nil || resp.StatusCode >= 500)
	return resp, err
}

func (t *tracing) record(d time.Duration, failed bool) {
	n := t.total.Add(1)
	if failed {
		t.failed.Add(1)
	}
	// Running average; races only blur the figure.
	avg := t.avgUsec.Load()
	t.avgUsec.Store(avg + (d.Microseconds()-avg)/n)
}

func (t *tracing) snapshot() Metrics {
	return Metrics{
		TotalRequests:  t.total.Load(),
		FailedRequests: t.failed.Load(),
		AverageLatency: t.avgUsec.Load(),
	}
}
