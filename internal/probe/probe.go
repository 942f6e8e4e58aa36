package probe

import (
	"context"
	"net/http"
	"time"
)

// DefaultTimeout bounds each probe attempt so a black-holed endpoint cannot
// stall the monitor loop.
const DefaultTimeout = 3 * time.Second

// Doer issues a single HTTP request. *http.Client satisfies it; tests
// substitute fakes.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Probe is a stateless readiness descriptor: poll URL once per Interval,
// up to MaxAttempts times. Readiness is deliberately weak: any HTTP
// response at all counts, status code and payload are ignored. A failed
// attempt (connection refused, timeout) is swallowed and counted, never
// surfaced.
type Probe struct {
	URL         string
	MaxAttempts int
	Interval    time.Duration
	Timeout     time.Duration // per-attempt; DefaultTimeout when zero
	Client      Doer          // optional transport override for tests
}

// Result reports the outcome of a readiness wait.
type Result struct {
	Ready    bool
	Attempts int
}

func (p Probe) client() Doer {
	if p.Client != nil {
		return p.Client
	}
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &http.Client{Timeout: timeout}
}

// Wait polls until the endpoint answers, the attempt budget is exhausted,
// or ctx is canceled. It performs exactly MaxAttempts attempts when the
// target never answers.
func (p Probe) Wait(ctx context.Context) Result {
	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}
	c := p.client()
	for i := 1; i <= attempts; i++ {
		if ctx.Err() != nil {
			return Result{Ready: false, Attempts: i - 1}
		}
		if p.attempt(ctx, c) {
			return Result{Ready: true, Attempts: i}
		}
		if i == attempts {
			break
		}
		t := time.NewTimer(p.Interval)
		select {
		case <-t.C:
		case <-ctx.Done():
			if !t.Stop() {
				<-t.C
			}
			return Result{Ready: false, Attempts: i}
		}
	}
	return Result{Ready: false, Attempts: attempts}
}

func (p Probe) attempt(ctx context.Context, c Doer) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.URL, nil)
	if err != nil {
		return false
	}
	resp, err := c.Do(req)
	if err != nil {
		return false
	}
	_ = resp.Body.Close()
	return true
}
