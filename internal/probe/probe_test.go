package probe

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingDoer struct {
	calls   atomic.Int32
	readyOn int32 // attempt number that succeeds; 0 = never
}

func (d *countingDoer) Do(req *http.Request) (*http.Response, error) {
	n := d.calls.Add(1)
	if d.readyOn > 0 && n >= d.readyOn {
		rec := httptest.NewRecorder()
		rec.WriteHeader(http.StatusOK)
		return rec.Result(), nil
	}
	return nil, errors.New("connection refused")
}

func TestWaitExactAttemptsWhenNeverReady(t *testing.T) {
	d := &countingDoer{}
	p := Probe{URL: "http://127.0.0.1:1/api/health", MaxAttempts: 5, Interval: time.Millisecond, Client: d}
	res := p.Wait(context.Background())
	assert.False(t, res.Ready)
	assert.Equal(t, 5, res.Attempts)
	assert.Equal(t, int32(5), d.calls.Load())
}

func TestWaitReadyOnThirdAttempt(t *testing.T) {
	d := &countingDoer{readyOn: 3}
	p := Probe{URL: "http://127.0.0.1:1/api/health", MaxAttempts: 30, Interval: time.Millisecond, Client: d}
	res := p.Wait(context.Background())
	assert.True(t, res.Ready)
	assert.Equal(t, 3, res.Attempts)
	assert.Equal(t, int32(3), d.calls.Load())
}

func TestWaitAnyResponseCounts(t *testing.T) {
	// A 500 still signals that the endpoint answers.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	p := Probe{URL: srv.URL, MaxAttempts: 1, Interval: time.Millisecond}
	res := p.Wait(context.Background())
	assert.True(t, res.Ready)
	assert.Equal(t, 1, res.Attempts)
}

func TestWaitConnectionRefusedSwallowed(t *testing.T) {
	// Reserve a port and close it so nothing listens there.
	srv := httptest.NewServer(http.NewServeMux())
	url := srv.URL
	srv.Close()

	p := Probe{URL: url, MaxAttempts: 3, Interval: time.Millisecond}
	res := p.Wait(context.Background())
	assert.False(t, res.Ready)
	assert.Equal(t, 3, res.Attempts)
}

func TestWaitCanceledBetweenAttempts(t *testing.T) {
	d := &countingDoer{}
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(30 * time.Millisecond)
		cancel()
	}()
	p := Probe{URL: "http://127.0.0.1:1/", MaxAttempts: 1000, Interval: 10 * time.Millisecond, Client: d}
	res := p.Wait(ctx)
	require.False(t, res.Ready)
	require.Less(t, res.Attempts, 1000)
}

func TestWaitZeroAttemptsTreatedAsOne(t *testing.T) {
	d := &countingDoer{readyOn: 1}
	p := Probe{URL: "http://127.0.0.1:1/", Interval: time.Millisecond, Client: d}
	res := p.Wait(context.Background())
	assert.True(t, res.Ready)
	assert.Equal(t, 1, res.Attempts)
}
