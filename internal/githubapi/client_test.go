package githubapi

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"
)

type scriptedDoer struct {
	responses []scriptedResponse
	calls     int
}

type scriptedResponse struct {
	status int
	err    error
}

func (d *scriptedDoer) Do(_ *http.Request) (*http.Response, error) {
	if d.calls >= len(d.responses) {
		return nil, fmt.Errorf("unexpected call %d", d.calls+1)
	}
	next := d.responses[d.calls]
	d.calls++
	if next.err != nil {
		return nil, next.err
	}
	return &http.Response{
		StatusCode: next.status,
		Body:       io.NopCloser(strings.NewReader("{}")),
	}, nil
}

func newTestClient(doer HTTPDoer, retry RetryConfig) (*Client, *[]time.Duration) {
	client := NewClient(doer, retry)
	sleeps := &[]time.Duration{}
	client.Sleep = func(duration time.Duration) {
		*sleeps = append(*sleeps, duration)
	}
	return client, sleeps
}

func TestClientDoRetriesTransientStatus(t *testing.T) {
	t.Parallel()

	doer := &scriptedDoer{responses: []scriptedResponse{
		{status: http.StatusInternalServerError},
		{status: http.StatusTooManyRequests},
		{status: http.StatusOK},
	}}
	client, sleeps := newTestClient(doer, RetryConfig{
		MaxAttempts:       3,
		InitialBackoff:    500 * time.Millisecond,
		BackoffMultiplier: 1.5,
	})

	req, _ := http.NewRequest(http.MethodGet, "https://api.github.com/repos/a/b", nil)
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("Do() error = %v, want nil", err)
	}
	defer resp.Body.Close()

	if doer.calls != 3 {
		t.Fatalf("Do() attempts = %d, want 3", doer.calls)
	}
	wantSleeps := []time.Duration{500 * time.Millisecond, 750 * time.Millisecond}
	if len(*sleeps) != len(wantSleeps) {
		t.Fatalf("Do() sleeps = %v, want %v", *sleeps, wantSleeps)
	}
	for i, want := range wantSleeps {
		if (*sleeps)[i] != want {
			t.Fatalf("Do() sleep %d = %v, want %v", i, (*sleeps)[i], want)
		}
	}
}

func TestClientDoPermanentErrorImmediate(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name    string
		status  int
		wantErr error
	}{
		{name: "not_found", status: http.StatusNotFound, wantErr: ErrNotFound},
		{name: "forbidden", status: http.StatusForbidden, wantErr: ErrForbidden},
		{name: "unauthorized", status: http.StatusUnauthorized, wantErr: ErrUnauthorized},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			doer := &scriptedDoer{responses: []scriptedResponse{{status: testCase.status}}}
			client, sleeps := newTestClient(doer, RetryConfig{
				MaxAttempts:    3,
				InitialBackoff: 100 * time.Millisecond,
			})

			req, _ := http.NewRequest(http.MethodGet, "https://api.github.com/repos/a/b", nil)
			_, err := client.Do(req)
			if !errors.Is(err, testCase.wantErr) {
				t.Fatalf("Do() error = %v, want %v", err, testCase.wantErr)
			}
			if doer.calls != 1 {
				t.Fatalf("Do() attempts = %d, want 1", doer.calls)
			}
			if len(*sleeps) != 0 {
				t.Fatalf("Do() slept %v, want no sleeps", *sleeps)
			}
			if !IsPermanent(err) {
				t.Fatalf("IsPermanent(%v) = false, want true", err)
			}
		})
	}
}

func TestClientDoExhaustsTransientRetries(t *testing.T) {
	t.Parallel()

	doer := &scriptedDoer{responses: []scriptedResponse{
		{status: http.StatusBadGateway},
		{status: http.StatusBadGateway},
		{status: http.StatusBadGateway},
	}}
	client, _ := newTestClient(doer, RetryConfig{
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
	})

	req, _ := http.NewRequest(http.MethodGet, "https://api.github.com/repos/a/b", nil)
	_, err := client.Do(req)
	if !errors.Is(err, ErrTransient) {
		t.Fatalf("Do() error = %v, want ErrTransient", err)
	}
	if doer.calls != 3 {
		t.Fatalf("Do() attempts = %d, want 3", doer.calls)
	}
	if IsPermanent(err) {
		t.Fatalf("IsPermanent(%v) = true, want false", err)
	}
}

func TestClientDoRetriesNetworkError(t *testing.T) {
	t.Parallel()

	doer := &scriptedDoer{responses: []scriptedResponse{
		{err: fmt.Errorf("connection reset by peer")},
		{status: http.StatusOK},
	}}
	client, _ := newTestClient(doer, RetryConfig{
		MaxAttempts:    2,
		InitialBackoff: time.Millisecond,
	})

	req, _ := http.NewRequest(http.MethodGet, "https://api.github.com/repos/a/b", nil)
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("Do() error = %v, want nil", err)
	}
	defer resp.Body.Close()
	if doer.calls != 2 {
		t.Fatalf("Do() attempts = %d, want 2", doer.calls)
	}
}

func TestBackoffForAttemptHonorsMaxBackoff(t *testing.T) {
	t.Parallel()

	client := NewClient(nil, RetryConfig{
		MaxAttempts:       5,
		InitialBackoff:    time.Second,
		BackoffMultiplier: 2,
		MaxBackoff:        3 * time.Second,
	})

	testCases := []struct {
		attempt int
		want    time.Duration
	}{
		{attempt: 1, want: time.Second},
		{attempt: 2, want: 2 * time.Second},
		{attempt: 3, want: 3 * time.Second},
		{attempt: 4, want: 3 * time.Second},
	}
	for _, testCase := range testCases {
		if got := client.backoffForAttempt(testCase.attempt); got != testCase.want {
			t.Fatalf("backoffForAttempt(%d) = %v, want %v", testCase.attempt, got, testCase.want)
		}
	}
}
