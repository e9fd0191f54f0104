package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ruzivolabs/ruzivo/internal/fault"
)

func fastRetries(t *testing.T) {
	t.Helper()
	saved := baseRetryDelay
	baseRetryDelay = time.Millisecond
	t.Cleanup(func() { baseRetryDelay = saved })
}

func TestWithRetryRecoversFromTransientFailure(t *testing.T) {
	fastRetries(t)

	attempts := 0
	got, err := withRetry(context.Background(), "test op", func() (string, error) {
		attempts++
		if attempts < 3 {
			return "", &httpStatusError{Status: 503, Body: "overloaded"}
		}
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "ok" {
		t.Errorf("got %q, want ok", got)
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
}

func TestWithRetryFailsFastOnPermanentError(t *testing.T) {
	fastRetries(t)

	attempts := 0
	_, err := withRetry(context.Background(), "test op", func() (string, error) {
		attempts++
		return "", &httpStatusError{Status: 400, Body: "bad request"}
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1 (4xx must not retry)", attempts)
	}
	if fault.KindOf(err) != fault.KindInvalidArgument {
		t.Errorf("kind = %v, want invalid_argument", fault.KindOf(err))
	}
}

func TestWithRetryExhaustionWrapsNetworkFault(t *testing.T) {
	fastRetries(t)

	attempts := 0
	_, err := withRetry(context.Background(), "test op", func() (int, error) {
		attempts++
		return 0, &httpStatusError{Status: 500, Body: "boom"}
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if attempts != maxRetries+1 {
		t.Errorf("attempts = %d, want %d", attempts, maxRetries+1)
	}
	if fault.KindOf(err) != fault.KindNetwork {
		t.Errorf("kind = %v, want network", fault.KindOf(err))
	}
}

func TestWithRetryStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	attempts := 0
	_, err := withRetry(ctx, "test op", func() (string, error) {
		attempts++
		cancel()
		return "", &httpStatusError{Status: 500, Body: "boom"}
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if fault.KindOf(err) != fault.KindInterrupted {
		t.Errorf("kind = %v, want interrupted", fault.KindOf(err))
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1", attempts)
	}
}

func TestBackoffDelayGrowth(t *testing.T) {
	for n := 0; n < 3; n++ {
		d := backoffDelay(n)
		base := float64(baseRetryDelay * (1 << n))
		lo := time.Duration(base * (1 - retryJitterRatio))
		hi := time.Duration(base * (1 + retryJitterRatio))
		if d < lo || d > hi {
			t.Errorf("backoffDelay(%d) = %v, want within [%v, %v]", n, d, lo, hi)
		}
	}
}

func TestShouldRetry(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"429 rate limit", &httpStatusError{Status: 429}, true},
		{"500", &httpStatusError{Status: 500}, true},
		{"503", &httpStatusError{Status: 503}, true},
		{"400", &httpStatusError{Status: 400}, false},
		{"401", &httpStatusError{Status: 401}, false},
		{"404", &httpStatusError{Status: 404}, false},
		{"deadline", context.DeadlineExceeded, true},
		{"canceled", context.Canceled, false},
		{"connection refused string", errors.New("dial tcp: connection refused"), true},
		{"invalid argument fault", fault.InvalidArgument("bad"), false},
		{"interrupted fault", fault.Interrupted(), false},
		{"unrelated error", errors.New("something else"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := shouldRetry(tt.err); got != tt.want {
				t.Errorf("shouldRetry(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestClassifyPermanent(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want fault.Kind
	}{
		{"401 maps to auth", &httpStatusError{Status: 401}, fault.KindAuth},
		{"403 maps to auth", &httpStatusError{Status: 403}, fault.KindAuth},
		{"400 maps to invalid argument", &httpStatusError{Status: 400}, fault.KindInvalidArgument},
		{"existing fault passes through", fault.Config("missing key"), fault.KindConfig},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classifyPermanent("op", tt.err)
			if fault.KindOf(got) != tt.want {
				t.Errorf("kind = %v, want %v", fault.KindOf(got), tt.want)
			}
		})
	}
}
