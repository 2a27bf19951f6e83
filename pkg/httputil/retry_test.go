package httputil

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"
)

var errTransient = errors.New("transient")

func TestBackoffSuccessFirstTry(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), 3, time.Millisecond, func() error {
		calls++
		return nil
	})
	if err != nil || calls != 1 {
		t.Errorf("err = %v, calls = %d", err, calls)
	}
}

func TestBackoffPermanentError(t *testing.T) {
	permanent := errors.New("status 403")
	calls := 0
	err := Retry(context.Background(), 3, time.Millisecond, func() error {
		calls++
		return permanent
	})
	if err != permanent {
		t.Errorf("err = %v, want the permanent error", err)
	}
	if calls != 1 {
		t.Errorf("permanent error retried: %d calls", calls)
	}
}

func TestBackoffRecovers(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), 3, time.Millisecond, func() error {
		calls++
		if calls < 2 {
			return &RetryableError{Err: errTransient}
		}
		return nil
	})
	if err != nil || calls != 2 {
		t.Errorf("err = %v, calls = %d", err, calls)
	}
}

func TestBackoffExhausted(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), 3, time.Millisecond, func() error {
		calls++
		return &RetryableError{Err: errTransient}
	})
	if !errors.Is(err, errTransient) {
		t.Errorf("err = %v, want last error", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestBackoffZeroAttemptsRunsOnce(t *testing.T) {
	calls := 0
	_ = Backoff{}.Do(context.Background(), func() error {
		calls++
		return &RetryableError{Err: errTransient}
	})
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestBackoffContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Retry(ctx, 3, time.Second, func() error {
		return &RetryableError{Err: errTransient}
	})
	if err != context.Canceled {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestBackoffMaxDelayCapsServerHint(t *testing.T) {
	b := Backoff{Attempts: 2, Delay: time.Millisecond, MaxDelay: 5 * time.Millisecond}
	start := time.Now()
	calls := 0
	_ = b.Do(context.Background(), func() error {
		calls++
		return &RetryableError{Err: errTransient, After: time.Hour}
	})
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("waited %s despite MaxDelay", elapsed)
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
}

func TestRetryableErrorUnwrap(t *testing.T) {
	err := &RetryableError{Err: errTransient}
	if err.Error() != "transient" {
		t.Errorf("Error() = %q", err.Error())
	}
	if !errors.Is(err, errTransient) {
		t.Error("RetryableError should unwrap to its cause")
	}
}

func TestRetryAfter(t *testing.T) {
	tests := []struct {
		value string
		want  time.Duration
	}{
		{"", 0},
		{"30", 30 * time.Second},
		{"0", 0},
		{"-5", 0},
		{"Wed, 21 Oct 2015 07:28:00 GMT", 0},
	}
	for _, tt := range tests {
		h := http.Header{}
		if tt.value != "" {
			h.Set("Retry-After", tt.value)
		}
		if got := RetryAfter(h); got != tt.want {
			t.Errorf("RetryAfter(%q) = %s, want %s", tt.value, got, tt.want)
		}
	}
}
