package dispatch

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
)

func TestClassify_ClientErrorsAreTerminal(t *testing.T) {
	for _, status := range []int{400, 401, 403, 404, 405} {
		d := Classify(Reply{Status: status}, nil)
		if !d.Terminal {
			t.Fatalf("status %d: expected terminal", status)
		}
		if d.Outcome.Kind != OutcomeClientRejected {
			t.Fatalf("status %d: expected client rejection, got %s", status, d.Outcome.Kind)
		}
		if !strings.Contains(d.Outcome.Reason, fmt.Sprintf("%d", status)) {
			t.Fatalf("status %d: reason %q does not reference the status", status, d.Outcome.Reason)
		}
	}
}

func TestClassify_RetryableStatusesKeepNormalDelay(t *testing.T) {
	for _, status := range []int{408, 425, 429} {
		d := Classify(Reply{Status: status}, nil)
		if d.Terminal {
			t.Fatalf("status %d: expected retryable", status)
		}
		if d.ZeroDelay {
			t.Fatalf("status %d: expected the normal backoff schedule", status)
		}
	}
}

func TestClassify_ServerErrorForcesZeroDelay(t *testing.T) {
	for _, status := range []int{500, 502, 503} {
		d := Classify(Reply{Status: status}, nil)
		if d.Terminal {
			t.Fatalf("status %d: expected retryable", status)
		}
		if !d.ZeroDelay {
			t.Fatalf("status %d: expected fast retry", status)
		}
	}
}

func TestClassify_AcceptedBodyIsSuccess(t *testing.T) {
	d := Classify(Reply{Status: 200, Accepted: true}, nil)
	if !d.Terminal || d.Outcome.Kind != OutcomeSuccess {
		t.Fatalf("expected terminal success, got %+v", d)
	}
}

func TestClassify_DeclinedBodyRetries(t *testing.T) {
	d := Classify(Reply{Status: 200, Accepted: false, Message: "declined"}, nil)
	if d.Terminal {
		t.Fatalf("expected a declined result to be retried")
	}
	if d.ZeroDelay {
		t.Fatalf("expected the normal backoff schedule")
	}
}

func TestClassify_TimeoutIsTerminalNotRetried(t *testing.T) {
	err := fmt.Errorf("%w: context deadline exceeded", ErrRequestTimeout)
	d := Classify(Reply{}, err)
	if !d.Terminal {
		t.Fatalf("expected terminal")
	}
	if d.Outcome.Kind != OutcomeTimeout {
		t.Fatalf("expected timeout outcome, got %s", d.Outcome.Kind)
	}
	if d.Outcome.Reason != "request timeout" {
		t.Fatalf("expected reason %q, got %q", "request timeout", d.Outcome.Reason)
	}
}

func TestClassify_OtherTransportErrorIsTerminal(t *testing.T) {
	d := Classify(Reply{}, errors.New("connection reset"))
	if !d.Terminal {
		t.Fatalf("expected terminal")
	}
	if d.Outcome.Kind != OutcomeTransportError {
		t.Fatalf("expected transport error outcome, got %s", d.Outcome.Kind)
	}
	if d.Outcome.Reason != "connection reset" {
		t.Fatalf("expected the underlying message as reason, got %q", d.Outcome.Reason)
	}
}

func TestBackoff_DelayGrowsByMultiplier(t *testing.T) {
	b := Backoff{Delay: 100 * time.Millisecond, Multiplier: 2}

	if d := b.Next(false); d != 100*time.Millisecond {
		t.Fatalf("expected first delay 100ms, got %s", d)
	}
	if d := b.Next(false); d != 200*time.Millisecond {
		t.Fatalf("expected second delay 200ms, got %s", d)
	}
	if d := b.Next(false); d != 400*time.Millisecond {
		t.Fatalf("expected third delay 400ms, got %s", d)
	}
}

func TestBackoff_ZeroDelayLeavesScheduleUntouched(t *testing.T) {
	b := Backoff{Delay: 100 * time.Millisecond, Multiplier: 2}

	if d := b.Next(true); d != 0 {
		t.Fatalf("expected zero delay, got %s", d)
	}
	if d := b.Next(false); d != 100*time.Millisecond {
		t.Fatalf("expected the schedule to resume at 100ms, got %s", d)
	}
}
