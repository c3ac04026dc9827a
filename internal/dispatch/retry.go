package dispatch

import (
	"errors"
	"fmt"
	"time"
)

// ErrRequestTimeout marks a transport call that exceeded its own per-call
// timeout. Timed-out attempts are reported as terminal, never retried.
var ErrRequestTimeout = errors.New("request timeout")

// Gateway statuses that end the dispatch immediately.
var terminalStatuses = map[int]bool{
	400: true,
	401: true,
	403: true,
	404: true,
	405: true,
}

// Gateway statuses worth another attempt on the normal backoff schedule.
var retryableStatuses = map[int]bool{
	408: true,
	425: true,
	429: true,
}

// Decision is the retry coordinator's reading of one completed attempt:
// either the dispatch is over and Outcome says how, or another attempt is
// due, immediately after a server-side failure or after the backoff delay
// otherwise.
type Decision struct {
	Terminal  bool
	ZeroDelay bool
	Outcome   Outcome
}

// Classify maps the reply (or transport error) of one attempt onto the
// retry policy.
func Classify(reply Reply, err error) Decision {
	switch {
	case errors.Is(err, ErrRequestTimeout):
		return Decision{Terminal: true, Outcome: Outcome{Kind: OutcomeTimeout, Reason: "request timeout"}}
	case err != nil:
		// Anything the transport throws that is not a timeout ends the
		// dispatch; retrying blind transport faults is not worth it.
		return Decision{Terminal: true, Outcome: Outcome{Kind: OutcomeTransportError, Reason: err.Error()}}
	case terminalStatuses[reply.Status]:
		return Decision{Terminal: true, Outcome: Outcome{
			Kind:   OutcomeClientRejected,
			Reason: fmt.Sprintf("gateway rejected request with status %d", reply.Status),
		}}
	case retryableStatuses[reply.Status]:
		return Decision{}
	case reply.Status >= 500:
		return Decision{ZeroDelay: true}
	case reply.Accepted:
		return Decision{Terminal: true, Outcome: Outcome{Kind: OutcomeSuccess}}
	default:
		// Parsed fine but the gateway declined; retry on the normal schedule.
		return Decision{}
	}
}

// Backoff is the per-dispatch delay schedule. Next consumes the current
// delay and multiplies it for the following retry; a zero-delay step after
// a server-side failure leaves the schedule untouched.
type Backoff struct {
	Delay      time.Duration
	Multiplier float64
}

func (b *Backoff) Next(zeroDelay bool) time.Duration {
	if zeroDelay {
		return 0
	}
	d := b.Delay
	b.Delay = time.Duration(float64(b.Delay) * b.Multiplier)
	return d
}
