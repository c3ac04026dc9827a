package dispatch

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// PaymentRequest is one unit of work. It is immutable for the lifetime of
// the dispatch; every retry sends the same identifying fields.
type PaymentRequest struct {
	PaymentID string    `json:"paymentId"`
	Amount    float64   `json:"amount"`
	CreatedAt time.Time `json:"createdAt"`
	Deadline  time.Time `json:"deadline"`
}

// Transaction identifies one outbound gateway call. The transaction id is
// minted once per request and stays stable across retries.
type Transaction struct {
	AccountName   string
	ServiceName   string
	TransactionID string
	PaymentID     string
	Amount        float64
}

// Reply is what the transport hands back from one call: the raw status
// plus the business result flag parsed out of the body.
type Reply struct {
	Status   int
	Accepted bool
	Message  string
}

// Transport sends a single request to the payment gateway. Connection
// management and the per-call timeout live behind this interface.
type Transport interface {
	Send(ctx context.Context, tx Transaction) (Reply, error)
}

// Tracker is the external state tracker. Implementations must tolerate
// being called from many dispatches at once; errors are best-effort and
// never fail the dispatch.
type Tracker interface {
	LogSubmission(ctx context.Context, success bool, transactionID string, observedAt time.Time, took time.Duration) error
	LogProcessing(ctx context.Context, success bool, observedAt time.Time, transactionID string, reason string) error
}

// Settings is the slice of the account config the dispatch loop needs.
type Settings struct {
	AccountName  string
	ServiceName  string
	MaxRetries   int
	BaseBackoff  time.Duration
	Multiplier   float64
	PollInterval time.Duration
}

// Dispatcher runs one payment request through admission, rate limiting,
// the gateway call and the retry loop. The window and limiter are the
// shared per-account instances; the dispatcher itself holds no per-request
// state and is safe to use from many goroutines.
type Dispatcher struct {
	window    *Window
	limiter   *SlidingLimiter
	transport Transport
	tracker   Tracker
	estimator *LatencyEstimator
	logger    *slog.Logger
	settings  Settings

	now   func() time.Time
	sleep func(time.Duration)
}

func NewDispatcher(window *Window, limiter *SlidingLimiter, transport Transport, tracker Tracker, estimator *LatencyEstimator, logger *slog.Logger, settings Settings) *Dispatcher {
	return &Dispatcher{
		window:    window,
		limiter:   limiter,
		transport: transport,
		tracker:   tracker,
		estimator: estimator,
		logger:    logger,
		settings:  settings,
		now:       time.Now,
		sleep:     time.Sleep,
	}
}

var tracer = otel.Tracer("dispatcher")

// Dispatch drives one request to a terminal outcome. The submission is
// logged before any admission or transport work; exactly one processing
// report follows unless admission itself times out, in which case a second
// submission report (success=false) is the only further signal.
func (d *Dispatcher) Dispatch(ctx context.Context, req PaymentRequest) Outcome {
	ctx, span := tracer.Start(ctx, "dispatch", trace.WithAttributes(
		attribute.String("payment.id", req.PaymentID),
		attribute.Float64("payment.amount", req.Amount),
	))
	defer span.End()

	txID := uuid.NewString()
	start := d.now()
	span.SetAttributes(attribute.String("transaction.id", txID))

	if err := d.tracker.LogSubmission(ctx, true, txID, start, 0); err != nil {
		d.logger.Error("failed to log submission", "transactionId", txID, "error", err)
	}

	ticket := d.awaitAdmission(req.Deadline)
	if ticket == nil {
		span.SetStatus(codes.Error, "admission window timed out")
		d.logger.Warn("admission window timed out",
			"paymentId", req.PaymentID,
			"transactionId", txID,
			"occupancy", d.window.Occupancy())
		if err := d.tracker.LogSubmission(ctx, false, txID, d.now(), d.now().Sub(start)); err != nil {
			d.logger.Error("failed to log submission abort", "transactionId", txID, "error", err)
		}
		return Outcome{Kind: OutcomeTimeout, Reason: "admission window timed out"}
	}
	defer ticket.Release()

	outcome := d.run(ctx, req, txID)

	if outcome.Success() {
		span.SetStatus(codes.Ok, "")
	} else {
		span.SetStatus(codes.Error, outcome.Reason)
	}

	if err := d.tracker.LogProcessing(ctx, outcome.Success(), d.now(), txID, outcome.Reason); err != nil {
		d.logger.Error("failed to log processing outcome", "transactionId", txID, "error", err)
	}
	return outcome
}

// awaitAdmission polls the shared window until a slot is granted or the
// deadline margin says waiting any longer is pointless.
func (d *Dispatcher) awaitAdmission(deadline time.Time) *Ticket {
	for {
		if ShouldAbort(d.now(), deadline, d.estimator.Average()) {
			return nil
		}
		if ticket, _ := d.window.TryAcquire(); ticket != nil {
			return ticket
		}
		d.sleep(d.settings.PollInterval)
	}
}

// awaitPermit polls the shared limiter the same way.
func (d *Dispatcher) awaitPermit(deadline time.Time) bool {
	for {
		if ShouldAbort(d.now(), deadline, d.estimator.Average()) {
			return false
		}
		if d.limiter.Tick() {
			return true
		}
		d.sleep(d.settings.PollInterval)
	}
}

// run is the retry loop. It owns every attempt after admission and always
// comes back with a terminal outcome, so the caller can emit the single
// processing report. Exhausting the retry budget is itself terminal rather
// than a silent exit.
func (d *Dispatcher) run(ctx context.Context, req PaymentRequest, txID string) Outcome {
	tx := Transaction{
		AccountName:   d.settings.AccountName,
		ServiceName:   d.settings.ServiceName,
		TransactionID: txID,
		PaymentID:     req.PaymentID,
		Amount:        req.Amount,
	}

	backoff := Backoff{Delay: d.settings.BaseBackoff, Multiplier: d.settings.Multiplier}

	for attempt := 0; attempt <= d.settings.MaxRetries; attempt++ {
		if !d.awaitPermit(req.Deadline) {
			return Outcome{Kind: OutcomeTimeout, Reason: "deadline reached awaiting rate permit"}
		}

		started := d.now()
		reply, err := d.transport.Send(ctx, tx)
		d.estimator.Observe(d.now().Sub(started))

		decision := Classify(reply, err)
		if decision.Terminal {
			return decision.Outcome
		}

		d.logger.Debug("retrying dispatch",
			"transactionId", txID,
			"attempt", attempt+1,
			"status", reply.Status,
			"fastRetry", decision.ZeroDelay)

		if ShouldAbort(d.now(), req.Deadline, d.estimator.Average()) {
			return Outcome{Kind: OutcomeTimeout, Reason: "deadline reached before retry"}
		}
		d.sleep(backoff.Next(decision.ZeroDelay))
	}

	return Outcome{Kind: OutcomeTransportError, Reason: "retry budget exhausted"}
}
