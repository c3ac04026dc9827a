package intake

import (
	"context"
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"payflow/internal/dispatch"
)

// Enqueuer is the queue side the handler needs.
type Enqueuer interface {
	Enqueue(ctx context.Context, data []byte) error
}

type PaymentHandler struct {
	queue          Enqueuer
	deadlineBudget time.Duration
}

type paymentRequest struct {
	PaymentID string  `json:"paymentId"`
	Amount    float64 `json:"amount"`
}

func NewPaymentHandler(queue Enqueuer, deadlineBudget time.Duration) *PaymentHandler {
	return &PaymentHandler{
		queue:          queue,
		deadlineBudget: deadlineBudget,
	}
}

// Handle accepts a payment request, stamps its creation time and absolute
// deadline, and enqueues it for the dispatch worker.
func (h *PaymentHandler) Handle(c echo.Context) error {
	ctx := c.Request().Context()
	tracer := otel.Tracer("payment-handler")
	ctx, span := tracer.Start(ctx, "payment-handler", trace.WithAttributes(
		attribute.String("handler", "payment"),
	))
	defer span.End()

	var req paymentRequest
	if err := c.Bind(&req); err != nil {
		span.RecordError(err)
		return c.NoContent(http.StatusBadRequest)
	}
	if req.PaymentID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "paymentId is required")
	}

	now := time.Now().UTC()
	payment := dispatch.PaymentRequest{
		PaymentID: req.PaymentID,
		Amount:    req.Amount,
		CreatedAt: now,
		Deadline:  now.Add(h.deadlineBudget),
	}

	span.SetAttributes(
		attribute.Float64("payment.amount", req.Amount),
		attribute.String("payment.id", req.PaymentID),
	)

	data, err := sonic.ConfigFastest.Marshal(payment)
	if err != nil {
		span.RecordError(err)
		c.Logger().Errorf("error while marshalling the payment: %v", err)
		return c.NoContent(http.StatusInternalServerError)
	}

	if err := h.queue.Enqueue(ctx, data); err != nil {
		span.RecordError(err)
		c.Logger().Errorf("error while publishing the payment: %v", err)
		return c.NoContent(http.StatusInternalServerError)
	}

	return c.NoContent(http.StatusAccepted)
}
