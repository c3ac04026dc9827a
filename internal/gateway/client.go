package gateway

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"payflow/internal/dispatch"
)

// Client sends one payment request per call to the remote gateway. Retry
// policy lives in the dispatch loop, not here; the client only translates
// the HTTP exchange into a dispatch.Reply.
type Client struct {
	gatewayURL  string
	fee         float64
	callTimeout time.Duration
	httpClient  *http.Client
	logger      *slog.Logger
}

func NewClient(httpClient *http.Client, gatewayURL string, fee float64, callTimeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		httpClient:  httpClient,
		gatewayURL:  gatewayURL,
		fee:         fee,
		callTimeout: callTimeout,
		logger:      logger,
	}
}

type gatewayRequest struct {
	AccountName   string  `json:"accountName"`
	ServiceName   string  `json:"serviceName"`
	TransactionID string  `json:"transactionId"`
	PaymentID     string  `json:"paymentId"`
	Amount        float64 `json:"amount"`
}

type gatewayResponse struct {
	Result  bool    `json:"result"`
	Message *string `json:"message"`
}

var bufPool = sync.Pool{
	New: func() any {
		return bytes.NewBuffer(make([]byte, 0, 512))
	},
}

var tracer = otel.Tracer("gateway-client")

func (c *Client) Send(ctx context.Context, tx dispatch.Transaction) (dispatch.Reply, error) {
	ctx, span := tracer.Start(ctx, "call-payment-gateway", trace.WithAttributes(
		attribute.String("gateway.url", c.gatewayURL),
		attribute.String("transaction.id", tx.TransactionID),
		attribute.Float64("payment.amount", tx.Amount),
	))
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()

	buf := bufPool.Get().(*bytes.Buffer)
	buf.Reset()
	defer bufPool.Put(buf)

	body := gatewayRequest{
		AccountName:   tx.AccountName,
		ServiceName:   tx.ServiceName,
		TransactionID: tx.TransactionID,
		PaymentID:     tx.PaymentID,
		Amount:        tx.Amount,
	}
	if err := sonic.ConfigFastest.NewEncoder(buf).Encode(body); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to serialize request body")
		return dispatch.Reply{}, fmt.Errorf("failed to serialize request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.gatewayURL, bytes.NewReader(buf.Bytes()))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to create http request")
		return dispatch.Reply{}, fmt.Errorf("unable to create http request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		span.RecordError(err)
		if isTimeout(err) {
			span.SetStatus(codes.Error, "gateway call timed out")
			c.logger.Warn("gateway call timed out", "transactionId", tx.TransactionID, "error", err)
			return dispatch.Reply{}, fmt.Errorf("%w: %v", dispatch.ErrRequestTimeout, err)
		}
		span.SetStatus(codes.Error, "gateway call failed")
		return dispatch.Reply{}, fmt.Errorf("gateway call failed: %w", err)
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	reply := dispatch.Reply{Status: resp.StatusCode}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		reply.Message = err.Error()
		return reply, nil
	}

	var parsed gatewayResponse
	if err := sonic.ConfigFastest.Unmarshal(raw, &parsed); err != nil {
		// Malformed bodies count as a declined result with the parse
		// error as the message.
		reply.Message = err.Error()
		return reply, nil
	}

	reply.Accepted = parsed.Result
	if parsed.Message != nil {
		reply.Message = *parsed.Message
	}
	return reply, nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
