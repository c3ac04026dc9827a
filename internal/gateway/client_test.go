package gateway

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"payflow/internal/dispatch"
)

func testClient(url string, timeout time.Duration) *Client {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewClient(&http.Client{}, url, 0.05, timeout, logger)
}

func testTransaction() dispatch.Transaction {
	return dispatch.Transaction{
		AccountName:   "acme",
		ServiceName:   "payments",
		TransactionID: "tx-1",
		PaymentID:     "pay-1",
		Amount:        19.90,
	}
}

func TestClient_Send_AcceptedResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("expected json content type, got %q", ct)
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"result":true,"message":null}`))
	}))
	defer srv.Close()

	reply, err := testClient(srv.URL, time.Second).Send(context.Background(), testTransaction())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reply.Status != http.StatusOK || !reply.Accepted {
		t.Fatalf("expected accepted 200 reply, got %+v", reply)
	}
}

func TestClient_Send_DeclinedResultCarriesMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"result":false,"message":"insufficient funds"}`))
	}))
	defer srv.Close()

	reply, err := testClient(srv.URL, time.Second).Send(context.Background(), testTransaction())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reply.Accepted {
		t.Fatalf("expected declined reply, got %+v", reply)
	}
	if reply.Message != "insufficient funds" {
		t.Fatalf("expected gateway message, got %q", reply.Message)
	}
}

func TestClient_Send_MalformedBodyIsDeclined(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`this is not json`))
	}))
	defer srv.Close()

	reply, err := testClient(srv.URL, time.Second).Send(context.Background(), testTransaction())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reply.Accepted {
		t.Fatalf("expected malformed body to count as declined")
	}
	if reply.Message == "" {
		t.Fatalf("expected the parse error as message")
	}
	if reply.Status != http.StatusOK {
		t.Fatalf("expected the raw status to pass through, got %d", reply.Status)
	}
}

func TestClient_Send_StatusPassesThrough(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	reply, err := testClient(srv.URL, time.Second).Send(context.Background(), testTransaction())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reply.Status != http.StatusInternalServerError {
		t.Fatalf("expected status 500, got %d", reply.Status)
	}
}

func TestClient_Send_TimeoutIsDistinguished(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	_, err := testClient(srv.URL, 20*time.Millisecond).Send(context.Background(), testTransaction())
	if err == nil {
		t.Fatalf("expected an error")
	}
	if !errors.Is(err, dispatch.ErrRequestTimeout) {
		t.Fatalf("expected a request timeout, got %v", err)
	}
}
