package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func submitOnce(t *testing.T, handler http.HandlerFunc) Result {
	t.Helper()
	srv := httptest.NewServer(handler)
	defer srv.Close()

	s := NewSecondary([]string{srv.URL}, 3)
	return s.Submit(context.Background(), &Bundle{
		UUID:         "u-1",
		Transactions: []string{"tx1", "tx2", "tx3"},
	})
}

func TestSecondaryAccepted(t *testing.T) {
	res := submitOnce(t, func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("bad request body: %v", err)
		}
		if req.Method != "sendBundle" {
			t.Errorf("method = %q", req.Method)
		}
		if len(req.Params) != 1 || len(req.Params[0]) != 3 {
			t.Errorf("params = %v", req.Params)
		}
		w.Write([]byte(`{"jsonrpc":"2.0","id":1,"result":"bundle-abc"}`))
	})

	if res.Kind != Accepted || res.BundleID != "bundle-abc" {
		t.Fatalf("result = %+v, want accepted bundle-abc", res)
	}
}

func TestSecondaryRateLimitSignals(t *testing.T) {
	t.Run("http 429", func(t *testing.T) {
		res := submitOnce(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
		})
		if res.Kind != RateLimited {
			t.Fatalf("kind = %s, want rate_limited", res.Kind)
		}
	})

	t.Run("rpc code", func(t *testing.T) {
		res := submitOnce(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"jsonrpc":"2.0","id":1,"error":{"code":-32097,"message":"rate limit exceeded"}}`))
		})
		if res.Kind != RateLimited {
			t.Fatalf("kind = %s, want rate_limited", res.Kind)
		}
	})
}

func TestSecondaryRejected(t *testing.T) {
	res := submitOnce(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"jsonrpc":"2.0","id":1,"error":{"code":-32602,"message":"bundle too large"}}`))
	})
	if res.Kind != Rejected || res.Reason != "bundle too large" {
		t.Fatalf("result = %+v, want rejection with reason", res)
	}
}

func TestSecondaryTransportError(t *testing.T) {
	srv := httptest.NewServer(nil)
	srv.Close() // connection refused from here on

	s := NewSecondary([]string{srv.URL}, 3)
	res := s.Submit(context.Background(), &Bundle{UUID: "u", Transactions: []string{"tx"}})
	if res.Kind != TransportError {
		t.Fatalf("kind = %s, want transport_error", res.Kind)
	}
}

func TestEndpointRotationAfterErrors(t *testing.T) {
	dead := httptest.NewServer(nil)
	dead.Close()
	alive := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"jsonrpc":"2.0","id":1,"result":"bundle-xyz"}`))
	}))
	defer alive.Close()

	s := NewSecondary([]string{dead.URL, alive.URL}, 2)
	bundle := &Bundle{UUID: "u", Transactions: []string{"tx"}}

	// Two straight transport errors rotate onto the live endpoint.
	for i := 0; i < 2; i++ {
		if res := s.Submit(context.Background(), bundle); res.Kind != TransportError {
			t.Fatalf("attempt %d kind = %s, want transport_error", i, res.Kind)
		}
	}
	if res := s.Submit(context.Background(), bundle); res.Kind != Accepted {
		t.Fatalf("post-rotation kind = %s, want accepted", res.Kind)
	}
}
