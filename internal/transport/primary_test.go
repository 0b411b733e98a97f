package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func wsServer(t *testing.T, respond func(req primaryRequest) primaryResponse) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()
		for {
			_, raw, err := conn.ReadMessage()
			if err != nil {
				return
			}
			body, err := decodeFrame(raw)
			if err != nil {
				t.Errorf("decode frame: %v", err)
				return
			}
			var req primaryRequest
			if err := json.Unmarshal(body, &req); err != nil {
				t.Errorf("parse request: %v", err)
				return
			}
			payload, _ := json.Marshal(respond(req))
			conn.WriteMessage(websocket.BinaryMessage, encodeFrame(payload))
		}
	}))
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func submitPrimary(t *testing.T, srv *httptest.Server) Result {
	t.Helper()
	p := NewPrimary([]string{wsURL(srv)}, 3)
	defer p.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return p.Submit(ctx, &Bundle{UUID: "u-1", Transactions: []string{"tx1", "tx2", "tx3"}})
}

func TestPrimaryAccepted(t *testing.T) {
	srv := wsServer(t, func(req primaryRequest) primaryResponse {
		if req.UUID != "u-1" || len(req.Transactions) != 3 {
			t.Errorf("unexpected request: %+v", req)
		}
		return primaryResponse{BundleID: "bundle-ws"}
	})
	defer srv.Close()

	res := submitPrimary(t, srv)
	if res.Kind != Accepted || res.BundleID != "bundle-ws" {
		t.Fatalf("result = %+v, want accepted bundle-ws", res)
	}
}

func TestPrimaryRateLimited(t *testing.T) {
	srv := wsServer(t, func(primaryRequest) primaryResponse {
		return primaryResponse{RateLimited: true, Error: "throttled"}
	})
	defer srv.Close()

	if res := submitPrimary(t, srv); res.Kind != RateLimited {
		t.Fatalf("kind = %s, want rate_limited", res.Kind)
	}
}

func TestPrimaryRejected(t *testing.T) {
	srv := wsServer(t, func(primaryRequest) primaryResponse {
		return primaryResponse{Error: "simulation failed"}
	})
	defer srv.Close()

	res := submitPrimary(t, srv)
	if res.Kind != Rejected || res.Reason != "simulation failed" {
		t.Fatalf("result = %+v, want rejection", res)
	}
}

func TestPrimaryDialFailure(t *testing.T) {
	srv := httptest.NewServer(nil)
	srv.Close()

	p := NewPrimary([]string{wsURL(srv)}, 3)
	defer p.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	res := p.Submit(ctx, &Bundle{UUID: "u", Transactions: []string{"tx"}})
	if res.Kind != TransportError {
		t.Fatalf("kind = %s, want transport_error", res.Kind)
	}
}

func TestPrimaryReconnectsAfterServerDrop(t *testing.T) {
	var calls atomic.Int32
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		if calls.Add(1) == 1 {
			conn.Close() // drop the first connection mid-flight
			return
		}
		defer conn.Close()
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if _, err := decodeFrame(raw); err != nil {
			t.Errorf("decode: %v", err)
			return
		}
		payload, _ := json.Marshal(primaryResponse{BundleID: "bundle-2"})
		conn.WriteMessage(websocket.BinaryMessage, encodeFrame(payload))
	}))
	defer srv.Close()

	p := NewPrimary([]string{wsURL(srv)}, 10)
	defer p.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	bundle := &Bundle{UUID: "u", Transactions: []string{"tx"}}

	if res := p.Submit(ctx, bundle); res.Kind != TransportError {
		t.Fatalf("first submit kind = %s, want transport_error", res.Kind)
	}
	// The dead connection was dropped; the next submit redials.
	if res := p.Submit(ctx, bundle); res.Kind != Accepted {
		t.Fatalf("second submit = %+v, want accepted", res)
	}
}

func TestFrameRoundTrip(t *testing.T) {
	payload := []byte(`{"uuid":"x"}`)
	frame := encodeFrame(payload)
	if frame[0] != frameVersion {
		t.Fatalf("version byte = %d", frame[0])
	}
	got, err := decodeFrame(frame)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if string(got) != string(payload) {
		t.Fatalf("payload = %q, want %q", got, payload)
	}
}

func TestFrameRejectsGarbage(t *testing.T) {
	cases := [][]byte{
		nil,
		{1, 2},
		// bad version
		{0xFF, 0, 0, 0, 0},
		// length mismatch
		{frameVersion, 0, 0, 0, 9},
	}
	for i, frame := range cases {
		if _, err := decodeFrame(frame); err == nil {
			t.Fatalf("case %d: garbage frame decoded", i)
		}
	}
}
