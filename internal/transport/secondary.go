package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

// rpcRateLimitCode is the bundle endpoint's JSON-RPC code for per-sender
// throttling.
const rpcRateLimitCode = -32097

// Secondary is the HTTP fallback channel: JSON-RPC sendBundle against the
// regional endpoint set, ~150ms one way.
type Secondary struct {
	rot    *rotation
	client *http.Client
}

func NewSecondary(endpoints []string, rotateAfter int) *Secondary {
	return &Secondary{
		rot: newRotation(endpoints, rotateAfter),
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (s *Secondary) Name() string { return "secondary" }

type rpcRequest struct {
	JSONRPC string     `json:"jsonrpc"`
	ID      int        `json:"id"`
	Method  string     `json:"method"`
	Params  [][]string `json:"params"`
}

type rpcResponse struct {
	Result string `json:"result"`
	Error  *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Submit posts the bundle and classifies the response.
func (s *Secondary) Submit(ctx context.Context, bundle *Bundle) Result {
	endpoint := s.rot.current()

	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "sendBundle",
		Params:  [][]string{bundle.Transactions},
	})
	if err != nil {
		return Result{Kind: TransportError, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint+"/api/v1/bundles", bytes.NewReader(body))
	if err != nil {
		return Result{Kind: TransportError, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		s.rot.noteError(s.Name())
		return Result{Kind: TransportError, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		s.rot.noteSuccess()
		return Result{Kind: RateLimited, Reason: "http 429"}
	}
	if resp.StatusCode >= 500 {
		s.rot.noteError(s.Name())
		return Result{Kind: TransportError, Err: fmt.Errorf("http %d", resp.StatusCode)}
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		s.rot.noteError(s.Name())
		return Result{Kind: TransportError, Err: err}
	}

	var parsed rpcResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		s.rot.noteError(s.Name())
		return Result{Kind: TransportError, Err: fmt.Errorf("parse response: %w", err)}
	}

	s.rot.noteSuccess()

	if parsed.Error != nil {
		if parsed.Error.Code == rpcRateLimitCode {
			return Result{Kind: RateLimited, Reason: parsed.Error.Message}
		}
		return Result{Kind: Rejected, Reason: parsed.Error.Message}
	}
	if parsed.Result == "" {
		return Result{Kind: Rejected, Reason: "empty bundle id"}
	}

	log.Debug().Str("bundle_id", parsed.Result).Msg("secondary accepted bundle")
	return Result{Kind: Accepted, BundleID: parsed.Result}
}
