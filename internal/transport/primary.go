package transport

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// frameVersion is the first byte of every frame on the primary channel.
const frameVersion = 0x01

// maxFrameSize bounds inbound frames; a response is a bundle id or an error
// string, never megabytes.
const maxFrameSize = 1 << 20

// Primary is the low-latency channel: a persistent websocket to a regional
// endpoint, carrying length-prefixed binary frames (~75ms one way). The
// connection is dialed lazily and redialed after any transport error.
type Primary struct {
	rot    *rotation
	dialer *websocket.Dialer

	mu   sync.Mutex
	conn *websocket.Conn
}

func NewPrimary(endpoints []string, rotateAfter int) *Primary {
	return &Primary{
		rot: newRotation(endpoints, rotateAfter),
		dialer: &websocket.Dialer{
			HandshakeTimeout: 5 * time.Second,
		},
	}
}

func (p *Primary) Name() string { return "primary" }

type primaryRequest struct {
	UUID         string   `json:"uuid"`
	Transactions []string `json:"transactions"`
}

type primaryResponse struct {
	BundleID    string `json:"bundle_id"`
	RateLimited bool   `json:"rate_limited"`
	Error       string `json:"error"`
}

// Submit frames the bundle onto the connection and waits for the response
// frame. Any wire failure tears the connection down and counts toward
// endpoint rotation.
func (p *Primary) Submit(ctx context.Context, bundle *Bundle) Result {
	p.mu.Lock()
	defer p.mu.Unlock()

	conn, err := p.ensureConn(ctx)
	if err != nil {
		p.rot.noteError(p.Name())
		return Result{Kind: TransportError, Err: err}
	}

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(5 * time.Second)
	}

	payload, err := json.Marshal(primaryRequest{UUID: bundle.UUID, Transactions: bundle.Transactions})
	if err != nil {
		return Result{Kind: TransportError, Err: err}
	}

	conn.SetWriteDeadline(deadline)
	if err := conn.WriteMessage(websocket.BinaryMessage, encodeFrame(payload)); err != nil {
		p.drop()
		p.rot.noteError(p.Name())
		return Result{Kind: TransportError, Err: fmt.Errorf("write frame: %w", err)}
	}

	conn.SetReadDeadline(deadline)
	_, raw, err := conn.ReadMessage()
	if err != nil {
		p.drop()
		p.rot.noteError(p.Name())
		return Result{Kind: TransportError, Err: fmt.Errorf("read frame: %w", err)}
	}

	body, err := decodeFrame(raw)
	if err != nil {
		p.drop()
		p.rot.noteError(p.Name())
		return Result{Kind: TransportError, Err: err}
	}

	var resp primaryResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		p.drop()
		p.rot.noteError(p.Name())
		return Result{Kind: TransportError, Err: fmt.Errorf("parse response: %w", err)}
	}

	p.rot.noteSuccess()

	switch {
	case resp.RateLimited:
		return Result{Kind: RateLimited, Reason: resp.Error}
	case resp.Error != "":
		return Result{Kind: Rejected, Reason: resp.Error}
	case resp.BundleID == "":
		return Result{Kind: Rejected, Reason: "empty bundle id"}
	}

	log.Debug().Str("bundle_id", resp.BundleID).Msg("primary accepted bundle")
	return Result{Kind: Accepted, BundleID: resp.BundleID}
}

// ensureConn dials the current endpoint when no connection is live. Must run
// under p.mu.
func (p *Primary) ensureConn(ctx context.Context) (*websocket.Conn, error) {
	if p.conn != nil {
		return p.conn, nil
	}
	endpoint := p.rot.current()
	conn, _, err := p.dialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", endpoint, err)
	}
	conn.SetReadLimit(maxFrameSize)
	p.conn = conn
	log.Debug().Str("endpoint", endpoint).Msg("primary channel connected")
	return conn, nil
}

// drop closes and forgets the connection. Must run under p.mu.
func (p *Primary) drop() {
	if p.conn != nil {
		p.conn.Close()
		p.conn = nil
	}
}

// Close shuts the channel down.
func (p *Primary) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.drop()
}

func encodeFrame(payload []byte) []byte {
	frame := make([]byte, 5+len(payload))
	frame[0] = frameVersion
	binary.BigEndian.PutUint32(frame[1:5], uint32(len(payload)))
	copy(frame[5:], payload)
	return frame
}

func decodeFrame(frame []byte) ([]byte, error) {
	if len(frame) < 5 {
		return nil, fmt.Errorf("short frame: %d bytes", len(frame))
	}
	if frame[0] != frameVersion {
		return nil, fmt.Errorf("unknown frame version %d", frame[0])
	}
	size := binary.BigEndian.Uint32(frame[1:5])
	if int(size) != len(frame)-5 {
		return nil, fmt.Errorf("frame length mismatch: header %d, body %d", size, len(frame)-5)
	}
	return frame[5:], nil
}
