package ws

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"vkrelay/internal/crypto"
	"vkrelay/internal/domain"
	"vkrelay/internal/session"
	"vkrelay/internal/sign"
)

// closeInvalidFrame is sent when a protocol violation forces the connection
// down.
const (
	closeInvalidFrame       = websocket.CloseProtocolError // 1002
	closeInvalidFrameReason = "Invalid relay frame"
)

// writeWait bounds a single raw write to the relay.
const writeWait = 10 * time.Second

// closeGrace bounds how long a close initiator waits for the peer's close
// reply before synthesizing the close event locally.
const closeGrace = 3 * time.Second

// Handlers are the caller's event slots. All of them are optional and are
// invoked from the connection's reader goroutine, one event at a time, in
// receipt order.
//
// OnClose receives the peer's close code and reason; a close envelope with
// an empty payload surfaces as code 1005 (no status received), matching
// what a close without a code looks like to a native socket.
type Handlers struct {
	OnMessage func(t MsgType, payload []byte)
	OnClose   func(code int, reason string)
	OnError   func(err error)
}

// Dialer opens signed WebSocket connections through a host's relay session.
type Dialer struct {
	Resolver *session.Resolver
	Keys     *crypto.KeyCache
	WS       *websocket.Dialer // optional; defaults to a 45s-handshake dialer
	Log      *zap.Logger
}

type frame struct {
	t       MsgType
	payload []byte
}

// Conn is the signed connection facade. Outbound frames are signed and
// transmitted in the exact order Send was called; inbound frames are
// verified and delivered in receipt order. Envelope-level pings are
// acknowledged internally and never surfaced.
type Conn struct {
	raw *websocket.Conn
	sc  *SigningContext
	h   Handlers
	log *zap.Logger

	outbound chan frame
	done     chan struct{}
	once     sync.Once
}

// Dial resolves the host's relay session, signs the handshake, and opens
// the socket against {baseURL}{pathAndQuery} with the signature as query
// parameters (the scheme swapped http→ws). The handshake nonce becomes the
// connection's request nonce, binding every subsequent frame to it.
func (d *Dialer) Dial(ctx context.Context, id domain.HostID, pathAndQuery string, h Handlers) (*Conn, error) {
	hctx, err := d.Resolver.Resolve(ctx, id)
	if err != nil {
		return nil, err
	}
	signingKey, err := d.Keys.SigningKey(hctx.Host)
	if err != nil {
		return nil, err
	}
	verifyKey, err := d.Keys.VerifyKey(hctx.Host)
	if err != nil {
		return nil, err
	}

	sig := sign.Request(signingKey, hctx.Host.SigningSessionID, http.MethodGet, pathAndQuery, nil)

	wsURL := httpToWS(hctx.RelaySessionBaseURL) + pathAndQuery
	sep := "?"
	if strings.Contains(pathAndQuery, "?") {
		sep = "&"
	}
	wsURL += sep + sign.QueryValues(sig).Encode()

	dialer := d.WS
	if dialer == nil {
		dialer = &websocket.Dialer{HandshakeTimeout: 45 * time.Second}
	}
	raw, resp, err := dialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		if resp != nil && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
			d.Resolver.Invalidate(id)
		}
		return nil, fmt.Errorf("dialing relay socket for %s: %w", id, err)
	}

	log := d.Log
	if log == nil {
		log = zap.NewNop()
	}
	c := &Conn{
		raw: raw,
		sc: &SigningContext{
			SessionID:    hctx.Host.SigningSessionID,
			RequestNonce: sig.Nonce,
			SigningKey:   signingKey,
			VerifyKey:    verifyKey,
		},
		h:        h,
		log:      log.Named("ws").With(zap.String("host", string(id))),
		outbound: make(chan frame, 16),
		done:     make(chan struct{}),
	}
	go c.writeLoop()
	go c.readLoop()
	return c, nil
}

// httpToWS swaps the URL scheme http→ws / https→wss.
func httpToWS(u string) string {
	return "ws" + strings.TrimPrefix(u, "http")
}

// Send classifies data (string as a text frame, []byte as a binary frame)
// and enqueues it for signing and transmission. An unsupported payload type
// is a protocol error and force-closes the connection, the same as any
// other signing failure.
func (c *Conn) Send(data any) error {
	switch v := data.(type) {
	case string:
		return c.SendText(v)
	case []byte:
		return c.SendBinary(v)
	default:
		err := &ProtocolError{Reason: fmt.Sprintf("unsupported outbound payload type %T", data)}
		c.fail(err)
		return err
	}
}

func (c *Conn) SendText(s string) error {
	return c.enqueue(frame{t: MsgText, payload: []byte(s)})
}

func (c *Conn) SendBinary(b []byte) error {
	return c.enqueue(frame{t: MsgBinary, payload: b})
}

// Close sends a signed close envelope, then waits (bounded) for the peer's
// close reply before tearing the socket down, so OnClose fires on the
// initiating side too. A zero code closes without a code.
func (c *Conn) Close(code int, reason string) error {
	return c.enqueue(frame{t: MsgClose, payload: EncodeClosePayload(code, reason)})
}

// Done is closed when the connection has fully shut down.
func (c *Conn) Done() <-chan struct{} { return c.done }

func (c *Conn) enqueue(f frame) error {
	select {
	case <-c.done:
		return net.ErrClosed
	case c.outbound <- f:
		return nil
	}
}

// writeLoop is the single consumer of the outbound queue. Confining
// signing to one goroutine is what keeps outbound sequence numbers in call
// order; a second writer would desynchronize them.
func (c *Conn) writeLoop() {
	for {
		select {
		case <-c.done:
			return
		case f := <-c.outbound:
			raw, err := c.sc.EncodeFrame(f.t, f.payload)
			if err != nil {
				c.fail(err)
				return
			}
			_ = c.raw.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.raw.WriteMessage(websocket.TextMessage, raw); err != nil {
				c.fail(fmt.Errorf("writing relay frame: %w", err))
				return
			}
			if f.t == MsgClose {
				// Stop writing but keep the socket up: the reader still
				// delivers the peer's close reply, which is what fires
				// OnClose for the initiator. If the reply never comes the
				// close event is synthesized from what was sent.
				code, reason, hasCode := DecodeClosePayload(f.payload)
				if !hasCode {
					code, reason = websocket.CloseNoStatusReceived, ""
				}
				time.AfterFunc(closeGrace, func() { c.closeWith(code, reason) })
				return
			}
		}
	}
}

// readLoop verifies and delivers inbound frames in receipt order.
func (c *Conn) readLoop() {
	for {
		mt, raw, err := c.raw.ReadMessage()
		if err != nil {
			select {
			case <-c.done:
				return
			default:
			}
			var ce *websocket.CloseError
			if errors.As(err, &ce) {
				c.log.Debug("relay socket closed by peer",
					zap.Int("code", ce.Code),
					zap.String("reason", ce.Text))
				c.closeWith(ce.Code, ce.Text)
				return
			}
			c.fail(fmt.Errorf("reading relay frame: %w", err))
			return
		}
		if mt != websocket.TextMessage {
			c.fail(&ProtocolError{Reason: "non-text transport frame"})
			return
		}
		t, payload, err := c.sc.DecodeFrame(raw)
		if err != nil {
			c.fail(err)
			return
		}
		switch t {
		case MsgText, MsgBinary:
			if c.h.OnMessage != nil {
				c.h.OnMessage(t, payload)
			}
		case MsgPing:
			// Acknowledged at the protocol level, not surfaced.
			_ = c.enqueue(frame{t: MsgPong, payload: payload})
		case MsgPong:
		case MsgClose:
			code, reason, hasCode := DecodeClosePayload(payload)
			if !hasCode {
				code, reason = websocket.CloseNoStatusReceived, ""
			}
			c.closeWith(code, reason)
			return
		}
	}
}

// fail reports err and force-closes the raw socket with close code 1002 if
// it is still up. Decode, verify and signing failures all land here: a bad
// frame never passes through silently and never leaves the connection
// half-broken.
//
// The close frame goes out via WriteControl, which gorilla permits alongside
// a concurrent WriteMessage; fail can race the write loop's data frames.
func (c *Conn) fail(err error) {
	c.once.Do(func() {
		c.log.Error("relay socket failure", zap.Error(err))
		if c.h.OnError != nil {
			c.h.OnError(err)
		}
		msg := websocket.FormatCloseMessage(closeInvalidFrame, closeInvalidFrameReason)
		_ = c.raw.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
		_ = c.raw.Close()
		close(c.done)
	})
}

// closeWith fires the close event exactly once and tears the socket down.
// Both the peer-initiated and the locally-initiated close paths land here.
func (c *Conn) closeWith(code int, reason string) {
	c.once.Do(func() {
		if c.h.OnClose != nil {
			c.h.OnClose(code, reason)
		}
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = c.raw.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
		_ = c.raw.Close()
		close(c.done)
	})
}
