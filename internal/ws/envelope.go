package ws

import (
	"crypto/ed25519"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"fmt"

	"vkrelay/internal/domain"
	"vkrelay/internal/sign"
)

// EnvelopeVersion is the single supported envelope version.
const EnvelopeVersion = 1

// MsgType classifies the inner payload of an envelope.
type MsgType string

const (
	MsgText   MsgType = "text"
	MsgBinary MsgType = "binary"
	MsgPing   MsgType = "ping"
	MsgPong   MsgType = "pong"
	MsgClose  MsgType = "close"
)

func (t MsgType) valid() bool {
	switch t {
	case MsgText, MsgBinary, MsgPing, MsgPong, MsgClose:
		return true
	}
	return false
}

// Envelope is the signed wire format of one frame. The envelope itself is
// always a JSON text frame; binary payloads ride base64-encoded inside it.
type Envelope struct {
	Version      int     `json:"version"`
	Seq          uint64  `json:"seq"`
	MsgType      MsgType `json:"msg_type"`
	PayloadB64   string  `json:"payload_b64"`
	SignatureB64 string  `json:"signature_b64"`
}

// ProtocolError marks a violation that is fatal to the connection.
type ProtocolError struct {
	Reason string
}

func (e *ProtocolError) Error() string { return "relay ws protocol error: " + e.Reason }

// SigningContext is the per-connection codec state. RequestNonce is the
// nonce from the handshake signature, fixed for the connection's lifetime.
// The sequence counters are independent per direction, start at zero and
// advance only on successfully encoded or verified frames.
//
// A SigningContext is not safe for concurrent use; Conn confines it to its
// reader and writer goroutines.
type SigningContext struct {
	SessionID    domain.SigningSessionID
	RequestNonce string
	SigningKey   ed25519.PrivateKey
	VerifyKey    ed25519.PublicKey

	inboundSeq  uint64
	outboundSeq uint64
}

// EncodeFrame assigns the next outbound sequence number, signs the payload
// and returns the marshalled envelope.
func (sc *SigningContext) EncodeFrame(t MsgType, payload []byte) ([]byte, error) {
	if !t.valid() {
		return nil, &ProtocolError{Reason: fmt.Sprintf("unsupported outbound message type %q", t)}
	}
	seq := sc.outboundSeq + 1
	env := Envelope{
		Version:      EnvelopeVersion,
		Seq:          seq,
		MsgType:      t,
		PayloadB64:   base64.StdEncoding.EncodeToString(payload),
		SignatureB64: sign.Frame(sc.SigningKey, sc.SessionID, sc.RequestNonce, seq, string(t), payload),
	}
	raw, err := json.Marshal(env)
	if err != nil {
		return nil, err
	}
	sc.outboundSeq = seq
	return raw, nil
}

// DecodeFrame parses, sequence-checks and verifies one received envelope.
// On success the inbound counter advances by exactly one; on any failure
// the counter is untouched and the returned error is a *ProtocolError.
func (sc *SigningContext) DecodeFrame(raw []byte) (MsgType, []byte, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return "", nil, &ProtocolError{Reason: "malformed envelope"}
	}
	if env.Version != EnvelopeVersion {
		return "", nil, &ProtocolError{Reason: fmt.Sprintf("unsupported envelope version %d", env.Version)}
	}
	if !env.MsgType.valid() {
		return "", nil, &ProtocolError{Reason: fmt.Sprintf("unsupported message type %q", env.MsgType)}
	}
	if env.Seq != sc.inboundSeq+1 {
		return "", nil, &ProtocolError{Reason: fmt.Sprintf("sequence gap: got %d, want %d", env.Seq, sc.inboundSeq+1)}
	}
	payload, err := base64.StdEncoding.DecodeString(env.PayloadB64)
	if err != nil {
		return "", nil, &ProtocolError{Reason: "malformed payload encoding"}
	}
	if !sign.VerifyFrame(sc.VerifyKey, sc.SessionID, sc.RequestNonce, env.Seq, string(env.MsgType), payload, env.SignatureB64) {
		return "", nil, &ProtocolError{Reason: "frame signature verification failed"}
	}
	sc.inboundSeq = env.Seq
	return env.MsgType, payload, nil
}

// EncodeClosePayload renders a close frame payload: two big-endian code
// bytes followed by the UTF-8 reason. A zero code produces an empty
// payload, meaning the peer closes without a code.
func EncodeClosePayload(code int, reason string) []byte {
	if code == 0 {
		return nil
	}
	p := make([]byte, 2+len(reason))
	binary.BigEndian.PutUint16(p, uint16(code))
	copy(p[2:], reason)
	return p
}

// DecodeClosePayload is the inverse of EncodeClosePayload. hasCode is false
// for an empty payload.
func DecodeClosePayload(p []byte) (code int, reason string, hasCode bool) {
	if len(p) < 2 {
		return 0, "", false
	}
	return int(binary.BigEndian.Uint16(p)), string(p[2:]), true
}
