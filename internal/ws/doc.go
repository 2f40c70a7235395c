// Package ws implements the signed WebSocket transport.
//
// Every frame travels as a JSON envelope carrying a per-direction sequence
// number and an Ed25519 signature bound to the connection's handshake nonce.
// Envelope is the wire format, SigningContext the per-connection codec
// state, and Conn the facade that dials the relay, signs outbound frames in
// strict call order and verifies inbound frames in receipt order.
//
// Any protocol violation (a sequence gap or repeat, a bad signature, a
// malformed envelope, an unsupported version or message type) is fatal to
// the connection: the facade reports the error and force-closes the raw
// socket with close code 1002. A bad frame is never surfaced and never
// leaves the connection half-broken.
package ws
