// Package sign builds and signs the canonical messages of the relay
// protocol.
//
// An HTTP request is signed over
//
//	v1|timestamp|METHOD|path-and-query|signingSessionId|nonce|base64(sha256(body))
//
// and a WebSocket frame over
//
//	v1|signingSessionId|requestNonce|seq|msg_type|base64(sha256(payload))
//
// joined with "|". The request nonce of a WebSocket connection is the nonce
// from its handshake signature, fixed for the connection's lifetime, which
// binds every frame to that specific handshake.
//
// The four signature values travel as x-vk-sig-* headers on HTTP requests
// and as query parameters of the same names on WebSocket upgrades, since a
// browser handshake cannot carry custom headers.
package sign
