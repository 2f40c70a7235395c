// Package domain defines the shared types, interfaces and error values for
// the signed relay transport.
//
// The transport lets a client exchange authenticated traffic with a paired
// local host through an intermediary relay. Every HTTP request and every
// WebSocket frame is signed with the client's per-pairing Ed25519 key and
// verified against the host's public key, so the relay can forward but never
// forge traffic.
//
// Contents
//
//   - PairedHost, the read-only pairing record carrying the key material
//   - RelaySignature, the ephemeral per-request signature values
//   - RelayHostContext, the resolved per-host relay session context
//   - Store and backend interfaces consumed by the transport core
//   - Sentinel errors for unpaired and outdated pairings
package domain
