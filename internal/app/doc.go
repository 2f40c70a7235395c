// Package app wires the signed relay transport's dependency graph for the
// CLI: pairing store, key cache, session resolver, signed HTTP client,
// dispatcher and websocket dialer.
package app
