// Package commands defines the vkrelay CLI and wires dependencies for
// subcommands.
//
// Commands
//
//   - pair     Import a pairing bundle for a local host
//   - hosts    List paired hosts
//   - fetch    Issue a signed request to a host through the relay
//   - connect  Open a signed websocket session to a host
//
// # Implementation
//
// The root command builds a cookie-jar HTTP client and the dependency graph
// (pairing store, key cache, resolver, signed clients) before any subcommand
// runs, so handlers share one wired transport.
package commands
