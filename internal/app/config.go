package app

import (
	"net/http"

	"go.uber.org/zap"
)

// Config holds runtime wiring options for building the transport.
type Config struct {
	Home          string       // config directory, e.g. $HOME/.vkrelay
	RelayAPIURL   string       // relay bootstrap API, e.g. https://relay.example.com
	DirectBaseURL string       // local API reached when relaying does not apply
	Passphrase    string       // unlocks the pairing store
	HTTP          *http.Client // optional; defaults to a cookie-jar client
	Logger        *zap.Logger  // optional; defaults to a no-op logger
}
