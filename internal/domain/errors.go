package domain

import "errors"

var (
	// ErrNotPaired is returned when the target host has no pairing record.
	ErrNotPaired = errors.New("host is not paired with this client; pair it from the host settings")

	// ErrPairingOutdated is returned when the pairing record predates the
	// signing protocol and carries no signing session. Re-pairing is the
	// only remedy; the transport never retries these.
	ErrPairingOutdated = errors.New("pairing is outdated and has no signing session; re-pair the host")
)
