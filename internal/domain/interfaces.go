package domain

import "context"

// PairingStore looks up pairing records created by the out-of-band pairing
// flow. The transport treats it as an opaque key-value store.
type PairingStore interface {
	ListPairedHosts(ctx context.Context) ([]PairedHost, error)
	PairedHost(ctx context.Context, id HostID) (PairedHost, bool, error)
}

// RelayBackend performs the session bootstrap exchanges against the relay
// API: create a session for a host, obtain a short-lived auth code, and
// exchange the code for the session's base URL.
type RelayBackend interface {
	CreateSession(ctx context.Context, id HostID) (RelaySession, error)
	CreateAuthCode(ctx context.Context, sessionID string) (string, error)
	EstablishBaseURL(ctx context.Context, id HostID, code string) (string, error)
}

// ActiveHostStore remembers which host the caller is currently working
// against, so requests without an explicit host id can still be relayed.
type ActiveHostStore interface {
	ActiveHostID() (HostID, bool)
	SetActiveHostID(id HostID)
}
