// Package store persists pairing records and remembers the active host.
//
// PairingFileStore keeps the paired-host records, including each pairing's
// private signing key, in a single passphrase-encrypted file. ActiveHost is
// the in-memory "currently active host" slot the dispatcher consults when a
// request carries no explicit host id. MemoryPairingStore is a map-backed
// PairingStore for tests and the dev relay stub.
package store
