package store

import (
	"context"
	"sync"

	"vkrelay/internal/domain"
)

// MemoryPairingStore is a map-backed PairingStore for tests and the dev
// relay stub.
type MemoryPairingStore struct {
	mu    sync.RWMutex
	hosts map[domain.HostID]domain.PairedHost
}

func NewMemoryPairingStore() *MemoryPairingStore {
	return &MemoryPairingStore{hosts: make(map[domain.HostID]domain.PairedHost)}
}

var _ domain.PairingStore = (*MemoryPairingStore)(nil)

func (s *MemoryPairingStore) SavePairedHost(host domain.PairedHost) {
	s.mu.Lock()
	s.hosts[host.HostID] = host
	s.mu.Unlock()
}

func (s *MemoryPairingStore) ListPairedHosts(_ context.Context) ([]domain.PairedHost, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	hosts := make([]domain.PairedHost, 0, len(s.hosts))
	for _, h := range s.hosts {
		hosts = append(hosts, h)
	}
	return hosts, nil
}

func (s *MemoryPairingStore) PairedHost(_ context.Context, id domain.HostID) (domain.PairedHost, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	h, ok := s.hosts[id]
	return h, ok, nil
}
