package store

import (
	"context"
	"encoding/json"
	"path/filepath"
	"sort"
	"sync"

	"vkrelay/internal/domain"
)

const pairingsFile = "paired_hosts.enc"

// PairingFileStore keeps pairing records in a single encrypted file. The
// passphrase is fixed at construction; records are re-sealed on every
// write.
type PairingFileStore struct {
	dir        string
	passphrase string
	mu         sync.Mutex
}

func NewPairingFileStore(dir, passphrase string) *PairingFileStore {
	return &PairingFileStore{dir: dir, passphrase: passphrase}
}

var _ domain.PairingStore = (*PairingFileStore)(nil)

func (s *PairingFileStore) path() string { return filepath.Join(s.dir, pairingsFile) }

func (s *PairingFileStore) load() (map[domain.HostID]domain.PairedHost, error) {
	b, err := readFile(s.path())
	if err != nil {
		return nil, err
	}
	m := make(map[domain.HostID]domain.PairedHost)
	if b == nil {
		return m, nil
	}
	raw, err := decrypt(s.passphrase, b)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return m, nil
}

func (s *PairingFileStore) save(m map[domain.HostID]domain.PairedHost) error {
	raw, err := json.Marshal(m)
	if err != nil {
		return err
	}
	N, r, p := scryptParamsDefault()
	b, err := encrypt(s.passphrase, raw, N, r, p)
	if err != nil {
		return err
	}
	return writeFile(s.path(), b, 0o600)
}

// SavePairedHost adds or replaces the record for host.HostID.
func (s *PairingFileStore) SavePairedHost(host domain.PairedHost) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, err := s.load()
	if err != nil {
		return err
	}
	m[host.HostID] = host
	return s.save(m)
}

// RemovePairedHost deletes the record for id, if present.
func (s *PairingFileStore) RemovePairedHost(id domain.HostID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, err := s.load()
	if err != nil {
		return err
	}
	delete(m, id)
	return s.save(m)
}

func (s *PairingFileStore) ListPairedHosts(_ context.Context) ([]domain.PairedHost, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, err := s.load()
	if err != nil {
		return nil, err
	}
	hosts := make([]domain.PairedHost, 0, len(m))
	for _, h := range m {
		hosts = append(hosts, h)
	}
	sort.Slice(hosts, func(i, j int) bool { return hosts[i].HostID < hosts[j].HostID })
	return hosts, nil
}

func (s *PairingFileStore) PairedHost(_ context.Context, id domain.HostID) (domain.PairedHost, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, err := s.load()
	if err != nil {
		return domain.PairedHost{}, false, err
	}
	h, ok := m[id]
	return h, ok, nil
}
