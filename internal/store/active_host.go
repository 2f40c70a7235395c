package store

import (
	"sync"

	"vkrelay/internal/domain"
)

// ActiveHost remembers which host the caller is currently working against.
// It is process-wide, mutable state; the dispatcher writes it whenever a
// workspace route names an explicit host.
type ActiveHost struct {
	mu sync.Mutex
	id domain.HostID
}

func NewActiveHost() *ActiveHost { return &ActiveHost{} }

var _ domain.ActiveHostStore = (*ActiveHost)(nil)

func (a *ActiveHost) ActiveHostID() (domain.HostID, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.id, a.id != ""
}

func (a *ActiveHost) SetActiveHostID(id domain.HostID) {
	a.mu.Lock()
	a.id = id
	a.mu.Unlock()
}
