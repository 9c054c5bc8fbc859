package workspace

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/hashicorp/go-hclog"

	"focusbeat/backend/internal/logging"
)

var ErrManagerClosed = errors.New("workspace manager closed")

// Manager owns the workspaces of every signed-in profile. A workspace is
// created on first use and lives until Dispose or CloseAll.
type Manager struct {
	opts   Options
	logger hclog.Logger

	mu         sync.Mutex
	workspaces map[string]*Workspace
	closed     bool
}

func NewManager(opts Options) *Manager {
	return &Manager{
		opts:       opts,
		logger:     logging.OrNop(opts.Logger),
		workspaces: make(map[string]*Workspace),
	}
}

// Get returns the profile's workspace, creating and restoring it first if
// needed.
func (m *Manager) Get(ctx context.Context, profileID string) (*Workspace, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, ErrManagerClosed
	}
	if w, ok := m.workspaces[profileID]; ok {
		return w, nil
	}

	w, err := New(ctx, profileID, m.opts)
	if err != nil {
		return nil, err
	}
	m.workspaces[profileID] = w
	m.logger.Info("workspace created", "profile", profileID)
	return w, nil
}

// Dispose closes and forgets one profile's workspace.
func (m *Manager) Dispose(profileID string) bool {
	m.mu.Lock()
	w, ok := m.workspaces[profileID]
	delete(m.workspaces, profileID)
	m.mu.Unlock()

	if !ok {
		return false
	}
	w.Close()
	m.logger.Info("workspace disposed", "profile", profileID)
	return true
}

func (m *Manager) Active() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	ids := make([]string, 0, len(m.workspaces))
	for id := range m.workspaces {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// CloseAll closes every workspace. Get fails afterwards.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	m.closed = true
	workspaces := m.workspaces
	m.workspaces = make(map[string]*Workspace)
	m.mu.Unlock()

	for _, w := range workspaces {
		w.Close()
	}
}
