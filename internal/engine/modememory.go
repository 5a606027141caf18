package engine

import (
	"sync"

	"github.com/IshaanNene/AutoStalk/internal/types"
)

// ModeMemory remembers which fetch mode worked for a host. Entries are
// written only when the non-default mode actually succeeded, so a
// lookup miss means plain HTTP has not been ruled out yet.
type ModeMemory struct {
	mu    sync.RWMutex
	modes map[string]types.Mode
}

// NewModeMemory creates an empty mode memory.
func NewModeMemory() *ModeMemory {
	return &ModeMemory{modes: make(map[string]types.Mode)}
}

// Get returns the remembered mode for a host.
func (m *ModeMemory) Get(host string) (types.Mode, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	mode, ok := m.modes[host]
	return mode, ok
}

// Set records the working mode for a host.
func (m *ModeMemory) Set(host string, mode types.Mode) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.modes[host] = mode
}

// Clear forgets the entry for one host, or every entry when host is
// empty.
func (m *ModeMemory) Clear(host string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if host == "" {
		clear(m.modes)
		return
	}
	delete(m.modes, host)
}

// Len reports how many hosts have a remembered mode.
func (m *ModeMemory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.modes)
}
