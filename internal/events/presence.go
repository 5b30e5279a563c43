package events

import (
	"sort"
	"sync"
	"time"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

// PresenceEntry is one live connection.
type PresenceEntry struct {
	Handle      string      `json:"handle"`
	Email       string      `json:"email"`
	Role        domain.Role `json:"role"`
	ConnectedAt time.Time   `json:"connected_at"`
}

// Registry owns every presence mutation. Counts are recomputed from the
// entries on each read and never adjusted incrementally.
type Registry struct {
	mu      sync.Mutex
	entries map[string]PresenceEntry
	nowFn   func() time.Time
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		entries: make(map[string]PresenceEntry),
		nowFn:   func() time.Time { return time.Now().UTC() },
	}
}

// Connect records handle for identity, replacing any earlier entry under the same handle.
func (r *Registry) Connect(handle string, identity domain.Identity) PresenceEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry := PresenceEntry{
		Handle:      handle,
		Email:       identity.Email,
		Role:        identity.Role,
		ConnectedAt: r.nowFn(),
	}
	r.entries[handle] = entry
	return entry
}

// Disconnect removes handle. It reports whether an entry existed.
func (r *Registry) Disconnect(handle string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[handle]; !ok {
		return false
	}
	delete(r.entries, handle)
	return true
}

// Count returns the number of connected entries holding role.
func (r *Registry) Count(role domain.Role) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for _, entry := range r.entries {
		if entry.Role == role {
			count++
		}
	}
	return count
}

// Snapshot returns a copy of all entries ordered by connection time.
func (r *Registry) Snapshot() []PresenceEntry {
	r.mu.Lock()
	out := make([]PresenceEntry, 0, len(r.entries))
	for _, entry := range r.entries {
		out = append(out, entry)
	}
	r.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].ConnectedAt.Equal(out[j].ConnectedAt) {
			return out[i].Handle < out[j].Handle
		}
		return out[i].ConnectedAt.Before(out[j].ConnectedAt)
	})
	return out
}
