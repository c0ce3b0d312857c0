// Package presence tracks which identities are currently in a room.
//
// Entries are kept alive by heartbeats and expire once no heartbeat arrived
// within the registry TTL. A Registry is not safe for concurrent use; the
// owning room serializes access.
package presence

import (
	"sort"
	"time"
)

// Meta is the display information an identity announces when joining.
type Meta struct {
	DisplayName string `json:"display_name,omitempty"`
	AvatarURL   string `json:"avatar_url,omitempty"`
}

// Entry is one connected identity.
type Entry struct {
	Identity               string `json:"identity"`
	DisplayMeta            Meta   `json:"display_meta"`
	JoinedAtEpochMs        int64  `json:"joined_at_epoch_ms"`
	LastHeartbeatAtEpochMs int64  `json:"last_heartbeat_at_epoch_ms"`
}

// ExpiredAt reports whether the entry missed its heartbeat window at now.
func (e Entry) ExpiredAt(now time.Time, ttl time.Duration) bool {
	return now.UnixMilli()-e.LastHeartbeatAtEpochMs > ttl.Milliseconds()
}

// Registry owns the presence entries of a single room.
type Registry struct {
	ttl     time.Duration
	entries map[string]*Entry
}

// NewRegistry creates an empty registry whose entries expire after ttl without a heartbeat.
func NewRegistry(ttl time.Duration) *Registry {
	return &Registry{
		ttl:     ttl,
		entries: make(map[string]*Entry),
	}
}

// TTL returns the expiry window.
func (r *Registry) TTL() time.Duration {
	return r.ttl
}

// Join upserts identity and refreshes its heartbeat. created is true when the
// identity was absent or had already expired.
func (r *Registry) Join(identity string, meta Meta, now time.Time) (entry Entry, created bool) {
	nowMs := now.UnixMilli()
	existing, ok := r.entries[identity]
	if ok && !existing.ExpiredAt(now, r.ttl) {
		existing.DisplayMeta = meta
		existing.LastHeartbeatAtEpochMs = nowMs
		return *existing, false
	}

	fresh := &Entry{
		Identity:               identity,
		DisplayMeta:            meta,
		JoinedAtEpochMs:        nowMs,
		LastHeartbeatAtEpochMs: nowMs,
	}
	r.entries[identity] = fresh
	return *fresh, true
}

// Heartbeat refreshes identity. It returns false, without touching the
// registry, when the identity is absent or already expired.
func (r *Registry) Heartbeat(identity string, now time.Time) bool {
	existing, ok := r.entries[identity]
	if !ok || existing.ExpiredAt(now, r.ttl) {
		return false
	}
	existing.LastHeartbeatAtEpochMs = now.UnixMilli()
	return true
}

// Leave removes identity. It returns false when the identity was not present.
func (r *Registry) Leave(identity string) bool {
	if _, ok := r.entries[identity]; !ok {
		return false
	}
	delete(r.entries, identity)
	return true
}

// Reap removes every expired entry and returns the removed ones.
func (r *Registry) Reap(now time.Time) []Entry {
	var removed []Entry
	for identity, entry := range r.entries {
		if entry.ExpiredAt(now, r.ttl) {
			removed = append(removed, *entry)
			delete(r.entries, identity)
		}
	}
	sortEntries(removed)
	return removed
}

// Contains reports whether identity is present and not expired.
func (r *Registry) Contains(identity string, now time.Time) bool {
	entry, ok := r.entries[identity]
	return ok && !entry.ExpiredAt(now, r.ttl)
}

// Get returns the live entry for identity.
func (r *Registry) Get(identity string, now time.Time) (Entry, bool) {
	entry, ok := r.entries[identity]
	if !ok || entry.ExpiredAt(now, r.ttl) {
		return Entry{}, false
	}
	return *entry, true
}

// List returns the live entries ordered by join time. It has no side effects.
func (r *Registry) List(now time.Time) []Entry {
	all := make([]Entry, 0, len(r.entries))
	for _, entry := range r.entries {
		all = append(all, *entry)
	}
	return Active(all, now, r.ttl)
}

// All returns every stored entry, including expired ones not reaped yet.
func (r *Registry) All() []Entry {
	all := make([]Entry, 0, len(r.entries))
	for _, entry := range r.entries {
		all = append(all, *entry)
	}
	sortEntries(all)
	return all
}

// Active filters entries down to the ones alive at now, ordered by join time.
func Active(entries []Entry, now time.Time, ttl time.Duration) []Entry {
	live := make([]Entry, 0, len(entries))
	for _, entry := range entries {
		if !entry.ExpiredAt(now, ttl) {
			live = append(live, entry)
		}
	}
	sortEntries(live)
	return live
}

func sortEntries(entries []Entry) {
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].JoinedAtEpochMs != entries[j].JoinedAtEpochMs {
			return entries[i].JoinedAtEpochMs < entries[j].JoinedAtEpochMs
		}
		return entries[i].Identity < entries[j].Identity
	})
}
