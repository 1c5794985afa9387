// Package room implements the Room Registry (C4): a thread-safe
// room-name -> member-set map. Grounded on
// original_source/src/hub/room.rs's join_room/room_exists and
// src/hub/common.rs's unregister room-purge loop.
package room

import "sync"

// Registry is the thread-safe Room Registry.
type Registry struct {
	mu      sync.RWMutex
	members map[string]map[int64]struct{}
}

func NewRegistry() *Registry {
	return &Registry{members: make(map[string]map[int64]struct{})}
}

// Join adds userID to room's membership, creating the room lazily. Joining
// twice is idempotent.
func (r *Registry) Join(room string, userID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	set, ok := r.members[room]
	if !ok {
		set = make(map[int64]struct{})
		r.members[room] = set
	}
	set[userID] = struct{}{}
}

// Leave removes userID from room's membership. A no-op if either is absent.
func (r *Registry) Leave(room string, userID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if set, ok := r.members[room]; ok {
		delete(set, userID)
	}
}

// Members returns a snapshot of room's member user ids.
func (r *Registry) Members(room string) []int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	set, ok := r.members[room]
	if !ok {
		return nil
	}
	out := make([]int64, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	return out
}

func (r *Registry) Exists(room string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.members[room]
	return ok
}

func (r *Registry) IsMember(room string, userID int64) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	set, ok := r.members[room]
	if !ok {
		return false
	}
	_, member := set[userID]
	return member
}

// Purge removes userID from every room's membership. Called by the
// Session Registry's Unregister so a departed user never lingers in a
// room's member set.
func (r *Registry) Purge(userID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, set := range r.members {
		delete(set, userID)
	}
}

func (r *Registry) RoomCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.members)
}
