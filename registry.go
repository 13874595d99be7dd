// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package chatflow

import "sync"

// ClientConn is the capability surface the pipeline needs from a live client
// connection: push a payload, tear the connection down. The ingress server
// provides the WebSocket-backed implementation.
type ClientConn interface {
	Send(payload []byte) error
	Close() error
}

// Registry is the concurrent mapping between live client connections and
// their rooms. It maintains both directions as an invariant on
// connect/disconnect, so fan-out resolves room membership in one lookup
// instead of scanning every connection.
type Registry struct {
	mu sync.RWMutex

	// byRoom indexes the connections currently in each room.
	byRoom map[string]map[ClientConn]struct{}

	// rooms maps each connection back to its room.
	rooms map[ClientConn]string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byRoom: make(map[string]map[ClientConn]struct{}),
		rooms:  make(map[ClientConn]string),
	}
}

// Add registers conn as a member of roomID. A connection belongs to exactly
// one room; re-adding moves it.
func (r *Registry) Add(conn ClientConn, roomID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if prev, ok := r.rooms[conn]; ok {
		delete(r.byRoom[prev], conn)
		if len(r.byRoom[prev]) == 0 {
			delete(r.byRoom, prev)
		}
	}

	if r.byRoom[roomID] == nil {
		r.byRoom[roomID] = make(map[ClientConn]struct{})
	}
	r.byRoom[roomID][conn] = struct{}{}
	r.rooms[conn] = roomID
}

// Remove unregisters conn, returning the room it was in and whether it was
// registered at all.
func (r *Registry) Remove(conn ClientConn) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	roomID, ok := r.rooms[conn]
	if !ok {
		return "", false
	}

	delete(r.rooms, conn)
	delete(r.byRoom[roomID], conn)
	if len(r.byRoom[roomID]) == 0 {
		delete(r.byRoom, roomID)
	}
	return roomID, true
}

// InRoom returns a snapshot of the connections currently in roomID. The
// slice is safe to iterate without holding any lock; entries may race with
// disconnects, which the caller must tolerate as per-connection send errors.
func (r *Registry) InRoom(roomID string) []ClientConn {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members := r.byRoom[roomID]
	if len(members) == 0 {
		return nil
	}
	conns := make([]ClientConn, 0, len(members))
	for conn := range members {
		conns = append(conns, conn)
	}
	return conns
}

// Len returns the number of registered connections.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}
