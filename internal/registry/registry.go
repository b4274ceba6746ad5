// Package registry tracks every live connection: its transport handle and the
// display name the client has declared, keyed by the opaque client id assigned
// at accept time.
package registry

import "sync"

// Conn is the transport surface the registry needs. Send must be safe for
// concurrent use and must report failure instead of panicking; a failed send
// is how the caller learns about a dead transport. Closing the transport is
// the owning handler's job, not the registry's.
type Conn interface {
	Send(msgType string, data any) error
}

type client struct {
	conn     Conn
	username string
}

// Registry is the process-wide connection table. A single mutex guards the
// map; actual transport writes happen on a copied handle outside the lock so
// a blocked write cannot stall other connections.
type Registry struct {
	mu      sync.RWMutex
	clients map[string]*client
}

func New() *Registry {
	return &Registry{clients: make(map[string]*client)}
}

// Register adds a connection under the given id.
func (r *Registry) Register(id string, conn Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients[id] = &client{conn: conn}
}

// Unregister removes the connection and reports whether it was present.
// Closing the transport is left to the caller, which owns the handle.
func (r *Registry) Unregister(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.clients[id]; !ok {
		return false
	}
	delete(r.clients, id)
	return true
}

// SetUsername records the display name for id.
func (r *Registry) SetUsername(id, name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.clients[id]
	if !ok {
		return false
	}
	c.username = name
	return true
}

// Username returns the display name for id, or "Unknown" when the client is
// gone or never introduced itself.
func (r *Registry) Username(id string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if c, ok := r.clients[id]; ok && c.username != "" {
		return c.username
	}
	return "Unknown"
}

// Send delivers one message to id. It reports failure rather than returning
// an error so callers can decide whether to treat it as a disconnect.
func (r *Registry) Send(id, msgType string, data any) bool {
	r.mu.RLock()
	c, ok := r.clients[id]
	r.mu.RUnlock()
	if !ok {
		return false
	}
	return c.conn.Send(msgType, data) == nil
}

// BroadcastAll sends one message to every registered connection. Failures are
// ignored here; the owning handler notices its own dead transport on its next
// read and runs the disconnect path.
func (r *Registry) BroadcastAll(msgType string, data any) {
	r.mu.RLock()
	conns := make([]Conn, 0, len(r.clients))
	for _, c := range r.clients {
		conns = append(conns, c.conn)
	}
	r.mu.RUnlock()

	for _, conn := range conns {
		_ = conn.Send(msgType, data)
	}
}

// Len reports the number of registered connections.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}
