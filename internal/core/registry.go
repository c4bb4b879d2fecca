package core

import "sync"

// Registry is the process-wide mapping from user identity to the live
// connection currently bound to it. It is authoritative for "who is
// reachable right now"; the persisted online/conn_id columns are a mirror.
// At most one entry per identity, last registration wins.
type Registry struct {
	mu      sync.RWMutex
	clients map[int64]*Client
}

// NewRegistry constructs an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		clients: make(map[int64]*Client),
	}
}

// Bind associates a user with a client, overwriting any prior binding.
// The displaced connection is not notified.
func (r *Registry) Bind(userID int64, c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients[userID] = c
}

// Unbind removes the binding only if c is still the current client for the
// user. Returns false when a newer registration has already replaced it,
// which keeps a delayed disconnect from clobbering a fresh reconnect.
func (r *Registry) Unbind(userID int64, c *Client) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if current, ok := r.clients[userID]; !ok || current != c {
		return false
	}
	delete(r.clients, userID)
	return true
}

// Resolve returns the live client for a user, or false if unreachable.
func (r *Registry) Resolve(userID int64) (*Client, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.clients[userID]
	return c, ok
}

// Len reports the number of bound identities.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}
