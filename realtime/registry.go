package realtime

import "sync"

// Registry tracks live clients, indexed by client and by user id.
// A user may hold any number of simultaneous connections.
type Registry struct {
	mu      sync.Mutex
	clients map[*Client]struct{}
	byUser  map[int]map[*Client]struct{}
	userOf  map[*Client]int
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		clients: make(map[*Client]struct{}),
		byUser:  make(map[int]map[*Client]struct{}),
		userOf:  make(map[*Client]int),
	}
}

// Register adds a client under userID. Existing connections of the same user are kept.
func (r *Registry) Register(c *Client, userID int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if previous, ok := r.userOf[c]; ok && previous != userID {
		r.removeFromUserLocked(c, previous)
	}

	r.clients[c] = struct{}{}
	r.userOf[c] = userID
	set, ok := r.byUser[userID]
	if !ok {
		set = make(map[*Client]struct{})
		r.byUser[userID] = set
	}
	set[c] = struct{}{}
}

// Unregister removes a client. It reports whether the client was present;
// removing an absent client is a no-op.
func (r *Registry) Unregister(c *Client) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.clients[c]; !ok {
		return false
	}
	delete(r.clients, c)
	if userID, ok := r.userOf[c]; ok {
		r.removeFromUserLocked(c, userID)
		delete(r.userOf, c)
	}
	return true
}

func (r *Registry) removeFromUserLocked(c *Client, userID int) {
	set := r.byUser[userID]
	delete(set, c)
	if len(set) == 0 {
		delete(r.byUser, userID)
	}
}

// Count returns the number of live clients
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.clients)
}

// CountByUser returns the number of live clients per user id
func (r *Registry) CountByUser() map[int]int {
	r.mu.Lock()
	defer r.mu.Unlock()

	counts := make(map[int]int, len(r.byUser))
	for userID, set := range r.byUser {
		counts[userID] = len(set)
	}
	return counts
}

// Snapshot copies the live clients, leaving out except when it is non-nil.
// Callers do their I/O on the copy after the lock is released.
func (r *Registry) Snapshot(except *Client) []*Client {
	r.mu.Lock()
	defer r.mu.Unlock()

	clients := make([]*Client, 0, len(r.clients))
	for c := range r.clients {
		if c == except {
			continue
		}
		clients = append(clients, c)
	}
	return clients
}
