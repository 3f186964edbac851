package realtime

import (
	"sync"

	"github.com/ajaykrishnavemula/Campus-Pass-sub001/internal/models"
)

// Session is one live connection belonging to an authenticated user.
// Outbound events go through a bounded buffer; a full buffer drops the
// event for this session only. Delivery is best effort, at most once.
type Session struct {
	Actor models.Actor

	send    chan Event
	done    chan struct{}
	closeMu sync.Once
}

// NewSession builds a session with the given outbound buffer size.
func NewSession(actor models.Actor, buffer int) *Session {
	if buffer <= 0 {
		buffer = 16
	}
	return &Session{
		Actor: actor,
		send:  make(chan Event, buffer),
		done:  make(chan struct{}),
	}
}

// TrySend queues an event for the session's writer. Returns false when
// the event was dropped because the buffer is full or the session is
// closed.
func (s *Session) TrySend(event Event) bool {
	select {
	case <-s.done:
		return false
	default:
	}
	select {
	case s.send <- event:
		return true
	default:
		return false
	}
}

// Outbound exposes the writer's event source.
func (s *Session) Outbound() <-chan Event {
	return s.send
}

// Done is closed when the session shuts down.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Close ends the session. Safe to call more than once.
func (s *Session) Close() {
	s.closeMu.Do(func() { close(s.done) })
}

// Registry indexes live sessions by user, role, and hostel so a
// broadcast can address any mix of the three. It is safe for concurrent
// use and holds no transport state, which keeps it swappable in tests.
type Registry struct {
	mu       sync.RWMutex
	byUser   map[string]map[*Session]struct{}
	byRole   map[models.UserRole]map[*Session]struct{}
	byHostel map[string]map[*Session]struct{}
	count    int
}

// NewRegistry constructs an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byUser:   make(map[string]map[*Session]struct{}),
		byRole:   make(map[models.UserRole]map[*Session]struct{}),
		byHostel: make(map[string]map[*Session]struct{}),
	}
}

// Add registers a session under every dimension its actor carries.
func (r *Registry) Add(s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	addIndex(r.byUser, s.Actor.ID, s)
	addIndex(r.byRole, s.Actor.Role, s)
	if s.Actor.Hostel != "" {
		addIndex(r.byHostel, s.Actor.Hostel, s)
	}
	r.count++
}

// Remove deregisters a session. Removing an unknown session is a no-op.
func (r *Registry) Remove(s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !removeIndex(r.byUser, s.Actor.ID, s) {
		return
	}
	removeIndex(r.byRole, s.Actor.Role, s)
	if s.Actor.Hostel != "" {
		removeIndex(r.byHostel, s.Actor.Hostel, s)
	}
	r.count--
}

// Count returns the number of live sessions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.count
}

// Collect resolves a target set into a deduplicated session snapshot.
// The snapshot is taken under the read lock; sends happen outside it.
func (r *Registry) Collect(targets Targets) []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[*Session]struct{})
	for _, userID := range targets.Users {
		for s := range r.byUser[userID] {
			seen[s] = struct{}{}
		}
	}
	for _, role := range targets.Roles {
		for s := range r.byRole[role] {
			seen[s] = struct{}{}
		}
	}
	for _, hostel := range targets.Hostels {
		for s := range r.byHostel[hostel] {
			seen[s] = struct{}{}
		}
	}

	sessions := make([]*Session, 0, len(seen))
	for s := range seen {
		sessions = append(sessions, s)
	}
	return sessions
}

func addIndex[K comparable](index map[K]map[*Session]struct{}, key K, s *Session) {
	set, ok := index[key]
	if !ok {
		set = make(map[*Session]struct{})
		index[key] = set
	}
	set[s] = struct{}{}
}

func removeIndex[K comparable](index map[K]map[*Session]struct{}, key K, s *Session) bool {
	set, ok := index[key]
	if !ok {
		return false
	}
	if _, ok := set[s]; !ok {
		return false
	}
	delete(set, s)
	if len(set) == 0 {
		delete(index, key)
	}
	return true
}
