package presence

import (
	"context"
	"sync"

	"dm-chat-service/pkg/logger"
)

// StatusMirror receives first-connection/last-disconnection transitions so an
// external system (Redis) can observe presence across instances. Mirror
// failures are logged and never affect registration.
type StatusMirror interface {
	SetOnline(ctx context.Context, userID string) error
	SetOffline(ctx context.Context, userID string) error
}

// Registry tracks which users currently have live connections. A user is
// online iff at least one connection for that user is registered. All
// mutations and reads for a given user are serialized by a single mutex, so
// concurrent connect/disconnect can never drive the connection count negative
// or leave a stale membership behind.
type Registry struct {
	mu     sync.RWMutex
	conns  map[string]map[string]struct{} // userID -> set of connection ids
	mirror StatusMirror
	log    *logger.Logger
}

func NewRegistry(mirror StatusMirror, log *logger.Logger) *Registry {
	if log == nil {
		log = logger.NewNop()
	}
	return &Registry{
		conns:  make(map[string]map[string]struct{}),
		mirror: mirror,
		log:    log,
	}
}

// Register records a connection for userID. It is idempotent per connection
// id and returns true only on the user's offline -> online transition, which
// is the caller's cue to broadcast an online status change. Reconnects of an
// already-online user return false so duplicate broadcasts are suppressed.
func (r *Registry) Register(ctx context.Context, connID, userID string) bool {
	r.mu.Lock()
	set, ok := r.conns[userID]
	if !ok {
		set = make(map[string]struct{})
		r.conns[userID] = set
	}
	set[connID] = struct{}{}
	first := !ok
	r.mu.Unlock()

	if first && r.mirror != nil {
		if err := r.mirror.SetOnline(ctx, userID); err != nil {
			r.log.Error("failed to mirror online status", "userID", userID, "error", err)
		}
	}
	return first
}

// Deregister removes a connection. It returns true only when the last
// connection for userID is gone, which is the caller's cue to broadcast an
// offline status change. Unknown connections are ignored.
func (r *Registry) Deregister(ctx context.Context, connID, userID string) bool {
	r.mu.Lock()
	set, ok := r.conns[userID]
	if !ok {
		r.mu.Unlock()
		return false
	}
	if _, ok := set[connID]; !ok {
		r.mu.Unlock()
		return false
	}
	delete(set, connID)
	last := len(set) == 0
	if last {
		delete(r.conns, userID)
	}
	r.mu.Unlock()

	if last && r.mirror != nil {
		if err := r.mirror.SetOffline(ctx, userID); err != nil {
			r.log.Error("failed to mirror offline status", "userID", userID, "error", err)
		}
	}
	return last
}

// IsOnline reports whether userID has at least one live connection.
func (r *Registry) IsOnline(userID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns[userID]) > 0
}

// ActiveConnections returns the connection ids currently registered for
// userID. The returned slice is a snapshot.
func (r *Registry) ActiveConnections(userID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	set := r.conns[userID]
	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	return ids
}

// OnlineUsers returns a snapshot of every user id with a live connection.
func (r *Registry) OnlineUsers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	users := make([]string, 0, len(r.conns))
	for id := range r.conns {
		users = append(users, id)
	}
	return users
}
