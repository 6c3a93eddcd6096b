package services

import (
	"slices"
	"sync"

	"reelhub/internal/core/domain"
	"reelhub/internal/core/ports"
)

// PresenceRegistry tracks which users hold at least one live session.
// A user is online from the first session connect until the last session
// disconnects; membership changes are signalled on Changes().
type PresenceRegistry struct {
	mu       sync.Mutex
	users    map[domain.UserID]map[domain.SessionID]ports.SessionHandle
	sessions int

	changes chan struct{}
	metrics ports.PresenceMetrics
}

func NewPresenceRegistry(metrics ports.PresenceMetrics) *PresenceRegistry {
	if metrics == nil {
		metrics = noopPresenceMetrics{}
	}
	return &PresenceRegistry{
		users:   make(map[domain.UserID]map[domain.SessionID]ports.SessionHandle),
		changes: make(chan struct{}, 1),
		metrics: metrics,
	}
}

var _ ports.PresenceRegistry = (*PresenceRegistry)(nil)

// Connect adds session under userID and reports whether the user came online.
func (r *PresenceRegistry) Connect(userID domain.UserID, session ports.SessionHandle) bool {
	r.mu.Lock()
	sessions, online := r.users[userID]
	if !online {
		sessions = make(map[domain.SessionID]ports.SessionHandle)
		r.users[userID] = sessions
	}
	if _, dup := sessions[session.ID()]; !dup {
		r.sessions++
	}
	sessions[session.ID()] = session
	r.metrics.SetPresence(len(r.users), r.sessions)
	r.mu.Unlock()

	if online {
		return false
	}
	r.notify()
	return true
}

// Disconnect removes session and reports whether the user went offline.
// Unknown users or sessions are ignored.
func (r *PresenceRegistry) Disconnect(userID domain.UserID, session ports.SessionHandle) bool {
	r.mu.Lock()
	sessions, ok := r.users[userID]
	if !ok {
		r.mu.Unlock()
		return false
	}
	if _, ok := sessions[session.ID()]; !ok {
		r.mu.Unlock()
		return false
	}
	delete(sessions, session.ID())
	r.sessions--

	offline := len(sessions) == 0
	if offline {
		delete(r.users, userID)
	}
	r.metrics.SetPresence(len(r.users), r.sessions)
	r.mu.Unlock()

	if offline {
		r.notify()
	}
	return offline
}

// ListOnline returns the online user ids sorted for stable output.
func (r *PresenceRegistry) ListOnline() []domain.UserID {
	r.mu.Lock()
	online := make([]domain.UserID, 0, len(r.users))
	for userID := range r.users {
		online = append(online, userID)
	}
	r.mu.Unlock()

	slices.Sort(online)
	return online
}

func (r *PresenceRegistry) Sessions() []ports.SessionHandle {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]ports.SessionHandle, 0, r.sessions)
	for _, sessions := range r.users {
		for _, s := range sessions {
			out = append(out, s)
		}
	}
	return out
}

// Stats returns the number of online users and live sessions.
func (r *PresenceRegistry) Stats() (onlineUsers, sessions int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.users), r.sessions
}

// Changes delivers a signal after membership changes. Signals coalesce: a
// reader that falls behind sees one pending signal, and must read the
// current state rather than count signals.
func (r *PresenceRegistry) Changes() <-chan struct{} {
	return r.changes
}

func (r *PresenceRegistry) notify() {
	select {
	case r.changes <- struct{}{}:
	default:
	}
}

type noopPresenceMetrics struct{}

func (noopPresenceMetrics) SetPresence(int, int) {}
func (noopPresenceMetrics) RecordDelivery(bool)  {}
