// Package presence tracks which users currently hold live connections.
//
// The registry is process-local and volatile: a restart empties it, and every
// reconnecting client re-registers, so it always reflects live connections
// and is never trusted across a crash.
package presence

import (
	"sync"

	"github.com/sirupsen/logrus"
)

// Conn is the handle the registry keeps per live connection.
type Conn interface {
	ConnID() string
}

// TransitionFunc is invoked on the 0→1 (online) and N→0 (offline) session
// transitions for a user. It runs under the registry lock so transitions for
// one user can never be observed out of order; it must not block.
type TransitionFunc func(userID int, online bool)

// Registry maps user ids to their active connection handles. A user may hold
// any number of simultaneous sessions (multi-device).
type Registry struct {
	mu       sync.Mutex
	sessions map[int]map[string]Conn
	owners   map[string]int

	onTransition TransitionFunc
}

// NewRegistry builds an empty registry. transition may be nil.
func NewRegistry(transition TransitionFunc) *Registry {
	return &Registry{
		sessions:     make(map[int]map[string]Conn),
		owners:       make(map[string]int),
		onTransition: transition,
	}
}

// Register adds a session for the user. Registering additional sessions for
// an already-online user is not an error and fires no transition.
func (r *Registry) Register(userID int, conn Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.sessions[userID]
	if !ok {
		set = make(map[string]Conn)
		r.sessions[userID] = set
	}
	wasOnline := len(set) > 0
	set[conn.ConnID()] = conn
	r.owners[conn.ConnID()] = userID

	if !wasOnline && r.onTransition != nil {
		r.onTransition(userID, true)
	}
	logrus.WithFields(logrus.Fields{
		"user_id":  userID,
		"conn_id":  conn.ConnID(),
		"sessions": len(set),
	}).Debug("presence register")
}

// Unregister removes a session and reports which user owned it. The offline
// transition fires only when the user's last session goes away.
func (r *Registry) Unregister(conn Conn) (int, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	userID, ok := r.owners[conn.ConnID()]
	if !ok {
		return 0, false
	}
	delete(r.owners, conn.ConnID())

	set := r.sessions[userID]
	delete(set, conn.ConnID())
	if len(set) == 0 {
		delete(r.sessions, userID)
		if r.onTransition != nil {
			r.onTransition(userID, false)
		}
	}
	logrus.WithFields(logrus.Fields{
		"user_id":  userID,
		"conn_id":  conn.ConnID(),
		"sessions": len(set),
	}).Debug("presence unregister")
	return userID, true
}

// IsOnline reports whether the user holds at least one live session.
func (r *Registry) IsOnline(userID int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions[userID]) > 0
}

// SessionsFor returns the user's live connection handles.
func (r *Registry) SessionsFor(userID int) []Conn {
	r.mu.Lock()
	defer r.mu.Unlock()

	set := r.sessions[userID]
	conns := make([]Conn, 0, len(set))
	for _, conn := range set {
		conns = append(conns, conn)
	}
	return conns
}

// OnlineCount returns the number of distinct online users.
func (r *Registry) OnlineCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
