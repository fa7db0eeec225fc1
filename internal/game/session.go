package game

import (
	"sync"

	"github.com/google/uuid"
)

// session tracks one connection's authentication and answer-correction
// state. A session only becomes authenticated through a successful LOGIN.
type session struct {
	id       uuid.UUID
	username string
	// awaitingCorrection is set after an UNACCEPTABLE_ANSWER: the next
	// SEND_ANSWER from this connection is the corrected attempt. Modeling
	// the correction exchange as session state keeps the serving loop from
	// ever blocking on a single connection.
	awaitingCorrection bool
}

func (s *session) authenticated() bool {
	return s.username != ""
}

// sessionRegistry maps live connection ids to their sessions. All session
// state is read and written under the registry's lock so that LOGGED can
// safely snapshot sessions owned by other connections.
type sessionRegistry struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]*session
	order    []uuid.UUID
}

func newSessionRegistry() *sessionRegistry {
	return &sessionRegistry{sessions: make(map[uuid.UUID]*session)}
}

// add creates a fresh anonymous session for a newly accepted connection.
func (r *sessionRegistry) add(id uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[id]; ok {
		return
	}
	r.sessions[id] = &session{id: id}
	r.order = append(r.order, id)
}

// remove destroys the session for a disconnected connection.
func (r *sessionRegistry) remove(id uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[id]; !ok {
		return
	}
	delete(r.sessions, id)
	for i, other := range r.order {
		if other == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

// reset destroys the session and replaces it with a fresh anonymous one,
// leaving the connection itself untouched. This is what LOGOUT does.
func (r *sessionRegistry) reset(id uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[id]; !ok {
		return
	}
	r.sessions[id] = &session{id: id}
}

// setAuthenticated promotes the session to authenticated as username.
func (r *sessionRegistry) setAuthenticated(id uuid.UUID, username string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.sessions[id]; ok {
		s.username = username
	}
}

// authenticatedUser returns the username bound to the session, if any.
func (r *sessionRegistry) authenticatedUser(id uuid.UUID) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sessions[id]
	if !ok || !s.authenticated() {
		return "", false
	}
	return s.username, true
}

// setAwaitingCorrection marks whether the session's next SEND_ANSWER is a
// corrected attempt.
func (r *sessionRegistry) setAwaitingCorrection(id uuid.UUID, awaiting bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.sessions[id]; ok {
		s.awaitingCorrection = awaiting
	}
}

func (r *sessionRegistry) awaitingCorrection(id uuid.UUID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sessions[id]
	return ok && s.awaitingCorrection
}

// loggedIn lists the usernames of all authenticated sessions in the order
// their connections were accepted.
func (r *sessionRegistry) loggedIn() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var usernames []string
	for _, id := range r.order {
		if s, ok := r.sessions[id]; ok && s.authenticated() {
			usernames = append(usernames, s.username)
		}
	}
	return usernames
}
