package server

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mgpai22/letra/internal/workflow"
)

type session struct {
	id      string
	machine *workflow.Machine
	created time.Time

	mu       sync.Mutex
	lastUsed time.Time
}

func (s *session) touch(now time.Time) {
	s.mu.Lock()
	s.lastUsed = now
	s.mu.Unlock()
}

func (s *session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastUsed
}

// sessionStore keeps one workflow machine per browser session in memory.
type sessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*session
}

func newSessionStore() *sessionStore {
	return &sessionStore{sessions: make(map[string]*session)}
}

func (s *sessionStore) create(m *workflow.Machine) *session {
	now := time.Now()
	sess := &session{
		id:       uuid.NewString(),
		machine:  m,
		created:  now,
		lastUsed: now,
	}
	s.mu.Lock()
	s.sessions[sess.id] = sess
	s.mu.Unlock()
	return sess
}

func (s *sessionStore) get(id string) (*session, bool) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if ok {
		sess.touch(time.Now())
	}
	return sess, ok
}

// remove drops the session and releases its machine.
func (s *sessionStore) remove(id string) bool {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()
	if ok {
		_ = sess.machine.Close()
	}
	return ok
}

func (s *sessionStore) len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// closeAll releases every session, used on shutdown.
func (s *sessionStore) closeAll() {
	s.mu.Lock()
	sessions := s.sessions
	s.sessions = make(map[string]*session)
	s.mu.Unlock()

	for _, sess := range sessions {
		_ = sess.machine.Close()
	}
}

// sweep removes sessions unused for longer than ttl, skipping ones with a
// request in flight. It returns how many were removed.
func (s *sessionStore) sweep(now time.Time, ttl time.Duration) int {
	var expired []*session

	s.mu.Lock()
	for id, sess := range s.sessions {
		if now.Sub(sess.idleSince()) < ttl || workflow.IsBusy(sess.machine.Snapshot()) {
			continue
		}
		expired = append(expired, sess)
		delete(s.sessions, id)
	}
	s.mu.Unlock()

	for _, sess := range expired {
		_ = sess.machine.Close()
	}
	return len(expired)
}
