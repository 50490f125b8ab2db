package session

import (
	"sync"
	"time"

	"github.com/hupe1980/chatmesh/core"
)

// MiniAppSession is one launched mini-app instance. The participant set is
// the authorization boundary and is fixed at launch. The state blob is
// app-specific and opaque to the core.
type MiniAppSession struct {
	ID           string         `json:"id"`
	AppID        string         `json:"app_id"`
	Participants []string       `json:"participants"`
	State        map[string]any `json:"state"`
	LastActivity time.Time      `json:"last_activity"`
	Active       bool           `json:"active"`
	Created      time.Time      `json:"created"`
}

// clone returns a deep copy safe for external use.
func (m *MiniAppSession) clone() *MiniAppSession {
	c := *m
	c.Participants = append([]string(nil), m.Participants...)
	c.State = make(map[string]any, len(m.State))
	for k, v := range m.State {
		c.State[k] = v
	}
	return &c
}

// MiniAppStore holds mini-app sessions keyed by generated id. Owned
// exclusively by the mini-app handler.
type MiniAppStore struct {
	mu       sync.RWMutex
	sessions map[string]*MiniAppSession
}

// NewMiniAppStore constructs an empty mini-app store.
func NewMiniAppStore() *MiniAppStore {
	return &MiniAppStore{sessions: make(map[string]*MiniAppSession)}
}

// Launch creates an active session for the app. The creator is always part
// of the participant set.
func (s *MiniAppStore) Launch(appID string, participants []string, creator string) (*MiniAppSession, error) {
	if appID == "" {
		return nil, core.NewValidationError("app_id", "must not be empty")
	}
	members := normalizeParticipants(append([]string{creator}, participants...))
	if len(members) == 0 {
		return nil, core.NewValidationError("participants", "at least one participant required")
	}

	now := time.Now().UTC()
	sess := &MiniAppSession{
		ID:           core.NewID(),
		AppID:        appID,
		Participants: members,
		State:        make(map[string]any),
		LastActivity: now,
		Active:       true,
		Created:      now,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.ID] = sess
	return sess.clone(), nil
}

// Get returns a clone of the session or a NotFoundError.
func (s *MiniAppStore) Get(id string) (*MiniAppSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, core.NewNotFoundError("app session", id)
	}
	return sess.clone(), nil
}

// Interact merges delta into the session's state blob: new keys overwrite,
// existing keys persist. A closed session rejects interaction with an
// authorization-style error and its blob stays unchanged.
func (s *MiniAppStore) Interact(id, actor string, delta map[string]any) (*MiniAppSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, core.NewNotFoundError("app session", id)
	}
	if !sess.Active {
		return nil, core.NewValidationError("session", "session is closed")
	}
	if !hasParticipant(sess.Participants, actor) {
		return nil, core.NewValidationError("actor", "not a participant of this session")
	}

	for k, v := range delta {
		sess.State[k] = v
	}
	sess.LastActivity = time.Now().UTC()
	return sess.clone(), nil
}

// Close deactivates the session. Closing an already closed session is
// rejected the same way as interaction.
func (s *MiniAppStore) Close(id, actor string) (*MiniAppSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, core.NewNotFoundError("app session", id)
	}
	if !sess.Active {
		return nil, core.NewValidationError("session", "session is closed")
	}
	if !hasParticipant(sess.Participants, actor) {
		return nil, core.NewValidationError("actor", "not a participant of this session")
	}

	sess.Active = false
	sess.LastActivity = time.Now().UTC()
	return sess.clone(), nil
}

// PurgeTerminal removes closed sessions, returning the count.
func (s *MiniAppStore) PurgeTerminal() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, sess := range s.sessions {
		if !sess.Active {
			delete(s.sessions, id)
			n++
		}
	}
	return n
}
