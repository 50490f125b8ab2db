package session

import (
	"sync"
	"time"
)

// UserPreferences holds a user's content interests and notification flags.
type UserPreferences struct {
	UserID        string    `json:"user_id"`
	Interests     []string  `json:"interests"`
	NotifyDaily   bool      `json:"notify_daily"`
	NotifyMention bool      `json:"notify_mention"`
	Updated       time.Time `json:"updated"`
}

// clone returns a deep copy safe for external use.
func (p *UserPreferences) clone() *UserPreferences {
	c := *p
	c.Interests = append([]string(nil), p.Interests...)
	return &c
}

// PreferenceStore holds per-user preferences. Owned exclusively by the social
// handler. Unlike the other stores it is keyed by user id, not a generated
// session id, and entries have no terminal state.
type PreferenceStore struct {
	mu    sync.RWMutex
	prefs map[string]*UserPreferences
}

// NewPreferenceStore constructs an empty preference store.
func NewPreferenceStore() *PreferenceStore {
	return &PreferenceStore{prefs: make(map[string]*UserPreferences)}
}

// Get returns the user's preferences, falling back to zero-value defaults so
// callers never need a created-first check.
func (s *PreferenceStore) Get(userID string) *UserPreferences {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if p, ok := s.prefs[userID]; ok {
		return p.clone()
	}
	return &UserPreferences{UserID: userID}
}

// SetInterests replaces the user's interest list.
func (s *PreferenceStore) SetInterests(userID string, interests []string) *UserPreferences {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.getOrCreateLocked(userID)
	p.Interests = normalizeParticipants(interests)
	p.Updated = time.Now().UTC()
	return p.clone()
}

// SetNotifications updates the notification flags.
func (s *PreferenceStore) SetNotifications(userID string, daily, mention bool) *UserPreferences {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.getOrCreateLocked(userID)
	p.NotifyDaily = daily
	p.NotifyMention = mention
	p.Updated = time.Now().UTC()
	return p.clone()
}

// getOrCreateLocked allocates the entry lazily; caller holds the write lock.
func (s *PreferenceStore) getOrCreateLocked(userID string) *UserPreferences {
	p, ok := s.prefs[userID]
	if !ok {
		p = &UserPreferences{UserID: userID}
		s.prefs[userID] = p
	}
	return p
}
