package session

import (
	"maps"

	"github.com/google/uuid"
)

// NewID mints a fresh UUID v4 session identifier.
func NewID() string {
	return uuid.NewString()
}

// Session is a server-managed key/value map keyed by an opaque
// identifier carried in a signed cookie. Its identifier is immutable for
// its lifetime; "regeneration" is modeled by destroying the current
// session and letting the next request mint a new one.
type Session struct {
	id        string
	data      Data
	dirty     bool
	loaded    bool
	isNew     bool
	destroyed bool
}

// New constructs a fresh, empty Session for id, marked isNew.
func New(id string) *Session {
	return &Session{id: id, data: Data{}, isNew: true}
}

// Load hydrates an existing session from store-loaded data (or an empty
// map, for a brand-new session or a store miss).
func Load(id string, data Data, isNew bool) *Session {
	if data == nil {
		data = Data{}
	}
	return &Session{id: id, data: data, loaded: true, isNew: isNew}
}

// ID returns the session's immutable identifier.
func (s *Session) ID() string { return s.id }

// IsNew reports whether this session was minted for the current request
// (no valid session cookie was presented).
func (s *Session) IsNew() bool { return s.isNew }

// Dirty reports whether any mutation has occurred since the session was
// loaded (or created).
func (s *Session) Dirty() bool { return s.dirty }

// Destroyed reports whether Destroy has been called.
func (s *Session) Destroyed() bool { return s.destroyed }

// Get returns the value for key and whether it is present.
func (s *Session) Get(key string) (any, bool) {
	v, ok := s.data[key]
	return v, ok
}

// Set stores value under key and marks the session dirty.
func (s *Session) Set(key string, value any) {
	s.data[key] = value
	s.dirty = true
}

// Delete removes key, marking the session dirty if it was present.
func (s *Session) Delete(key string) {
	if _, ok := s.data[key]; ok {
		delete(s.data, key)
		s.dirty = true
	}
}

// Data returns an independent copy of the session's current data, safe
// for the caller to inspect or mutate without affecting the session.
func (s *Session) Data() Data {
	return maps.Clone(s.data)
}

// Destroy clears the in-memory data and marks the session for store
// removal; the pipeline is responsible for calling Store.Destroy(id)
// when it observes Destroyed() after the handler chain runs.
func (s *Session) Destroy() {
	s.data = Data{}
	s.destroyed = true
	s.dirty = false
}
