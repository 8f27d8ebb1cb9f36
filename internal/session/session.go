// Package session keeps per-user conversation state for the add-product
// wizard. Sessions are in-memory and live for the process lifetime.
//
// Every read-modify-write is serialized per user; sessions of different
// users never contend on the same lock.
package session

import (
	"errors"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/driphype/shopbot/internal/storage"
)

// ErrNoSession is returned when an update targets a user without an active session.
var ErrNoSession = errors.New("no active session")

// State identifies a finite-state-machine step used in conversations.
// Concrete states are defined by the conversation engine.
type State string

// StateIdle indicates there is no active conversation with the user.
const StateIdle State = "idle"

// ProductDraft accumulates validated wizard inputs. Each field is written by
// exactly one wizard state, so an unset field can only mean the wizard has
// not reached that state yet.
type ProductDraft struct {
	Name        string
	Description string
	Price       decimal.Decimal
	ImageURL    string
	Category    storage.Category
	ProductType storage.ProductType
	Sizes       storage.SizeList
}

// Session is the conversation state of a single user. At most one session
// exists per user; starting a new wizard overwrites the previous one.
type Session struct {
	UserID       int64
	State        State
	Draft        ProductDraft
	CreatedAt    time.Time
	LastActivity time.Time
}

type entry struct {
	mu   sync.Mutex
	sess *Session
}

// Manager owns all sessions. The outer map lock is held only for entry
// lookup; session mutation runs under the per-user entry lock.
type Manager struct {
	mu      sync.Mutex
	entries map[int64]*entry
}

// NewManager constructs an empty in-memory session manager.
func NewManager() *Manager {
	return &Manager{entries: make(map[int64]*entry)}
}

func (m *Manager) entryFor(userID int64) *entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[userID]
	if !ok {
		e = &entry{}
		m.entries[userID] = e
	}
	return e
}

// Begin starts a fresh session in the given state, discarding any session
// the user already had.
func (m *Manager) Begin(userID int64, st State) {
	e := m.entryFor(userID)
	e.mu.Lock()
	defer e.mu.Unlock()
	now := time.Now()
	e.sess = &Session{
		UserID:       userID,
		State:        st,
		CreatedAt:    now,
		LastActivity: now,
	}
}

// Get returns a copy of the user's session, if one is active.
func (m *Manager) Get(userID int64) (Session, bool) {
	e := m.entryFor(userID)
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.sess == nil {
		return Session{}, false
	}
	return *e.sess, true
}

// State returns the user's current state, or StateIdle without a session.
func (m *Manager) State(userID int64) State {
	if sess, ok := m.Get(userID); ok {
		return sess.State
	}
	return StateIdle
}

// Active reports whether the user has a session in progress.
func (m *Manager) Active(userID int64) bool {
	_, ok := m.Get(userID)
	return ok
}

// Update applies fn to the user's session as a single atomic
// read-modify-write. Returns ErrNoSession when the user has none; any error
// from fn is returned unchanged and leaves the session as fn left it.
func (m *Manager) Update(userID int64, fn func(*Session) error) error {
	return m.Finish(userID, func(s *Session) (bool, error) {
		return false, fn(s)
	})
}

// Finish applies fn like Update and, when fn reports the conversation done,
// removes the session before the entry lock is released. An interleaved
// input can therefore never observe a finished session, and a wizard started
// in the meantime is never torn down by a trailing cleanup.
func (m *Manager) Finish(userID int64, fn func(*Session) (done bool, err error)) error {
	e := m.entryFor(userID)
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.sess == nil {
		return ErrNoSession
	}
	e.sess.LastActivity = time.Now()
	done, err := fn(e.sess)
	if err == nil && done {
		e.sess = nil
	}
	return err
}

// Delete removes the user's session, if any.
func (m *Manager) Delete(userID int64) {
	e := m.entryFor(userID)
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sess = nil
}
