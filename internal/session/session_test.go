package session

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testState State = "awaiting_name"

func TestManagerBeginAndGet(t *testing.T) {
	m := NewManager()

	_, ok := m.Get(1)
	assert.False(t, ok)
	assert.Equal(t, StateIdle, m.State(1))
	assert.False(t, m.Active(1))

	m.Begin(1, testState)

	sess, ok := m.Get(1)
	require.True(t, ok)
	assert.Equal(t, int64(1), sess.UserID)
	assert.Equal(t, testState, sess.State)
	assert.False(t, sess.CreatedAt.IsZero())
	assert.True(t, m.Active(1))
}

func TestManagerIsolatesUsers(t *testing.T) {
	m := NewManager()
	m.Begin(1, testState)
	m.Begin(2, testState)

	require.NoError(t, m.Update(1, func(s *Session) error {
		s.Draft.Name = "hoodie"
		return nil
	}))

	s1, _ := m.Get(1)
	s2, _ := m.Get(2)
	assert.Equal(t, "hoodie", s1.Draft.Name)
	assert.Empty(t, s2.Draft.Name)

	m.Delete(1)
	assert.False(t, m.Active(1))
	assert.True(t, m.Active(2))
}

func TestManagerBeginOverwrites(t *testing.T) {
	m := NewManager()
	m.Begin(1, testState)
	require.NoError(t, m.Update(1, func(s *Session) error {
		s.Draft.Name = "old"
		return nil
	}))

	m.Begin(1, testState)
	sess, ok := m.Get(1)
	require.True(t, ok)
	assert.Empty(t, sess.Draft.Name)
}

func TestUpdateWithoutSession(t *testing.T) {
	m := NewManager()
	err := m.Update(42, func(s *Session) error { return nil })
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestUpdatePropagatesError(t *testing.T) {
	m := NewManager()
	m.Begin(1, testState)

	boom := errors.New("boom")
	err := m.Update(1, func(s *Session) error {
		s.Draft.Name = "kept"
		return boom
	})
	assert.ErrorIs(t, err, boom)

	// fn's writes survive even when it errors.
	sess, _ := m.Get(1)
	assert.Equal(t, "kept", sess.Draft.Name)
}

func TestGetReturnsCopy(t *testing.T) {
	m := NewManager()
	m.Begin(1, testState)

	sess, _ := m.Get(1)
	sess.Draft.Name = "mutated copy"

	fresh, _ := m.Get(1)
	assert.Empty(t, fresh.Draft.Name)
}

func TestFinishRemovesInCriticalSection(t *testing.T) {
	m := NewManager()
	m.Begin(1, testState)

	require.NoError(t, m.Finish(1, func(s *Session) (bool, error) { return true, nil }))
	assert.False(t, m.Active(1))

	err := m.Finish(1, func(s *Session) (bool, error) { return true, nil })
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestFinishKeepsSessionWhenNotDone(t *testing.T) {
	m := NewManager()
	m.Begin(1, testState)

	require.NoError(t, m.Finish(1, func(s *Session) (bool, error) { return false, nil }))
	assert.True(t, m.Active(1))

	boom := errors.New("boom")
	err := m.Finish(1, func(s *Session) (bool, error) { return true, boom })
	assert.ErrorIs(t, err, boom)
	assert.True(t, m.Active(1), "a failed finish must leave the session retryable")
}

func TestFinishExactlyOnceUnderContention(t *testing.T) {
	const trials = 200
	const workers = 4

	for i := 0; i < trials; i++ {
		m := NewManager()
		m.Begin(1, testState)

		var finished int32
		var wg sync.WaitGroup
		for j := 0; j < workers; j++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_ = m.Finish(1, func(s *Session) (bool, error) {
					atomic.AddInt32(&finished, 1)
					return true, nil
				})
			}()
		}
		wg.Wait()

		assert.EqualValues(t, 1, finished, "only one input may finish a session")
		assert.False(t, m.Active(1))
	}
}

func TestUpdateIsAtomicUnderContention(t *testing.T) {
	m := NewManager()
	m.Begin(1, testState)

	const workers = 16
	const rounds = 100

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < rounds; j++ {
				_ = m.Update(1, func(s *Session) error {
					s.Draft.Sizes = append(s.Draft.Sizes, "M")
					return nil
				})
			}
		}()
	}
	wg.Wait()

	sess, ok := m.Get(1)
	require.True(t, ok)
	assert.Len(t, sess.Draft.Sizes, workers*rounds)
}
