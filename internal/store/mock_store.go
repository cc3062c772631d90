// ABOUTME: Mock Store implementation for testing
// ABOUTME: Allows tests to run without SQLite

package store

import (
	"context"
	"fmt"
	"sync"
)

// MockStore is an in-memory Store implementation for testing.
type MockStore struct {
	mu       sync.RWMutex
	goal     *Goal
	sessions map[string]*OnboardingSession // keyed by session ID
}

// NewMockStore creates a new MockStore.
func NewMockStore() *MockStore {
	return &MockStore{
		sessions: make(map[string]*OnboardingSession),
	}
}

func (m *MockStore) GetGoal(ctx context.Context) (*Goal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.goal == nil {
		return nil, ErrNotFound
	}
	g := *m.goal
	return &g, nil
}

func (m *MockStore) SetGoal(ctx context.Context, goal *Goal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	g := *goal
	m.goal = &g
	return nil
}

func (m *MockStore) ClearGoal(ctx context.Context) (*Goal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.goal == nil {
		return nil, ErrNotFound
	}
	g := m.goal
	m.goal = nil
	return g, nil
}

func (m *MockStore) CreateOnboardingSession(ctx context.Context, session *OnboardingSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.sessions[session.ID]; exists {
		return fmt.Errorf("onboarding session %s already exists", session.ID)
	}
	m.sessions[session.ID] = copySession(session)
	return nil
}

func (m *MockStore) GetOnboardingSession(ctx context.Context, id string) (*OnboardingSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sess, ok := m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copySession(sess), nil
}

func (m *MockStore) UpdateOnboardingSession(ctx context.Context, session *OnboardingSession, fromQuestion int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.sessions[session.ID]
	if !ok {
		return ErrNotFound
	}
	if existing.CurrentQuestion != fromQuestion {
		return ErrConflict
	}
	m.sessions[session.ID] = copySession(session)
	return nil
}

func (m *MockStore) DeleteOnboardingSession(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[id]; !ok {
		return ErrNotFound
	}
	delete(m.sessions, id)
	return nil
}

func (m *MockStore) Close() error {
	return nil
}

func copySession(s *OnboardingSession) *OnboardingSession {
	c := *s
	c.Answers = append([]bool(nil), s.Answers...)
	return &c
}

var _ Store = (*MockStore)(nil)
