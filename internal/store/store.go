// ABOUTME: Store interface and data types for widget-gateway persistence
// ABOUTME: Defines the current Goal and OnboardingSession records

package store

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when an update was based on stale state.
var ErrConflict = errors.New("conflicting update")

// DateLayout is the on-disk and wire format for goal dates.
const DateLayout = "2006-01-02"

// Goal is the single goal being tracked.
type Goal struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	StartDate  string `json:"startDate"`  // YYYY-MM-DD
	TargetDate string `json:"targetDate"` // YYYY-MM-DD
}

// OnboardingSession tracks progress through the onboarding questionnaire.
type OnboardingSession struct {
	ID              string
	CurrentQuestion int // index of the next unanswered question
	Answers         []bool
	Completed       bool
}

// Store defines the persistence operations used by the builtin tools.
type Store interface {
	// GetGoal returns the current goal, or ErrNotFound when none is set.
	GetGoal(ctx context.Context) (*Goal, error)

	// SetGoal replaces the current goal.
	SetGoal(ctx context.Context, goal *Goal) error

	// ClearGoal removes the current goal and returns it, or ErrNotFound.
	ClearGoal(ctx context.Context) (*Goal, error)

	CreateOnboardingSession(ctx context.Context, session *OnboardingSession) error
	GetOnboardingSession(ctx context.Context, id string) (*OnboardingSession, error)

	// UpdateOnboardingSession writes session only if the stored
	// CurrentQuestion still equals fromQuestion, else ErrConflict.
	UpdateOnboardingSession(ctx context.Context, session *OnboardingSession, fromQuestion int) error

	DeleteOnboardingSession(ctx context.Context, id string) error

	Close() error
}
