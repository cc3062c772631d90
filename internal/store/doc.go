// Package store provides persistent storage for the builtin widget tools.
//
// # Data Models
//
//   - Goal: the single goal shown by the calendar widget. At most one goal
//     exists at a time; setting a new one replaces it.
//   - OnboardingSession: progress through the three-question onboarding
//     flow, keyed by a session ID handed back to the chat host.
//
// # Implementations
//
// SQLiteStore uses modernc.org/sqlite (pure Go, no cgo) with WAL mode. The
// goals table holds one row, enforced by a CHECK on its slot column. Answers
// are stored as a JSON array.
//
// MockStore keeps everything in memory and is used by handler tests.
//
// # Usage
//
//	s, err := store.NewSQLiteStore("/var/lib/widget-gateway/widgets.db")
//	if err != nil {
//	    return err
//	}
//	defer s.Close()
//
//	goal, err := s.GetGoal(ctx)
//	if errors.Is(err, store.ErrNotFound) {
//	    // no goal set
//	}
package store
