// ABOUTME: Observable store of widget globals with a single host-side writer.
// ABOUTME: Subscribers are notified synchronously and only for keys in the pushed change-set.

package bridge

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// Listener receives the new value of a subscribed key.
type Listener func(value any)

// Reader is the read side handed to widget code.
type Reader interface {
	CurrentValue(key Key) (any, bool)
	Subscribe(key Key, fn Listener) (unsubscribe func())
}

type subscription struct {
	id     string
	key    Key
	fn     Listener
	active atomic.Bool
}

// Store holds the latest globals. It has no mutating methods; use the Host
// returned alongside it by NewStore.
type Store struct {
	mu     sync.RWMutex
	values map[Key]any
	subs   []*subscription

	pushMu sync.Mutex // serializes pushes so deliveries never interleave
	logger *slog.Logger
}

// Host is the single writer for a Store.
type Host struct {
	store *Store
}

// NewStore creates an empty store and its writer.
func NewStore(logger *slog.Logger) (*Store, *Host) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{
		values: make(map[Key]any),
		logger: logger.With("component", "bridge"),
	}
	return s, &Host{store: s}
}

// CurrentValue returns the latest value for key, or false if it was never set.
func (s *Store) CurrentValue(key Key) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	return v, ok
}

// Subscribe registers fn for changes to key. The returned function removes
// the subscription; it is safe to call more than once and from inside a
// listener.
func (s *Store) Subscribe(key Key, fn Listener) func() {
	sub := &subscription{id: uuid.New().String(), key: key, fn: fn}
	sub.active.Store(true)

	s.mu.Lock()
	s.subs = append(s.subs, sub)
	s.mu.Unlock()

	s.logger.Debug("subscriber added", "key", key, "subscription_id", sub.id)

	return func() {
		if !sub.active.Swap(false) {
			return
		}
		s.mu.Lock()
		for i, other := range s.subs {
			if other == sub {
				s.subs = append(s.subs[:i:i], s.subs[i+1:]...)
				break
			}
		}
		s.mu.Unlock()
		s.logger.Debug("subscriber removed", "key", key, "subscription_id", sub.id)
	}
}

// Push validates and commits a change-set, then notifies subscribers of the
// keys it contains in registration order. Nothing is committed if any entry
// is invalid. Listeners must not call Push.
func (h *Host) Push(g Globals) error {
	s := h.store

	clean := make(map[Key]any, len(g))
	for k, v := range g {
		if !knownKey(k) {
			return fmt.Errorf("%w: %s", ErrUnknownKey, k)
		}
		nv, err := normalize(k, v)
		if err != nil {
			return err
		}
		clean[k] = nv
	}
	if len(clean) == 0 {
		return nil
	}

	s.pushMu.Lock()
	defer s.pushMu.Unlock()

	s.mu.Lock()
	for k, v := range clean {
		s.values[k] = v
	}
	subs := make([]*subscription, len(s.subs))
	copy(subs, s.subs)
	s.mu.Unlock()

	for _, sub := range subs {
		v, ok := clean[sub.key]
		if !ok {
			continue
		}
		// Checked per delivery so an unsubscribe earlier in this push wins.
		if !sub.active.Load() {
			continue
		}
		sub.fn(v)
	}
	return nil
}

// HandleEvent applies a host event. Only EventSetGlobals is understood.
func (h *Host) HandleEvent(name string, payload []byte) error {
	if name != EventSetGlobals {
		return fmt.Errorf("unsupported event %q", name)
	}

	var ev SetGlobalsEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return fmt.Errorf("decode %s payload: %w", name, err)
	}

	g := make(Globals, len(ev.Globals))
	for k, raw := range ev.Globals {
		var v any
		if err := json.Unmarshal(raw, &v); err != nil {
			return fmt.Errorf("decode global %s: %w", k, err)
		}
		g[Key(k)] = v
	}
	return h.Push(g)
}

// EncodeEvent builds the EventSetGlobals payload for a change-set.
func EncodeEvent(g Globals) ([]byte, error) {
	out := make(map[string]any, len(g))
	for k, v := range g {
		out[string(k)] = v
	}
	return json.Marshal(map[string]any{"globals": out})
}
