// ABOUTME: Thread-safe registry mapping tool names to descriptors and handlers.
// ABOUTME: Compiles input schemas at registration and validates arguments before dispatch.

package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

var defaultSchema = json.RawMessage(`{"type":"object"}`)

// entry is a registered tool with its compiled schema.
type entry struct {
	desc    Descriptor
	schema  *gojsonschema.Schema
	handler Handler
	packID  string
}

// Registry holds every tool the server exposes. Descriptors are immutable
// once registered.
type Registry struct {
	mu     sync.RWMutex
	tools  map[string]*entry
	logger *slog.Logger
}

// NewRegistry creates an empty registry. Pass nil logger for default.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		tools:  make(map[string]*entry),
		logger: logger,
	}
}

// Register adds a single tool.
// Returns ErrDuplicateName if the name is taken and ErrInvalidSchema if the
// input schema does not compile.
func (r *Registry) Register(desc Descriptor, handler Handler) error {
	e, err := newEntry(desc, handler, "")
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[desc.Name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateName, desc.Name)
	}
	r.tools[desc.Name] = e

	r.logger.Info("tool registered",
		"tool_name", desc.Name,
		"output_template", desc.Meta.OutputTemplate,
		"widget_accessible", desc.Meta.WidgetAccessible,
	)
	return nil
}

// RegisterPack registers every tool in the pack, or none of them if any
// name collides or any schema is invalid.
func (r *Registry) RegisterPack(pack *Pack) error {
	entries := make([]*entry, 0, len(pack.Tools))
	seen := make(map[string]struct{}, len(pack.Tools))
	for _, t := range pack.Tools {
		e, err := newEntry(t.Descriptor, t.Handler, pack.ID)
		if err != nil {
			return fmt.Errorf("pack %s: %w", pack.ID, err)
		}
		if _, dup := seen[t.Descriptor.Name]; dup {
			return fmt.Errorf("pack %s: %w: %s", pack.ID, ErrDuplicateName, t.Descriptor.Name)
		}
		seen[t.Descriptor.Name] = struct{}{}
		entries = append(entries, e)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, e := range entries {
		if existing, exists := r.tools[e.desc.Name]; exists {
			return fmt.Errorf("%w: tool '%s' already registered by pack '%s'",
				ErrDuplicateName, e.desc.Name, existing.packID)
		}
	}
	for _, e := range entries {
		r.tools[e.desc.Name] = e
	}

	r.logger.Info("tool pack registered",
		"pack_id", pack.ID,
		"tool_count", len(entries),
		"total_tools", len(r.tools),
	)
	return nil
}

func newEntry(desc Descriptor, handler Handler, packID string) (*entry, error) {
	if desc.Name == "" {
		return nil, errors.New("tool name is required")
	}
	if handler == nil {
		return nil, fmt.Errorf("tool %s: handler is required", desc.Name)
	}

	raw := desc.InputSchema
	if len(bytes.TrimSpace(raw)) == 0 {
		raw = defaultSchema
	}
	schema, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidSchema, desc.Name, err)
	}

	// Own a copy so later mutation of the caller's slice can't leak in.
	desc.InputSchema = append(json.RawMessage(nil), raw...)

	return &entry{desc: desc, schema: schema, handler: handler, packID: packID}, nil
}

// Invoke validates args against the tool's schema and runs its handler.
// Returns ErrUnknownTool, a *ValidationError or a *HandlerError on failure.
func (r *Registry) Invoke(ctx context.Context, name string, args json.RawMessage) (*Result, error) {
	r.mu.RLock()
	e, ok := r.tools[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}

	args = normalizeArgs(args)
	if err := e.validate(args); err != nil {
		return nil, err
	}

	res, err := e.handler(ctx, args)
	if err != nil {
		return nil, &HandlerError{Tool: name, Err: err}
	}
	if res == nil {
		return nil, &HandlerError{Tool: name, Err: errors.New("handler returned no result")}
	}

	res.Meta = e.desc.Meta
	return res, nil
}

func normalizeArgs(args json.RawMessage) json.RawMessage {
	trimmed := bytes.TrimSpace(args)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return json.RawMessage("{}")
	}
	return trimmed
}

func (e *entry) validate(args json.RawMessage) error {
	result, err := e.schema.Validate(gojsonschema.NewBytesLoader(args))
	if err != nil {
		return &ValidationError{Tool: e.desc.Name, Violations: []string{err.Error()}}
	}
	if result.Valid() {
		return nil
	}

	violations := make([]string, 0, len(result.Errors()))
	for _, re := range result.Errors() {
		violations = append(violations, re.String())
	}
	return &ValidationError{Tool: e.desc.Name, Violations: violations}
}

// Get returns the descriptor for a tool.
func (r *Registry) Get(name string) (Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.tools[name]
	if !ok {
		return Descriptor{}, false
	}
	return e.desc, true
}

// List returns all descriptors sorted by name.
func (r *Registry) List() []Descriptor {
	r.mu.RLock()
	out := make([]Descriptor, 0, len(r.tools))
	for _, e := range r.tools {
		out = append(out, e.desc)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}
