// ABOUTME: Registry of ui:// resources with lazily loaded, memoized content.
// ABOUTME: Each loader runs at most once successfully; failures are retried on the next fetch.

package resources

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sort"
	"sync"
)

const (
	// Scheme is the only URI scheme resources may use.
	Scheme = "ui"

	// WidgetMIMEType marks HTML that chat hosts render as a widget.
	WidgetMIMEType = "text/html+skybridge"
)

var (
	ErrInvalidURI      = errors.New("invalid resource uri")
	ErrDuplicateURI    = errors.New("resource already registered")
	ErrUnknownResource = errors.New("resource not found")
)

// Loader produces a resource's content on first fetch.
type Loader func() (string, error)

// Entry describes a resource.
type Entry struct {
	URI         string
	Name        string
	Description string
	MIMEType    string
}

// IsWidget reports whether the resource is widget HTML.
func (e Entry) IsWidget() bool {
	return e.MIMEType == WidgetMIMEType
}

// Content is a loaded resource.
type Content struct {
	URI      string
	MIMEType string
	Text     string
}

type resource struct {
	entry  Entry
	loader Loader

	mu     sync.Mutex // serializes loads; concurrent first fetches share one
	loaded bool
	text   string
}

// Registry maps URIs to resources.
type Registry struct {
	mu        sync.RWMutex
	resources map[string]*resource
	logger    *slog.Logger
}

// NewRegistry creates an empty resource registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		resources: make(map[string]*resource),
		logger:    logger.With("component", "resources"),
	}
}

// Register adds a resource. The URI must use the ui scheme.
func (r *Registry) Register(entry Entry, loader Loader) error {
	if err := validateURI(entry.URI); err != nil {
		return err
	}
	if loader == nil {
		return fmt.Errorf("resource %s: loader is required", entry.URI)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.resources[entry.URI]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateURI, entry.URI)
	}
	r.resources[entry.URI] = &resource{entry: entry, loader: loader}

	r.logger.Debug("resource registered", "uri", entry.URI, "mime_type", entry.MIMEType)
	return nil
}

func validateURI(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidURI, raw, err)
	}
	if u.Scheme != Scheme {
		return fmt.Errorf("%w: %s: scheme must be %q", ErrInvalidURI, raw, Scheme)
	}
	if u.Host == "" && u.Opaque == "" && u.Path == "" {
		return fmt.Errorf("%w: %s: empty path", ErrInvalidURI, raw)
	}
	return nil
}

// Fetch returns the resource's content, loading it on first use.
func (r *Registry) Fetch(ctx context.Context, uri string) (*Content, error) {
	r.mu.RLock()
	res, ok := r.resources[uri]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownResource, uri)
	}

	text, err := res.load(ctx, r.logger)
	if err != nil {
		return nil, err
	}
	return &Content{URI: res.entry.URI, MIMEType: res.entry.MIMEType, Text: text}, nil
}

func (res *resource) load(ctx context.Context, logger *slog.Logger) (string, error) {
	res.mu.Lock()
	defer res.mu.Unlock()

	if res.loaded {
		return res.text, nil
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	text, err := res.loader()
	if err != nil {
		logger.Warn("resource load failed", "uri", res.entry.URI, "error", err)
		return "", fmt.Errorf("loading %s: %w", res.entry.URI, err)
	}
	res.text = text
	res.loaded = true

	logger.Debug("resource loaded", "uri", res.entry.URI, "bytes", len(text))
	return text, nil
}

// Get returns the entry for a URI without loading its content.
func (r *Registry) Get(uri string) (Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	res, ok := r.resources[uri]
	if !ok {
		return Entry{}, false
	}
	return res.entry, true
}

// List returns all entries sorted by URI.
func (r *Registry) List() []Entry {
	r.mu.RLock()
	out := make([]Entry, 0, len(r.resources))
	for _, res := range r.resources {
		out = append(out, res.entry)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].URI < out[j].URI })
	return out
}
