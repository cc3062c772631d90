// ABOUTME: Tool descriptors, invocation metadata and handler types for widget tools.
// ABOUTME: Meta maps to the openai/* keys that chat hosts read to render widgets.

package tools

import (
	"context"
	"encoding/json"
)

// Wire keys for invocation metadata. Hosts read these from both the tool
// listing and every call result.
const (
	MetaOutputTemplate   = "openai/outputTemplate"
	MetaInvoking         = "openai/toolInvocation/invoking"
	MetaInvoked          = "openai/toolInvocation/invoked"
	MetaWidgetAccessible = "openai/widgetAccessible"
	MetaWidgetSessionID  = "openai/widgetSessionId"
)

// InvocationMeta is the rendering contract a tool declares at registration.
type InvocationMeta struct {
	OutputTemplate   string // ui:// URI of the widget resource, empty for text-only tools
	Invoking         string // status label shown while the call runs
	Invoked          string // status label shown once the call returns
	WidgetAccessible bool
}

// Map returns the metadata as wire keys. Empty labels are omitted;
// widgetAccessible is always present.
func (m InvocationMeta) Map() map[string]any {
	out := make(map[string]any, 4)
	if m.OutputTemplate != "" {
		out[MetaOutputTemplate] = m.OutputTemplate
	}
	if m.Invoking != "" {
		out[MetaInvoking] = m.Invoking
	}
	if m.Invoked != "" {
		out[MetaInvoked] = m.Invoked
	}
	out[MetaWidgetAccessible] = m.WidgetAccessible
	return out
}

// Descriptor describes a registered tool.
type Descriptor struct {
	Name        string
	Title       string
	Description string
	InputSchema json.RawMessage // JSON Schema; defaults to {"type":"object"}
	Meta        InvocationMeta
}

// Result is what a handler produces for one invocation.
type Result struct {
	StructuredContent any
	Text              string

	// IsError marks a domain-level failure the user should see, such as a
	// rejected date. It is still a successful protocol response.
	IsError bool

	// Meta is overwritten by the registry with the declared InvocationMeta.
	Meta InvocationMeta

	// ExtraMeta carries per-call keys such as openai/widgetSessionId.
	ExtraMeta map[string]any
}

// Renderable reports whether the host may render this result as a widget.
// When false only Text is surfaced.
func (r *Result) Renderable() bool {
	return r.Meta.WidgetAccessible && r.Meta.OutputTemplate != ""
}

// MetaMap merges the declared metadata with any per-call keys.
func (r *Result) MetaMap() map[string]any {
	out := r.Meta.Map()
	for k, v := range r.ExtraMeta {
		out[k] = v
	}
	return out
}

// Handler executes a tool. Args have already been validated against the
// tool's input schema.
type Handler func(ctx context.Context, args json.RawMessage) (*Result, error)

// Tool pairs a descriptor with its handler.
type Tool struct {
	Descriptor Descriptor
	Handler    Handler
}

// Pack is a named group of tools registered together.
type Pack struct {
	ID    string
	Tools []*Tool
}
