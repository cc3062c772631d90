// ABOUTME: Transport-independent core that lists and invokes tools and reads resources.
// ABOUTME: Holds no per-client state; error mapping to JSON-RPC codes lives here too.

package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/2389/widget-gateway/internal/resources"
	"github.com/2389/widget-gateway/internal/tools"
)

// Outcome labels reported to an Observer.
const (
	OutcomeOK      = "ok"
	OutcomeIsError = "is_error"
)

// Observer receives one notification per completed dispatch.
type Observer interface {
	ObserveToolCall(tool, outcome string, elapsed time.Duration)
	ObserveResourceRead(uri, outcome string)
}

type nopObserver struct{}

func (nopObserver) ObserveToolCall(string, string, time.Duration) {}
func (nopObserver) ObserveResourceRead(string, string)            {}

// Dispatcher answers tool and resource requests from the registries.
type Dispatcher struct {
	tools     *tools.Registry
	resources *resources.Registry
	observer  Observer
	logger    *slog.Logger
}

// NewDispatcher creates a dispatcher. observer and logger may be nil.
func NewDispatcher(toolReg *tools.Registry, resourceReg *resources.Registry, observer Observer, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	if observer == nil {
		observer = nopObserver{}
	}
	return &Dispatcher{
		tools:     toolReg,
		resources: resourceReg,
		observer:  observer,
		logger:    logger.With("component", "dispatcher"),
	}
}

// ListTools returns every registered tool with its invocation metadata.
func (d *Dispatcher) ListTools() []ToolInfo {
	descs := d.tools.List()
	out := make([]ToolInfo, len(descs))
	for i, desc := range descs {
		out[i] = ToolInfo{
			Name:        desc.Name,
			Title:       desc.Title,
			Description: desc.Description,
			InputSchema: desc.InputSchema,
			Meta:        desc.Meta.Map(),
		}
	}
	return out
}

// CallTool validates and runs a tool. Errors are *JSONRPCError values ready
// to send.
func (d *Dispatcher) CallTool(ctx context.Context, name string, args json.RawMessage) (*CallToolResult, error) {
	start := time.Now()
	res, err := d.tools.Invoke(ctx, name, args)
	if err != nil {
		rpcErr := toolError(err)
		d.observer.ObserveToolCall(name, rpcErr.Data.Kind, time.Since(start))
		d.logger.Warn("tool call failed", "tool_name", name, "kind", rpcErr.Data.Kind, "error", err)
		return nil, rpcErr
	}

	outcome := OutcomeOK
	if res.IsError {
		outcome = OutcomeIsError
	}
	d.observer.ObserveToolCall(name, outcome, time.Since(start))

	return &CallToolResult{
		Content:           []Content{{Type: "text", Text: res.Text}},
		StructuredContent: res.StructuredContent,
		Meta:              res.MetaMap(),
		IsError:           res.IsError,
	}, nil
}

// ListResources returns every registered resource.
func (d *Dispatcher) ListResources() []ResourceInfo {
	entries := d.resources.List()
	out := make([]ResourceInfo, len(entries))
	for i, e := range entries {
		out[i] = ResourceInfo{URI: e.URI, Name: e.Name, Description: e.Description, MIMEType: e.MIMEType}
	}
	return out
}

// ReadResource loads a resource's content.
func (d *Dispatcher) ReadResource(ctx context.Context, uri string) (*ReadResourceResult, error) {
	content, err := d.resources.Fetch(ctx, uri)
	if err != nil {
		rpcErr := resourceError(uri, err)
		d.observer.ObserveResourceRead(uri, rpcErr.Data.Kind)
		d.logger.Warn("resource read failed", "uri", uri, "error", err)
		return nil, rpcErr
	}
	d.observer.ObserveResourceRead(uri, OutcomeOK)

	return &ReadResourceResult{
		Contents: []ResourceContents{{URI: content.URI, MIMEType: content.MIMEType, Text: content.Text}},
	}, nil
}

func toolError(err error) *JSONRPCError {
	var verr *tools.ValidationError
	switch {
	case errors.Is(err, tools.ErrUnknownTool):
		return &JSONRPCError{Code: JSONRPCInvalidParams, Message: "tool not found",
			Data: &ErrorData{Kind: KindToolNotFound}}
	case errors.As(err, &verr):
		return &JSONRPCError{Code: JSONRPCInvalidParams, Message: "invalid arguments",
			Data: &ErrorData{Kind: KindInvalidArguments, Errors: verr.Violations}}
	case errors.Is(err, context.DeadlineExceeded):
		return &JSONRPCError{Code: JSONRPCInternalError, Message: "tool execution timed out",
			Data: &ErrorData{Kind: KindHandlerFailed}}
	case errors.Is(err, context.Canceled):
		return &JSONRPCError{Code: JSONRPCInternalError, Message: "request cancelled",
			Data: &ErrorData{Kind: KindHandlerFailed}}
	default:
		return &JSONRPCError{Code: JSONRPCInternalError, Message: "tool execution failed",
			Data: &ErrorData{Kind: KindHandlerFailed}}
	}
}

func resourceError(uri string, err error) *JSONRPCError {
	if errors.Is(err, resources.ErrUnknownResource) {
		return &JSONRPCError{Code: CodeResourceNotFound, Message: "resource not found: " + uri,
			Data: &ErrorData{Kind: KindResourceNotFound}}
	}
	return &JSONRPCError{Code: JSONRPCInternalError, Message: "failed to load resource",
		Data: &ErrorData{Kind: "load_failed"}}
}
