// ABOUTME: Error taxonomy for tool registration and invocation.
// ABOUTME: Sentinels for errors.Is plus typed errors carrying validation details.

package tools

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrDuplicateName is returned when a tool name is already registered.
	ErrDuplicateName = errors.New("tool already registered")

	// ErrInvalidSchema is returned when a tool's input schema does not compile.
	ErrInvalidSchema = errors.New("invalid input schema")

	// ErrUnknownTool is returned when invoking a name that was never registered.
	ErrUnknownTool = errors.New("tool not found")

	// ErrSchemaValidation is matched by every *ValidationError.
	ErrSchemaValidation = errors.New("arguments do not match schema")
)

// ValidationError lists every schema violation found in a call's arguments.
type ValidationError struct {
	Tool       string
	Violations []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid arguments for %s: %s", e.Tool, strings.Join(e.Violations, "; "))
}

func (e *ValidationError) Unwrap() error {
	return ErrSchemaValidation
}

// HandlerError wraps a failure raised by a tool handler.
type HandlerError struct {
	Tool string
	Err  error
}

func (e *HandlerError) Error() string {
	return fmt.Sprintf("tool %s failed: %v", e.Tool, e.Err)
}

func (e *HandlerError) Unwrap() error {
	return e.Err
}
