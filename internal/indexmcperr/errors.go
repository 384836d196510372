// Package indexmcperr defines the stable error kinds surfaced to MCP tool
// callers, independent of the JSON-RPC transport error codes in
// internal/protocol.
package indexmcperr

import (
	"errors"
	"fmt"
)

// Kind is a stable, caller-facing error classification. Kinds are names, not
// types: callers match on Kind, not on Go type identity.
type Kind string

const (
	// InvalidInput covers missing/blank required args, malformed globs, an
	// empty search query.
	InvalidInput Kind = "InvalidInput"
	// WorkspaceUnavailable means root could not be resolved or doesn't exist.
	WorkspaceUnavailable Kind = "WorkspaceUnavailable"
	// IndexMissing means a read tool was called but the database file is
	// absent.
	IndexMissing Kind = "IndexMissing"
	// NotIndexed means a bundle/graph target references a file or symbol not
	// present in the database.
	NotIndexed Kind = "NotIndexed"
	// ModelAmbiguous means search was called without a model when more than
	// one embedding model is present in the database.
	ModelAmbiguous Kind = "ModelAmbiguous"
	// EmbeddingUnavailable means the embedder capability is absent when
	// required.
	EmbeddingUnavailable Kind = "EmbeddingUnavailable"
	// Ambiguous means a graph node descriptor matched more than one row.
	Ambiguous Kind = "Ambiguous"
	// ReadError is a per-file error encountered during the walk.
	ReadError Kind = "ReadError"
	// FileTooLarge is a per-file skip reason during the walk.
	FileTooLarge Kind = "FileTooLarge"
	// Cancelled means the caller aborted the operation.
	Cancelled Kind = "Cancelled"
	// Internal covers unexpected I/O, SQLite, or subprocess failures.
	Internal Kind = "Internal"
)

// Error wraps an underlying cause with a stable Kind and an
// operator-friendly message. The zero value is not usable; build one with
// New or Wrap.
type Error struct {
	Kind    Kind
	Tool    string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Tool != "" {
		return fmt.Sprintf("%s failed: %s", e.Tool, e.Message)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// New builds an *Error with no underlying cause.
func New(kind Kind, tool, message string) *Error {
	return &Error{Kind: kind, Tool: tool, Message: message}
}

// Wrap builds an *Error that carries cause as its Unwrap target. message
// should not repeat cause's own text; callers of Error() get both via %s.
func Wrap(kind Kind, tool, message string, cause error) *Error {
	if cause != nil {
		message = fmt.Sprintf("%s: %v", message, cause)
	}
	return &Error{Kind: kind, Tool: tool, Message: message, Cause: cause}
}

// KindOf extracts the Kind from err if it (or something it wraps) is an
// *Error; otherwise returns Internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

// Is reports whether err's Kind equals kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}
