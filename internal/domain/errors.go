package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// HTTPError defines errors that can be mapped to HTTP status codes.
// Implementing this interface enables extensible error handling at the
// handler layer without enumerating every concrete type there.
type HTTPError interface {
	error
	StatusCode() int
}

// Sentinel errors - use with errors.Is()
var (
	// ErrNotFound indicates a turn id that does not exist in the store.
	ErrNotFound = errors.New("turn not found")

	// ErrDuplicateID indicates an insert whose id already exists.
	ErrDuplicateID = errors.New("duplicate turn id")

	// ErrDanglingParent indicates an insert whose parent id references no
	// existing turn.
	ErrDanglingParent = errors.New("dangling parent")

	// ErrUnknownParent indicates an append/edit against a parent or original
	// id that does not exist.
	ErrUnknownParent = errors.New("unknown parent")

	// ErrInvalidSwitch indicates a branch switch with an out-of-range
	// position or a target that is not a sibling of the turn at that position.
	ErrInvalidSwitch = errors.New("invalid branch switch")

	// ErrBrokenChain indicates a parent pointer whose target is missing.
	// This cannot happen through normal API use; it means the store's
	// invariants were violated externally and is treated as fatal.
	ErrBrokenChain = errors.New("broken parent chain")

	// ErrValidation indicates invalid caller input (bad sender, empty text,
	// malformed id).
	ErrValidation = errors.New("validation failed")
)

// Caller-input error types. These carry the offending id/position so the UI
// can point at what was wrong.
type (
	// NotFoundError indicates a lookup for an id the store does not contain.
	NotFoundError struct {
		TurnID string
	}

	// DuplicateIDError indicates an insert that reused an existing id.
	DuplicateIDError struct {
		TurnID string
	}

	// DanglingParentError indicates an insert referencing a missing parent.
	DanglingParentError struct {
		TurnID   string
		ParentID string
	}

	// UnknownParentError indicates a mutation against a missing turn.
	UnknownParentError struct {
		ParentID string
	}

	// InvalidSwitchError indicates a malformed branch-switch request.
	InvalidSwitchError struct {
		Position int
		TurnID   string
		Reason   string
	}

	// BrokenChainError indicates a consistency fault while walking parents.
	// Not user-recoverable; the engine does not attempt repair.
	BrokenChainError struct {
		TurnID   string
		ParentID string
	}
)

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found", e.TurnID)
}

func (e *DuplicateIDError) Error() string {
	return fmt.Sprintf("turn %s already exists", e.TurnID)
}

func (e *DanglingParentError) Error() string {
	return fmt.Sprintf("turn %s references missing parent %s", e.TurnID, e.ParentID)
}

func (e *UnknownParentError) Error() string {
	return fmt.Sprintf("parent turn %s does not exist", e.ParentID)
}

func (e *InvalidSwitchError) Error() string {
	return fmt.Sprintf("cannot switch to %s at position %d: %s", e.TurnID, e.Position, e.Reason)
}

func (e *BrokenChainError) Error() string {
	return fmt.Sprintf("turn %s has parent %s which is missing from the store", e.TurnID, e.ParentID)
}

// StatusCode implementations (HTTPError interface)
func (e *NotFoundError) StatusCode() int       { return http.StatusNotFound }
func (e *DuplicateIDError) StatusCode() int    { return http.StatusConflict }
func (e *DanglingParentError) StatusCode() int { return http.StatusUnprocessableEntity }
func (e *UnknownParentError) StatusCode() int  { return http.StatusNotFound }
func (e *InvalidSwitchError) StatusCode() int  { return http.StatusBadRequest }
func (e *BrokenChainError) StatusCode() int    { return http.StatusInternalServerError }

// Is hooks so errors.Is() matches the sentinels
func (e *NotFoundError) Is(target error) bool       { return target == ErrNotFound }
func (e *DuplicateIDError) Is(target error) bool    { return target == ErrDuplicateID }
func (e *DanglingParentError) Is(target error) bool { return target == ErrDanglingParent }
func (e *UnknownParentError) Is(target error) bool  { return target == ErrUnknownParent }
func (e *InvalidSwitchError) Is(target error) bool  { return target == ErrInvalidSwitch }
func (e *BrokenChainError) Is(target error) bool    { return target == ErrBrokenChain }
