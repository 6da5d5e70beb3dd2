package domain

import (
	"errors"
	"fmt"
)

// ErrorKind tags every failure the review workflow can return so callers can
// branch on it without inspecting messages.
type ErrorKind string

const (
	KindNoChanges       ErrorKind = "no_changes"
	KindForbidden       ErrorKind = "forbidden"
	KindCommentRequired ErrorKind = "comment_required"
	KindAlreadyReviewed ErrorKind = "already_reviewed"
	KindPersistence     ErrorKind = "persistence_error"
	KindApply           ErrorKind = "apply_error"
	KindTimeout         ErrorKind = "timeout"
	KindNotFound        ErrorKind = "not_found"
	KindUnauthenticated ErrorKind = "unauthenticated"
	KindInvalidInput    ErrorKind = "invalid_input"
)

var kindMessages = map[ErrorKind]string{
	KindNoChanges:       "no changes detected",
	KindForbidden:       "action not permitted for this account",
	KindCommentRequired: "a comment is required to reject an edit",
	KindAlreadyReviewed: "edit has already been reviewed",
	KindPersistence:     "failed to persist pending edit",
	KindApply:           "failed to apply approved edit",
	KindTimeout:         "operation timed out; outcome unknown",
	KindNotFound:        "record not found",
	KindUnauthenticated: "login required",
	KindInvalidInput:    "invalid input",
}

// Sentinels for errors.Is; they match any WorkflowError of the same kind.
var (
	ErrNoChanges       = &WorkflowError{Kind: KindNoChanges}
	ErrForbidden       = &WorkflowError{Kind: KindForbidden}
	ErrCommentRequired = &WorkflowError{Kind: KindCommentRequired}
	ErrAlreadyReviewed = &WorkflowError{Kind: KindAlreadyReviewed}
	ErrPersistence     = &WorkflowError{Kind: KindPersistence}
	ErrApply           = &WorkflowError{Kind: KindApply}
	ErrTimeout         = &WorkflowError{Kind: KindTimeout}
	ErrNotFound        = &WorkflowError{Kind: KindNotFound}
	ErrUnauthenticated = &WorkflowError{Kind: KindUnauthenticated}
	ErrInvalidInput    = &WorkflowError{Kind: KindInvalidInput}
)

// WorkflowError is the single error type crossing the workflow boundary.
type WorkflowError struct {
	Kind ErrorKind
	Op   string
	Err  error
}

// NewError tags err with kind for operation op.
func NewError(kind ErrorKind, op string, err error) *WorkflowError {
	return &WorkflowError{Kind: kind, Op: op, Err: err}
}

func (e *WorkflowError) Error() string {
	msg := kindMessages[e.Kind]
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *WorkflowError) Unwrap() error {
	return e.Err
}

// Is matches bare sentinels by kind.
func (e *WorkflowError) Is(target error) bool {
	t, ok := target.(*WorkflowError)
	if !ok {
		return false
	}
	return t.Op == "" && t.Err == nil && t.Kind == e.Kind
}

// KindOf extracts the kind of a workflow error, or "" for foreign errors.
func KindOf(err error) ErrorKind {
	var wfErr *WorkflowError
	if errors.As(err, &wfErr) {
		return wfErr.Kind
	}
	return ""
}
