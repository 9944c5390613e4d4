package pipeline

import (
	"fmt"
	"strings"
)

// Stage names a pipeline stage
type Stage string

const (
	StageIngest    Stage = "ingest"
	StageClean     Stage = "clean"
	StageEnrich    Stage = "enrich"
	StageSummarize Stage = "summarize"
	StageRender    Stage = "render"
)

// ErrorKind classifies pipeline errors
type ErrorKind string

const (
	KindSourceNotFound         ErrorKind = "SOURCE_NOT_FOUND"
	KindMalformedSource        ErrorKind = "MALFORMED_SOURCE"
	KindUnknownColumnReference ErrorKind = "UNKNOWN_COLUMN_REFERENCE"
	KindUnknownColumn          ErrorKind = "UNKNOWN_COLUMN"
	KindInvalidRequest         ErrorKind = "INVALID_REQUEST"
	KindColumnConflict         ErrorKind = "COLUMN_CONFLICT"
	KindRenderFailed           ErrorKind = "RENDER_FAILED"
)

// Error is a typed pipeline error. Ref names the offending derivation or
// request when there is one.
type Error struct {
	Kind    ErrorKind
	Stage   Stage
	Column  string
	Ref     string
	Message string
	Cause   error
}

// Sentinels for errors.Is; they match any Error of the same kind.
var (
	ErrSourceNotFound         = &Error{Kind: KindSourceNotFound}
	ErrMalformedSource        = &Error{Kind: KindMalformedSource}
	ErrUnknownColumnReference = &Error{Kind: KindUnknownColumnReference}
	ErrUnknownColumn          = &Error{Kind: KindUnknownColumn}
	ErrInvalidRequest         = &Error{Kind: KindInvalidRequest}
	ErrColumnConflict         = &Error{Kind: KindColumnConflict}
	ErrRenderFailed           = &Error{Kind: KindRenderFailed}
)

func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s]", e.Kind)
	if e.Stage != "" {
		fmt.Fprintf(&b, " %s", e.Stage)
	}
	if e.Ref != "" {
		fmt.Fprintf(&b, " %q", e.Ref)
	}
	if e.Message != "" {
		fmt.Fprintf(&b, ": %s", e.Message)
	}
	if e.Column != "" {
		fmt.Fprintf(&b, " (column %q)", e.Column)
	}
	if e.Cause != nil {
		fmt.Fprintf(&b, ": %v", e.Cause)
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Cause }

// Is matches on kind so callers can test against the sentinels
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

func newError(kind ErrorKind, stage Stage, msg string, cause error) *Error {
	return &Error{Kind: kind, Stage: stage, Message: msg, Cause: cause}
}

func unknownColumn(stage Stage, ref, column string) *Error {
	kind := KindUnknownColumn
	if stage == StageEnrich {
		kind = KindUnknownColumnReference
	}
	return &Error{Kind: kind, Stage: stage, Ref: ref, Column: column, Message: "column not present"}
}

func invalidRequest(ref, format string, args ...interface{}) *Error {
	return &Error{Kind: KindInvalidRequest, Stage: StageSummarize, Ref: ref, Message: fmt.Sprintf(format, args...)}
}

// SummaryError collects the per-request failures of one Summarize call
type SummaryError struct {
	Failures []error
}

func (e *SummaryError) Error() string {
	msgs := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		msgs[i] = f.Error()
	}
	return fmt.Sprintf("%d summarize request(s) failed: %s", len(e.Failures), strings.Join(msgs, "; "))
}

func (e *SummaryError) Unwrap() []error { return e.Failures }
