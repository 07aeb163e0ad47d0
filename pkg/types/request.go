// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"io"
	"path/filepath"
	"time"
)

// Source references the document to convert: either a file path or a byte
// stream. Path wins when both are set.
type Source struct {
	// Path is a local filesystem path.
	Path string

	// Stream supplies the document bytes when there is no path.
	Stream io.Reader

	// Name labels a stream in status lines and history (e.g. "stdin").
	Name string
}

// FileSource returns a Source for a local path.
func FileSource(path string) Source {
	return Source{Path: path}
}

// StreamSource returns a Source reading from r, labelled name.
func StreamSource(r io.Reader, name string) Source {
	return Source{Stream: r, Name: name}
}

// IsStream reports whether the source is a stream rather than a path.
func (s Source) IsStream() bool {
	return s.Path == "" && s.Stream != nil
}

// Describe returns a short label for the source.
func (s Source) Describe() string {
	switch {
	case s.Path != "":
		return filepath.Base(s.Path)
	case s.Name != "":
		return s.Name
	case s.Stream != nil:
		return "stream"
	default:
		return "(none)"
	}
}

// RequestState tracks a conversion request through the controller.
type RequestState string

const (
	StatePending   RequestState = "pending"
	StateRunning   RequestState = "running"
	StateDelivered RequestState = "delivered"
	StateAbandoned RequestState = "abandoned"
)

// IsTerminal reports whether no further transition can happen.
func (s RequestState) IsTerminal() bool {
	return s == StateDelivered || s == StateAbandoned
}

// Request pairs a source with the option snapshot taken at submission.
type Request struct {
	ID          string
	Source      Source
	Options     OptionSet
	SubmittedAt time.Time
}

// Outcome is the result of one conversion request. Exactly one of the
// success fields (Markdown, Path) or Err is meaningful; OK tells which.
type Outcome struct {
	RequestID string

	// Markdown is the full extracted text.
	Markdown string

	// Title is the document title when the engine reports one.
	Title string

	// Path describes the conversion path used, e.g. "markitdown (cli)".
	Path string

	// Warnings collects non-fatal diagnostics reported by the engine.
	Warnings []string

	// Errors collects error lines the engine reported on a successful run.
	Errors []string

	// Err is set on failure.
	Err *ConversionError

	Duration time.Duration
}

// Success builds a successful Outcome.
func Success(markdown, path string) Outcome {
	return Outcome{Markdown: markdown, Path: path}
}

// Failure builds a failed Outcome.
func Failure(kind ErrorKind, message string) Outcome {
	return Outcome{Err: NewError(kind, message, nil)}
}

// OK reports whether the conversion succeeded.
func (o Outcome) OK() bool {
	return o.Err == nil
}

// Kind returns the failure kind, or "" on success.
func (o Outcome) Kind() ErrorKind {
	if o.Err == nil {
		return ""
	}
	return o.Err.Kind
}
