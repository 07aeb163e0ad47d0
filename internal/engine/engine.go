// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package engine implements the external conversion capability: the
// markitdown binary, the markitdown container image, and a native Go engine
// for the formats that need no external tooling.
package engine

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// External parameter names understood by engines.
const (
	ParamExtension        = "extension"
	ParamMIMEType         = "mimetype"
	ParamCharset          = "charset"
	ParamDocIntelEndpoint = "docintel_endpoint"
	ParamEnablePlugins    = "enable_plugins"
	ParamKeepDataURIs     = "keep_data_uris"
)

// Params carries the external parameters for one conversion. Only
// parameters the caller chose are present; an engine uses its own default
// for anything missing.
type Params map[string]string

// Get returns the value of name and whether it is present.
func (p Params) Get(name string) (string, bool) {
	v, ok := p[name]
	return v, ok
}

// Bool reports whether name is present and set to "true".
func (p Params) Bool(name string) bool {
	return p[name] == "true"
}

// Input is the document handed to an engine.
type Input struct {
	// Path is a local file. When empty, Stream is read instead.
	Path   string
	Stream io.Reader
	// Name labels a stream for diagnostics.
	Name string
}

// Open returns a reader over the document. The caller closes it.
func (in Input) Open() (io.ReadCloser, error) {
	if in.Path != "" {
		f, err := os.Open(in.Path)
		if err != nil {
			return nil, fmt.Errorf("opening %s: %w", in.Path, err)
		}
		return f, nil
	}
	if in.Stream == nil {
		return nil, fmt.Errorf("input has neither a path nor a stream")
	}
	return io.NopCloser(in.Stream), nil
}

// ReadAll returns the full document bytes.
func (in Input) ReadAll() ([]byte, error) {
	rc, err := in.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", in.label(), err)
	}
	return data, nil
}

func (in Input) label() string {
	if in.Path != "" {
		return in.Path
	}
	if in.Name != "" {
		return in.Name
	}
	return "stream"
}

// Result is what an engine returns on success.
type Result struct {
	Markdown string
	Title    string

	// Engine names the engine that produced the result, e.g. "markitdown (cli)".
	Engine string

	// Warnings holds non-fatal diagnostics.
	Warnings []string

	// Errors holds error lines the engine reported without failing.
	Errors []string
}

// Engine converts a document to Markdown.
type Engine interface {
	// Name identifies the engine in status lines and history.
	Name() string

	// Convert converts in using p. Classified failures are returned as
	// *types.ConversionError.
	Convert(ctx context.Context, in Input, p Params) (*Result, error)
}

// mimeExtensions maps MIME hints to the extension used for routing.
var mimeExtensions = map[string]string{
	"text/html":             ".html",
	"application/xhtml+xml": ".html",
	"text/plain":            ".txt",
	"text/markdown":         ".md",
	"text/x-markdown":       ".md",
	"text/csv":              ".csv",
	"application/pdf":       ".pdf",
	"application/json":      ".json",
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document":   ".docx",
	"application/vnd.openxmlformats-officedocument.presentationml.presentation": ".pptx",
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":         ".xlsx",
}

// Extension resolves the effective extension for in: the extension hint
// first, then the MIME hint, then the path. The result is lower case with a
// leading dot, or "" when nothing is known.
func Extension(in Input, p Params) string {
	if ext, ok := p.Get(ParamExtension); ok && ext != "" {
		return normalizeExt(ext)
	}
	if mime, ok := p.Get(ParamMIMEType); ok {
		base := strings.TrimSpace(strings.SplitN(mime, ";", 2)[0])
		if ext, ok := mimeExtensions[strings.ToLower(base)]; ok {
			return ext
		}
	}
	if in.Path != "" {
		return normalizeExt(filepath.Ext(in.Path))
	}
	if in.Name != "" {
		return normalizeExt(filepath.Ext(in.Name))
	}
	return ""
}

func normalizeExt(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext == "" {
		return ""
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}
