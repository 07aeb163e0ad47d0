// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"bytes"
	"fmt"
	"html"
	"os"
	"path/filepath"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/mdconvert/pkg/types"
)

// OutputOptions controls how a successful outcome is rendered.
type OutputOptions struct {
	// Frontmatter prepends a YAML header describing the conversion.
	Frontmatter bool

	// HTML renders the Markdown into a standalone HTML page.
	HTML bool
}

// frontmatter is the YAML header written above converted Markdown.
type frontmatter struct {
	Source      string   `yaml:"source"`
	Engine      string   `yaml:"engine"`
	Title       string   `yaml:"title,omitempty"`
	ConvertedAt string   `yaml:"converted_at"`
	Warnings    []string `yaml:"warnings,omitempty"`
}

var markdown = goldmark.New(goldmark.WithExtensions(extension.GFM))

// Render returns the bytes to write for a successful outcome.
func Render(req types.Request, out types.Outcome, o OutputOptions) ([]byte, error) {
	if !out.OK() {
		return nil, fmt.Errorf("nothing to write for failed request %s: %w", req.ID, out.Err)
	}
	if o.HTML {
		return renderHTML(out)
	}

	var b bytes.Buffer
	if o.Frontmatter {
		fm, err := yaml.Marshal(frontmatter{
			Source:      req.Source.Describe(),
			Engine:      out.Path,
			Title:       out.Title,
			ConvertedAt: time.Now().UTC().Format(time.RFC3339),
			Warnings:    out.Warnings,
		})
		if err != nil {
			return nil, fmt.Errorf("encoding frontmatter: %w", err)
		}
		b.WriteString("---\n")
		b.Write(fm)
		b.WriteString("---\n\n")
	}
	b.WriteString(out.Markdown)
	return b.Bytes(), nil
}

func renderHTML(out types.Outcome) ([]byte, error) {
	var body bytes.Buffer
	if err := markdown.Convert([]byte(out.Markdown), &body); err != nil {
		return nil, fmt.Errorf("rendering HTML: %w", err)
	}
	title := out.Title
	if title == "" {
		title = "Converted document"
	}
	var b bytes.Buffer
	fmt.Fprintf(&b, "<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n<title>%s</title>\n</head>\n<body>\n", html.EscapeString(title))
	b.Write(body.Bytes())
	b.WriteString("</body>\n</html>\n")
	return b.Bytes(), nil
}

// WriteOutput renders out and writes it to path. The file is replaced
// atomically, so a failed write leaves any previous content intact.
func WriteOutput(path string, req types.Request, out types.Outcome, o OutputOptions) error {
	data, err := Render(req, out, o)
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, ".mdconvert-*")
	if err != nil {
		return fmt.Errorf("creating temp file in %s: %w", dir, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		return fmt.Errorf("setting mode on %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replacing %s: %w", path, err)
	}
	return nil
}
