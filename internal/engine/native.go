// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package engine

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"regexp"
	"slices"
	"strings"
	"unicode/utf8"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
	"golang.org/x/net/html/charset"
	"golang.org/x/text/encoding/htmlindex"

	"github.com/pdiddy/mdconvert/pkg/types"
)

// Native converts HTML, plain text, Markdown and CSV in-process.
type Native struct {
	html *md.Converter
}

// NewNative returns the in-process engine.
func NewNative() *Native {
	return &Native{html: md.NewConverter("", true, nil)}
}

func (n *Native) Name() string { return "native" }

var (
	htmlExts = []string{".html", ".htm", ".xhtml"}
	textExts = []string{".txt", ".text", ".md", ".markdown", ".json"}
	csvExts  = []string{".csv"}
)

// Extensions lists the extensions the native engine converts.
func (n *Native) Extensions() []string {
	exts := make([]string, 0, len(htmlExts)+len(textExts)+len(csvExts))
	exts = append(exts, htmlExts...)
	exts = append(exts, textExts...)
	return append(exts, csvExts...)
}

func (n *Native) Convert(ctx context.Context, in Input, p Params) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if _, ok := p.Get(ParamDocIntelEndpoint); ok {
		return nil, types.NewError(types.KindUnsupportedFormat, "the native engine cannot use Document Intelligence", nil)
	}

	ext := Extension(in, p)
	kind := ""
	switch {
	case slices.Contains(htmlExts, ext):
		kind = "html"
	case slices.Contains(textExts, ext):
		kind = "text"
	case slices.Contains(csvExts, ext):
		kind = "csv"
	default:
		if ext == "" {
			return nil, types.NewError(types.KindUnsupportedFormat, "cannot determine the document format; set an extension or MIME hint", nil)
		}
		return nil, types.Errorf(types.KindUnsupportedFormat, "native engine does not support %s files", ext)
	}

	data, err := in.ReadAll()
	if err != nil {
		return nil, types.Errorf(types.KindInput, "%w", err)
	}

	text, err := decode(data, p, kind == "html")
	if err != nil {
		return nil, err
	}

	res := &Result{Engine: n.Name()}
	switch kind {
	case "html":
		res.Markdown, res.Title, err = n.convertHTML(text)
		if err == nil && !p.Bool(ParamKeepDataURIs) {
			res.Markdown = TruncateDataURIs(res.Markdown)
		}
	case "text":
		res.Markdown = text
	case "csv":
		res.Markdown, err = csvToMarkdown(text)
	}
	if err != nil {
		return nil, err
	}
	return res, nil
}

// decode converts data to UTF-8. An explicit charset parameter wins; HTML
// is otherwise sniffed from its meta tags; text that is not valid UTF-8 is
// sniffed as well.
func decode(data []byte, p Params, isHTML bool) (string, error) {
	if name, ok := p.Get(ParamCharset); ok {
		enc, err := htmlindex.Get(name)
		if err != nil {
			return "", types.Errorf(types.KindInput, "unknown charset %q", name)
		}
		out, err := enc.NewDecoder().Bytes(data)
		if err != nil {
			return "", types.Errorf(types.KindCorruptInput, "decoding as %s: %w", name, err)
		}
		return string(out), nil
	}

	if !isHTML && utf8.Valid(data) {
		return string(data), nil
	}

	contentType := "text/plain"
	if isHTML {
		contentType = "text/html"
	}
	r, err := charset.NewReader(bytes.NewReader(data), contentType)
	if err != nil {
		return "", types.Errorf(types.KindCorruptInput, "detecting encoding: %w", err)
	}
	out, err := io.ReadAll(r)
	if err != nil {
		return "", types.Errorf(types.KindCorruptInput, "decoding document: %w", err)
	}
	return string(out), nil
}

func (n *Native) convertHTML(doc string) (markdown, title string, err error) {
	root, err := html.Parse(strings.NewReader(doc))
	if err != nil {
		return "", "", types.Errorf(types.KindCorruptInput, "parsing HTML: %w", err)
	}
	title = findTitle(root)

	markdown, err = n.html.ConvertString(doc)
	if err != nil {
		return "", "", types.Errorf(types.KindCorruptInput, "converting HTML: %w", err)
	}
	return strings.TrimSpace(markdown), title, nil
}

func findTitle(n *html.Node) string {
	if n.Type == html.ElementNode && n.DataAtom == atom.Title {
		var b strings.Builder
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.TextNode {
				b.WriteString(c.Data)
			}
		}
		return strings.TrimSpace(b.String())
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if t := findTitle(c); t != "" {
			return t
		}
	}
	return ""
}

var dataURIPattern = regexp.MustCompile(`(data:[\w.+-]+/[\w.+-]+(?:;[\w.+-]+=[\w.+-]+)*;base64),[A-Za-z0-9+/=]+`)

// TruncateDataURIs shortens base64 data URIs to "data:<mime>;base64...".
func TruncateDataURIs(s string) string {
	return dataURIPattern.ReplaceAllString(s, "${1}...")
}

// csvToMarkdown renders CSV as a Markdown table. The first record is the
// header; short rows are padded.
func csvToMarkdown(text string) (string, error) {
	r := csv.NewReader(strings.NewReader(text))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	records, err := r.ReadAll()
	if err != nil {
		var pe *csv.ParseError
		if errors.As(err, &pe) {
			return "", types.Errorf(types.KindCorruptInput, "parsing CSV line %d: %w", pe.Line, err)
		}
		return "", types.Errorf(types.KindCorruptInput, "parsing CSV: %w", err)
	}
	if len(records) == 0 {
		return "", nil
	}

	width := 0
	for _, rec := range records {
		width = max(width, len(rec))
	}

	var b strings.Builder
	writeRow := func(rec []string) {
		b.WriteString("|")
		for i := 0; i < width; i++ {
			cell := ""
			if i < len(rec) {
				cell = strings.ReplaceAll(strings.TrimSpace(rec[i]), "|", `\|`)
				cell = strings.ReplaceAll(cell, "\n", " ")
			}
			fmt.Fprintf(&b, " %s |", cell)
		}
		b.WriteString("\n")
	}

	writeRow(records[0])
	b.WriteString("|")
	for i := 0; i < width; i++ {
		b.WriteString(" --- |")
	}
	b.WriteString("\n")
	for _, rec := range records[1:] {
		writeRow(rec)
	}
	return b.String(), nil
}
