// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types holds the data model shared by the conversion adapter, the
// invocation controller and the CLI.
package types

import (
	"errors"
	"net/url"
	"regexp"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"golang.org/x/text/encoding/htmlindex"
)

// optional is a value that may be absent. The zero value is absent.
type optional[T any] struct {
	value T
	set   bool
}

func some[T any](v T) optional[T] {
	return optional[T]{value: v, set: true}
}

func (o optional[T]) get() (T, bool) {
	return o.value, o.set
}

// OptionSet is an immutable snapshot of the conversion parameters chosen for
// one request. Every field is optional; an absent field leaves the engine's
// own default in place. Build one with NewOptionSet.
type OptionSet struct {
	extension        optional[string]
	mimeType         optional[string]
	charset          optional[string]
	docIntelEndpoint optional[string]
	plugins          optional[bool]
	keepDataURIs     optional[bool]
}

// Option sets one field of an OptionSet under construction.
type Option func(*OptionSet)

// NewOptionSet builds an OptionSet from the given options. Calling it with
// no options yields a set in which every field is absent.
func NewOptionSet(opts ...Option) OptionSet {
	var o OptionSet
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithExtension sets the file extension hint. The hint is lower-cased and
// given a leading dot (".pdf"). An empty hint is ignored.
func WithExtension(ext string) Option {
	return func(o *OptionSet) {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			return
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		o.extension = some(ext)
	}
}

// WithMIMEType sets the MIME type hint. An empty hint is ignored.
func WithMIMEType(mime string) Option {
	return func(o *OptionSet) {
		if mime = strings.TrimSpace(mime); mime != "" {
			o.mimeType = some(strings.ToLower(mime))
		}
	}
}

// WithCharset sets the text encoding hint. An empty hint is ignored.
func WithCharset(charset string) Option {
	return func(o *OptionSet) {
		if charset = strings.TrimSpace(charset); charset != "" {
			o.charset = some(charset)
		}
	}
}

// WithDocIntelEndpoint sets the Document Intelligence endpoint. Its presence
// routes the conversion through Document Intelligence. An empty endpoint is
// ignored.
func WithDocIntelEndpoint(endpoint string) Option {
	return func(o *OptionSet) {
		if endpoint = strings.TrimSpace(endpoint); endpoint != "" {
			o.docIntelEndpoint = some(endpoint)
		}
	}
}

// WithPlugins explicitly enables or disables third-party converter plugins.
func WithPlugins(enabled bool) Option {
	return func(o *OptionSet) { o.plugins = some(enabled) }
}

// WithKeepDataURIs explicitly keeps or truncates base64 data URIs in output.
func WithKeepDataURIs(keep bool) Option {
	return func(o *OptionSet) { o.keepDataURIs = some(keep) }
}

// Extension returns the extension hint and whether it is present.
func (o OptionSet) Extension() (string, bool) { return o.extension.get() }

// MIMEType returns the MIME type hint and whether it is present.
func (o OptionSet) MIMEType() (string, bool) { return o.mimeType.get() }

// Charset returns the charset hint and whether it is present.
func (o OptionSet) Charset() (string, bool) { return o.charset.get() }

// DocIntelEndpoint returns the Document Intelligence endpoint and whether it
// is present.
func (o OptionSet) DocIntelEndpoint() (string, bool) { return o.docIntelEndpoint.get() }

// Plugins returns the plugin toggle and whether it is present.
func (o OptionSet) Plugins() (bool, bool) { return o.plugins.get() }

// KeepDataURIs returns the data URI toggle and whether it is present.
func (o OptionSet) KeepDataURIs() (bool, bool) { return o.keepDataURIs.get() }

// PluginsEnabled reports the effective plugin toggle (default false).
func (o OptionSet) PluginsEnabled() bool {
	v, _ := o.plugins.get()
	return v
}

// IsEmpty reports whether no field is present.
func (o OptionSet) IsEmpty() bool {
	return o == OptionSet{}
}

var mimePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9!#$&^_.+-]*/[a-z0-9][a-z0-9!#$&^_.+-]*(;.*)?$`)

// Validate checks the present fields. Absent fields are always valid.
func (o OptionSet) Validate() error {
	endpoint, _ := o.DocIntelEndpoint()
	mime, _ := o.MIMEType()
	charset, _ := o.Charset()

	return validation.Errors{
		"docintel_endpoint": validation.Validate(endpoint,
			is.URL,
			validation.By(httpScheme),
		),
		"mimetype": validation.Validate(mime,
			validation.Match(mimePattern).Error("must look like type/subtype"),
		),
		"charset": validation.Validate(charset,
			validation.By(knownCharset),
		),
	}.Filter()
}

func httpScheme(value interface{}) error {
	s, _ := value.(string)
	if s == "" {
		return nil
	}
	u, err := url.Parse(s)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return errors.New("must be an http or https URL")
	}
	if u.Host == "" {
		return errors.New("must include a host")
	}
	return nil
}

func knownCharset(value interface{}) error {
	s, _ := value.(string)
	if s == "" {
		return nil
	}
	if _, err := htmlindex.Get(s); err != nil {
		return errors.New("unknown character encoding")
	}
	return nil
}
