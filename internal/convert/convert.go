// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package convert turns a source and an option snapshot into exactly one
// Outcome. It validates the source, maps options onto engine parameters,
// picks the conversion path and classifies every failure.
package convert

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime/debug"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/pdiddy/mdconvert/internal/engine"
	"github.com/pdiddy/mdconvert/pkg/types"
)

// Adapter converts documents through a standard engine and, when one is
// configured, a Document Intelligence engine. It holds no per-request state
// and is safe for concurrent use.
type Adapter struct {
	standard engine.Engine
	docIntel engine.Engine
	log      zerolog.Logger
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithDocIntel routes conversions that name an endpoint to e.
func WithDocIntel(e engine.Engine) Option {
	return func(a *Adapter) { a.docIntel = e }
}

// WithLogger sets the adapter's logger.
func WithLogger(log zerolog.Logger) Option {
	return func(a *Adapter) { a.log = log }
}

// New returns an Adapter that sends ordinary conversions to standard.
func New(standard engine.Engine, opts ...Option) *Adapter {
	a := &Adapter{standard: standard, log: zerolog.Nop()}
	for _, o := range opts {
		o(a)
	}
	return a
}

// paramTable maps each Option Set field to its external parameter name.
// A field contributes only when present.
var paramTable = []struct {
	name string
	get  func(types.OptionSet) (string, bool)
}{
	{engine.ParamExtension, types.OptionSet.Extension},
	{engine.ParamMIMEType, types.OptionSet.MIMEType},
	{engine.ParamCharset, types.OptionSet.Charset},
	{engine.ParamDocIntelEndpoint, types.OptionSet.DocIntelEndpoint},
	{engine.ParamEnablePlugins, boolField(types.OptionSet.Plugins)},
	{engine.ParamKeepDataURIs, boolField(types.OptionSet.KeepDataURIs)},
}

func boolField(get func(types.OptionSet) (bool, bool)) func(types.OptionSet) (string, bool) {
	return func(o types.OptionSet) (string, bool) {
		v, ok := get(o)
		return strconv.FormatBool(v), ok
	}
}

// Params returns the engine parameters for o. An empty Option Set yields an
// empty, non-nil map.
func Params(o types.OptionSet) engine.Params {
	p := engine.Params{}
	for _, row := range paramTable {
		if v, ok := row.get(o); ok {
			p[row.name] = v
		}
	}
	return p
}

// Route returns the engine that would handle a conversion with o.
func (a *Adapter) Route(o types.OptionSet) engine.Engine {
	if _, ok := o.DocIntelEndpoint(); ok && a.docIntel != nil {
		return a.docIntel
	}
	return a.standard
}

// Convert performs one conversion. It never returns a failure without a
// kind and message, and recovers engine panics as Unknown.
func (a *Adapter) Convert(ctx context.Context, src types.Source, opts types.OptionSet) (out types.Outcome) {
	start := time.Now()
	log := a.log.With().Str("source", src.Describe()).Logger()

	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Bytes("stack", debug.Stack()).Msg("engine panicked")
			out = types.Failure(types.KindUnknown, fmt.Sprintf("conversion engine crashed: %v", r))
		}
		out.Duration = time.Since(start)
	}()

	if err := CheckSource(src); err != nil {
		return failure(err)
	}
	if err := opts.Validate(); err != nil {
		return types.Failure(types.KindInput, "invalid options: "+err.Error())
	}

	eng := a.Route(opts)
	if eng == nil {
		return types.Failure(types.KindUnsupportedFormat, "no conversion engine is available")
	}
	params := Params(opts)
	log.Debug().Str("engine", eng.Name()).Bool("defaults", opts.IsEmpty()).Interface("params", params).Msg("converting")

	res, err := eng.Convert(ctx, engine.Input{Path: src.Path, Stream: src.Stream, Name: src.Name}, params)
	if err != nil {
		log.Debug().Err(err).Msg("conversion failed")
		return failure(err)
	}
	if res == nil || strings.TrimSpace(res.Markdown) == "" {
		return types.Failure(types.KindCorruptInput, "conversion produced no output")
	}

	path := res.Engine
	if path == "" {
		path = eng.Name()
	}
	out = types.Success(res.Markdown, path)
	out.Title = res.Title
	out.Warnings = res.Warnings
	out.Errors = res.Errors
	log.Debug().Int("chars", len(res.Markdown)).Str("path", path).Msg("converted")
	return out
}

// CheckSource reports why src cannot be converted, or nil.
func CheckSource(src types.Source) error {
	if src.IsStream() {
		return nil
	}
	if src.Path == "" {
		return types.NewError(types.KindInput, "no document selected", nil)
	}
	if strings.TrimSpace(src.Path) == "" {
		return types.NewError(types.KindInput, "document path is empty", nil)
	}

	info, err := os.Stat(src.Path)
	if err != nil {
		return sourceError(src.Path, err)
	}
	if info.IsDir() {
		return types.Errorf(types.KindInput, "%s is a directory, not a document", src.Path)
	}
	f, err := os.Open(src.Path)
	if err != nil {
		return sourceError(src.Path, err)
	}
	return f.Close()
}

func sourceError(path string, err error) error {
	switch {
	case errors.Is(err, os.ErrNotExist):
		return types.NewError(types.KindInput, "file not found: "+path, err)
	case errors.Is(err, os.ErrPermission):
		return types.NewError(types.KindInput, "permission denied: "+path, err)
	default:
		return types.NewError(types.KindInput, fmt.Sprintf("cannot read %s: %v", path, err), err)
	}
}

func failure(err error) types.Outcome {
	return types.Outcome{Err: Classify(err)}
}
