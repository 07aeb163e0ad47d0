// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/mdconvert/internal/docintel"
	"github.com/pdiddy/mdconvert/internal/engine"
	"github.com/pdiddy/mdconvert/pkg/types"
)

// fakeEngine records its calls and replies with canned output or an error.
type fakeEngine struct {
	name     string
	output   string
	title    string
	warnings []string
	err      error
	panicVal any

	calls     int
	gotParams engine.Params
	gotInput  engine.Input
}

func (f *fakeEngine) Name() string { return f.name }

func (f *fakeEngine) Convert(ctx context.Context, in engine.Input, p engine.Params) (*engine.Result, error) {
	f.calls++
	f.gotInput, f.gotParams = in, p
	if f.panicVal != nil {
		panic(f.panicVal)
	}
	if f.err != nil {
		return nil, f.err
	}
	return &engine.Result{Markdown: f.output, Title: f.title, Engine: f.name, Warnings: f.warnings}, nil
}

func writeDoc(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestAdapter_DefaultsPreserved(t *testing.T) {
	std := &fakeEngine{name: "markitdown (cli)", output: "# Doc\n"}
	a := New(std)

	out := a.Convert(context.Background(), types.FileSource(writeDoc(t, "a.pdf", "x")), types.NewOptionSet())
	require.True(t, out.OK(), "unexpected failure: %v", out.Err)

	assert.Equal(t, 1, std.calls)
	assert.NotNil(t, std.gotParams)
	assert.Empty(t, std.gotParams)
	assert.Equal(t, "# Doc\n", out.Markdown)
	assert.Equal(t, "markitdown (cli)", out.Path)
}

func TestParams(t *testing.T) {
	tests := []struct {
		name string
		opts types.OptionSet
		want engine.Params
	}{
		{"empty", types.NewOptionSet(), engine.Params{}},
		{
			"every field",
			types.NewOptionSet(
				types.WithExtension("PDF"),
				types.WithMIMEType("application/pdf"),
				types.WithCharset("utf-8"),
				types.WithDocIntelEndpoint("https://di.example.com"),
				types.WithPlugins(true),
				types.WithKeepDataURIs(true),
			),
			engine.Params{
				engine.ParamExtension:        ".pdf",
				engine.ParamMIMEType:         "application/pdf",
				engine.ParamCharset:          "utf-8",
				engine.ParamDocIntelEndpoint: "https://di.example.com",
				engine.ParamEnablePlugins:    "true",
				engine.ParamKeepDataURIs:     "true",
			},
		},
		{
			"explicit false is present",
			types.NewOptionSet(types.WithPlugins(false)),
			engine.Params{engine.ParamEnablePlugins: "false"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Params(tt.opts))
		})
	}
}

func TestAdapter_SourceErrors(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name string
		src  types.Source
	}{
		{"nonexistent path", types.FileSource(filepath.Join(dir, "missing.pdf"))},
		{"blank path", types.FileSource("   ")},
		{"directory", types.FileSource(dir)},
		{"nothing selected", types.Source{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			std := &fakeEngine{name: "std", output: "x"}
			out := New(std).Convert(context.Background(), tt.src, types.NewOptionSet())

			require.False(t, out.OK())
			assert.Equal(t, types.KindInput, out.Kind())
			assert.NotEmpty(t, out.Err.Message)
			assert.Zero(t, std.calls)
		})
	}
}

func TestAdapter_InvalidOptions(t *testing.T) {
	std := &fakeEngine{name: "std", output: "x"}
	opts := types.NewOptionSet(types.WithDocIntelEndpoint("not a url"), types.WithCharset("klingon"))

	out := New(std).Convert(context.Background(), types.FileSource(writeDoc(t, "a.pdf", "x")), opts)
	require.False(t, out.OK())
	assert.Equal(t, types.KindInput, out.Kind())
	assert.Contains(t, out.Err.Message, "invalid options")
	assert.Zero(t, std.calls)
}

func TestAdapter_Routing(t *testing.T) {
	path := writeDoc(t, "scan.pdf", "x")
	withEndpoint := types.NewOptionSet(types.WithDocIntelEndpoint("https://di.example.com"))

	t.Run("document intelligence engine configured", func(t *testing.T) {
		std := &fakeEngine{name: "markitdown (cli)", output: "std"}
		di := &fakeEngine{name: "document-intelligence (prebuilt-layout)", output: "di"}
		out := New(std, WithDocIntel(di)).Convert(context.Background(), types.FileSource(path), withEndpoint)

		require.True(t, out.OK())
		assert.Equal(t, "document-intelligence (prebuilt-layout)", out.Path)
		assert.Zero(t, std.calls)
		assert.Equal(t, "https://di.example.com", di.gotParams[engine.ParamDocIntelEndpoint])
	})

	t.Run("standard engine handles the endpoint", func(t *testing.T) {
		std := &fakeEngine{name: "markitdown (cli)", output: "std"}
		out := New(std).Convert(context.Background(), types.FileSource(path), withEndpoint)

		require.True(t, out.OK())
		assert.Equal(t, "https://di.example.com", std.gotParams[engine.ParamDocIntelEndpoint])
	})

	t.Run("registry sends endpoint past the native engine", func(t *testing.T) {
		cli := &fakeEngine{name: "markitdown (cli)", output: "std"}
		reg := engine.NewRegistry(cli)
		native := engine.NewNative()
		reg.Register(native, native.Extensions()...)

		page := writeDoc(t, "page.html", "<h1>Page</h1>")
		out := New(reg).Convert(context.Background(), types.FileSource(page), withEndpoint)

		require.True(t, out.OK(), "unexpected failure: %v", out.Err)
		assert.Equal(t, 1, cli.calls)
		assert.Equal(t, "https://di.example.com", cli.gotParams[engine.ParamDocIntelEndpoint])
	})

	t.Run("no endpoint uses standard engine", func(t *testing.T) {
		std := &fakeEngine{name: "markitdown (cli)", output: "std"}
		di := &fakeEngine{name: "di", output: "di"}
		out := New(std, WithDocIntel(di)).Convert(context.Background(), types.FileSource(path), types.NewOptionSet())

		require.True(t, out.OK())
		assert.Zero(t, di.calls)
	})
}

func TestAdapter_DocIntelUnreachable(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	endpoint := ts.URL
	ts.Close()

	di := docintel.NewClient(types.DocIntelConfig{MaxRetries: 1})
	a := New(&fakeEngine{name: "std", output: "x"}, WithDocIntel(di))

	out := a.Convert(context.Background(), types.FileSource(writeDoc(t, "scan.pdf", "%PDF")),
		types.NewOptionSet(types.WithDocIntelEndpoint(endpoint)))
	require.False(t, out.OK())
	assert.Equal(t, types.KindNetwork, out.Kind())
	assert.NotEmpty(t, out.Err.Message)
}

func TestAdapter_EngineFailures(t *testing.T) {
	tests := []struct {
		name string
		eng  *fakeEngine
		want types.ErrorKind
	}{
		{"classified error keeps kind", &fakeEngine{err: types.NewError(types.KindPlugin, "plugin exploded", nil)}, types.KindPlugin},
		{"panic", &fakeEngine{panicVal: "nil map"}, types.KindUnknown},
		{"empty output", &fakeEngine{output: "  \n"}, types.KindCorruptInput},
		{"plain error", &fakeEngine{err: errors.New("boom")}, types.KindUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.eng.name = "std"
			out := New(tt.eng).Convert(context.Background(), types.StreamSource(strings.NewReader("x"), "stdin"), types.NewOptionSet())

			require.False(t, out.OK())
			assert.Equal(t, tt.want, out.Kind())
			assert.NotEmpty(t, out.Err.Message)
			assert.True(t, out.Kind().Valid())
		})
	}
}

func TestAdapter_SuccessCarriesDetails(t *testing.T) {
	std := &fakeEngine{name: "native", output: "# T\n", title: "T", warnings: []string{"UserWarning: x"}}
	out := New(std).Convert(context.Background(), types.StreamSource(strings.NewReader("<h1>T</h1>"), "stdin"),
		types.NewOptionSet(types.WithExtension("html")))

	require.True(t, out.OK())
	assert.Equal(t, "T", out.Title)
	assert.Equal(t, []string{"UserWarning: x"}, out.Warnings)
	assert.Equal(t, "stdin", std.gotInput.Name)
	assert.Positive(t, out.Duration)
}

func TestAdapter_NoEngine(t *testing.T) {
	out := New(nil).Convert(context.Background(), types.StreamSource(strings.NewReader("x"), "stdin"), types.NewOptionSet())
	assert.Equal(t, types.KindUnsupportedFormat, out.Kind())
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want types.ErrorKind
	}{
		{"typed", types.NewError(types.KindCorruptInput, "bad xref", nil), types.KindCorruptInput},
		{"wrapped typed", fmt.Errorf("engine: %w", types.NewError(types.KindNetwork, "down", nil)), types.KindNetwork},
		{"not exist", fmt.Errorf("opening: %w", os.ErrNotExist), types.KindInput},
		{"permission", &os.PathError{Op: "open", Path: "/x", Err: syscall.EACCES}, types.KindInput},
		{"refused", fmt.Errorf("dial: %w", syscall.ECONNREFUSED), types.KindNetwork},
		{"dns", &net.DNSError{Err: "no such host", Name: "di.example"}, types.KindNetwork},
		{"unsupported text", errors.New("format not supported"), types.KindUnsupportedFormat},
		{"corrupt text", errors.New("file is corrupt"), types.KindCorruptInput},
		{"plugin text", errors.New("plugin load failed"), types.KindPlugin},
		{"cancelled", context.Canceled, types.KindUnknown},
		{"other", errors.New("something odd"), types.KindUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ce := Classify(tt.err)
			require.NotNil(t, ce)
			assert.Equal(t, tt.want, ce.Kind)
			assert.NotEmpty(t, ce.Message)
		})
	}

	assert.Nil(t, Classify(nil))
	assert.Equal(t, "conversion failed (PluginError)", Classify(types.NewError(types.KindPlugin, "", nil)).Message)
	assert.Equal(t, types.KindUnknown, Classify(types.NewError("Bogus", "x", nil)).Kind)

	wrapped := Classify(fmt.Errorf("converting scan.pdf: %w", types.NewError(types.KindNetwork, "service unavailable", nil)))
	assert.Equal(t, types.KindNetwork, wrapped.Kind)
	assert.Equal(t, "converting scan.pdf: service unavailable", wrapped.Message)

	direct := types.NewError(types.KindCorruptInput, "bad xref", nil)
	assert.Same(t, direct, Classify(direct))
}
