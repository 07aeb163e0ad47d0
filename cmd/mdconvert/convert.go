// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/pdiddy/mdconvert/internal/controller"
	"github.com/pdiddy/mdconvert/internal/convert"
	"github.com/pdiddy/mdconvert/internal/docintel"
	"github.com/pdiddy/mdconvert/internal/history"
	"github.com/pdiddy/mdconvert/pkg/types"
)

var errCancelled = errors.New("conversion cancelled")

// buildConverter and notifySignals are replaced in tests.
var (
	buildConverter = func(cmd *cobra.Command, opts types.OptionSet) (controller.Converter, error) {
		return newAdapter(cmd, opts)
	}
	notifySignals = func(c chan<- os.Signal) {
		signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	}
)

var convertCmd = &cobra.Command{
	Use:   "convert <file|->",
	Short: "Convert a document to Markdown",
	Long: `Convert turns one document into Markdown. Use "-" to read the document
from standard input; give --extension or --mime-type so the format can be
recognised.

Only the option flags you set are passed to the engine; everything else
keeps the engine's own defaults. Press Ctrl-C to cancel.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runConvert(cmd, args[0])
	},
}

func init() {
	addConvertFlags(convertCmd)
	rootCmd.AddCommand(convertCmd)
}

func addConvertFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringP("extension", "x", "", "file extension hint, e.g. .pdf")
	f.StringP("mime-type", "m", "", "MIME type hint, e.g. application/pdf")
	f.StringP("charset", "c", "", "text encoding hint, e.g. utf-8")
	f.StringP("docintel-endpoint", "e", "", "Azure Document Intelligence endpoint URL")
	f.BoolP("use-plugins", "p", false, "enable third-party markitdown plugins")
	f.Bool("keep-data-uris", false, "keep base64 data URIs in the output")
	f.StringP("output", "o", "", "write the result to this file instead of stdout")
	f.Bool("frontmatter", false, "prepend YAML frontmatter describing the conversion")
	f.Bool("html", false, "render the result as a standalone HTML page")
	f.String("engine", "", "engine: auto, markitdown, container, native (default from config)")
	f.Bool("no-history", false, "do not record this conversion in the history")
}

// optionsFromFlags builds an Option Set from the flags the user set.
// Unset flags stay absent so engine defaults apply.
func optionsFromFlags(cmd *cobra.Command) types.OptionSet {
	f := cmd.Flags()
	var opts []types.Option

	strOpts := []struct {
		flag string
		with func(string) types.Option
	}{
		{"extension", types.WithExtension},
		{"mime-type", types.WithMIMEType},
		{"charset", types.WithCharset},
		{"docintel-endpoint", types.WithDocIntelEndpoint},
	}
	for _, o := range strOpts {
		if f.Changed(o.flag) {
			v, _ := f.GetString(o.flag)
			opts = append(opts, o.with(v))
		}
	}

	boolOpts := []struct {
		flag string
		with func(bool) types.Option
	}{
		{"use-plugins", types.WithPlugins},
		{"keep-data-uris", types.WithKeepDataURIs},
	}
	for _, o := range boolOpts {
		if f.Changed(o.flag) {
			v, _ := f.GetBool(o.flag)
			opts = append(opts, o.with(v))
		}
	}
	return types.NewOptionSet(opts...)
}

// newAdapter wires the engines selected by configuration. The Document
// Intelligence client is used only when a key is configured; otherwise the
// standard engine receives the endpoint.
func newAdapter(cmd *cobra.Command, opts types.OptionSet) (*convert.Adapter, error) {
	ec := cfg.Engine
	if cmd.Flags().Changed("engine") {
		v, _ := cmd.Flags().GetString("engine")
		ec.Backend = types.EngineBackend(v)
	}

	if ec.Backend == types.BackendNative && opts.PluginsEnabled() {
		return nil, types.NewError(types.KindPlugin, "plugins require the markitdown engine; use --engine auto, markitdown or container", nil)
	}

	var adapterOpts []convert.Option
	adapterOpts = append(adapterOpts, convert.WithLogger(logger))
	if cfg.DocIntel.APIKey != "" {
		adapterOpts = append(adapterOpts, convert.WithDocIntel(
			docintel.NewClient(cfg.DocIntel, docintel.WithLogger(logger))))
	}

	std, err := buildStandard(ec, logger)
	if err != nil {
		if _, viaDocIntel := opts.DocIntelEndpoint(); viaDocIntel && cfg.DocIntel.APIKey != "" {
			logger.Warn().Err(err).Msg("standard engine unavailable")
			return convert.New(nil, adapterOpts...), nil
		}
		return nil, err
	}
	return convert.New(std, adapterOpts...), nil
}

func runConvert(cmd *cobra.Command, arg string) error {
	opts := optionsFromFlags(cmd)
	conv, err := buildConverter(cmd, opts)
	if err != nil {
		return err
	}

	src := types.FileSource(arg)
	if arg == "-" {
		src = types.StreamSource(cmd.InOrStdin(), "stdin")
	}

	var store *history.Store
	if noHistory, _ := cmd.Flags().GetBool("no-history"); !noHistory {
		store, err = history.NewStore(cfg.History)
		if err != nil {
			logger.Warn().Err(err).Msg("history disabled")
			store = nil
		} else {
			defer store.Close()
		}
	}

	ctrl := controller.New(conv, controller.WithLogger(logger))
	defer ctrl.Close()

	submitted := time.Now()
	id, err := ctrl.Submit(src, opts)
	if err != nil {
		return err
	}
	req := types.Request{ID: id, Source: src, Options: opts, SubmittedAt: submitted}

	ctx := context.Background()
	if store != nil && !src.IsStream() {
		if err := store.AddRecent(ctx, src.Path); err != nil {
			logger.Warn().Err(err).Msg("could not update recent files")
		}
	}

	sigCh := make(chan os.Signal, 1)
	notifySignals(sigCh)
	defer signal.Stop(sigCh)

	stderr := cmd.ErrOrStderr()
	sp := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	sp.Writer = stderr
	sp.Suffix = " Starting..."
	sp.Start()
	defer sp.Stop()

	for {
		select {
		case ev, ok := <-ctrl.Events():
			if !ok {
				return errCancelled
			}
			if ev.Stage != controller.StageDone {
				sp.Lock()
				sp.Suffix = " " + ev.Status
				sp.Unlock()
				continue
			}
			sp.Stop()
			record(ctx, store, req, *ev.Outcome, types.StateDelivered)
			return finish(cmd, req, *ev.Outcome, ev.Status)

		case <-sigCh:
			sp.Stop()
			if ctrl.Cancel(id) {
				record(ctx, store, req, types.Outcome{}, types.StateAbandoned)
				color.New(color.FgYellow).Fprintln(stderr, "⚠ Conversion cancelled")
				return errCancelled
			}
		}
	}
}

func record(ctx context.Context, store *history.Store, req types.Request, out types.Outcome, state types.RequestState) {
	if store == nil {
		return
	}
	if err := store.Record(ctx, history.NewEntry(req, out, state)); err != nil {
		logger.Warn().Err(err).Msg("could not record conversion")
	}
}

// finish writes a successful outcome or returns its error.
func finish(cmd *cobra.Command, req types.Request, out types.Outcome, status string) error {
	if !out.OK() {
		return out.Err
	}

	stderr := cmd.ErrOrStderr()
	warn := color.New(color.FgYellow)
	for _, w := range out.Warnings {
		warn.Fprintf(stderr, "⚠ %s\n", w)
	}

	f := cmd.Flags()
	frontmatter, _ := f.GetBool("frontmatter")
	asHTML, _ := f.GetBool("html")
	outOpts := convert.OutputOptions{Frontmatter: frontmatter, HTML: asHTML}

	if path, _ := f.GetString("output"); path != "" {
		if err := convert.WriteOutput(path, req, out, outOpts); err != nil {
			return err
		}
		color.New(color.FgGreen).Fprintf(stderr, "✓ %s → %s (%s)\n", req.Source.Describe(), path, out.Path)
	} else {
		data, err := convert.Render(req, out, outOpts)
		if err != nil {
			return err
		}
		if _, err := cmd.OutOrStdout().Write(data); err != nil {
			return fmt.Errorf("writing output: %w", err)
		}
	}
	fmt.Fprintln(stderr, status)
	return nil
}

// printError reports a failure as "<Kind>: <message>" in red.
func printError(err error) {
	color.New(color.FgRed).Fprintf(os.Stderr, "✗ %v\n", err)
}
