// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package engine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"

	"github.com/rs/zerolog"

	"github.com/pdiddy/mdconvert/pkg/types"
)

const defaultMarkitdownBin = "markitdown"

// commandRunner abstracts process execution for testing.
type commandRunner interface {
	LookPath(file string) (string, error)
	Run(ctx context.Context, name string, args []string, stdin io.Reader, stdout, stderr io.Writer) error
}

// osRunner is the production runner backed by os/exec. The process is
// killed when ctx is cancelled.
type osRunner struct{}

func (osRunner) LookPath(file string) (string, error) {
	return exec.LookPath(file)
}

func (osRunner) Run(ctx context.Context, name string, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdin = stdin
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	return cmd.Run()
}

// Markitdown converts documents by running the markitdown executable.
type Markitdown struct {
	bin    string
	runner commandRunner
	log    zerolog.Logger
}

// MarkitdownOption configures a Markitdown engine.
type MarkitdownOption func(*Markitdown)

// WithMarkitdownLogger sets the engine logger.
func WithMarkitdownLogger(log zerolog.Logger) MarkitdownOption {
	return func(m *Markitdown) { m.log = log }
}

func withRunner(r commandRunner) MarkitdownOption {
	return func(m *Markitdown) { m.runner = r }
}

// NewMarkitdown locates the markitdown executable (bin, or "markitdown" on
// PATH when bin is empty) and returns an engine that runs it.
func NewMarkitdown(bin string, opts ...MarkitdownOption) (*Markitdown, error) {
	m := &Markitdown{runner: osRunner{}, log: zerolog.Nop()}
	for _, opt := range opts {
		opt(m)
	}
	if bin == "" {
		bin = defaultMarkitdownBin
	}
	path, err := m.runner.LookPath(bin)
	if err != nil {
		return nil, fmt.Errorf("markitdown executable %q not found (install with `pip install 'markitdown[all]'`): %w", bin, err)
	}
	m.bin = path
	return m, nil
}

func (m *Markitdown) Name() string { return "markitdown (cli)" }

// Convert runs markitdown with the flags derived from p. A path input is
// passed as an argument; a stream is piped on stdin.
func (m *Markitdown) Convert(ctx context.Context, in Input, p Params) (*Result, error) {
	args := cliArgs(p)
	var stdin io.Reader
	if in.Path != "" {
		args = append(args, in.Path)
	} else {
		if in.Stream == nil {
			return nil, types.NewError(types.KindInput, "no input provided", nil)
		}
		stdin = in.Stream
	}

	m.log.Debug().Str("bin", m.bin).Strs("args", args).Msg("running markitdown")

	var stdout, stderr bytes.Buffer
	err := m.runner.Run(ctx, m.bin, args, stdin, &stdout, &stderr)
	if err != nil {
		return nil, commandError(ctx, "markitdown", err, stderr.String())
	}

	diag := ScanDiagnostics(stderr.String())
	return &Result{
		Markdown: stdout.String(),
		Engine:   m.Name(),
		Warnings: diag.Warnings,
		Errors:   diag.Errors,
	}, nil
}

// commandError turns a failed markitdown run into a classified error.
func commandError(ctx context.Context, what string, err error, stderr string) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%s interrupted: %w", what, ctxErr)
	}

	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) && stderr == "" {
		return types.Errorf(types.KindUnknown, "running %s: %w", what, err)
	}

	msg := lastMeaningfulLine(stderr)
	if msg == "" {
		msg = err.Error()
	}
	return types.NewError(ClassifyStderr(stderr), fmt.Sprintf("%s failed: %s", what, msg), err)
}
