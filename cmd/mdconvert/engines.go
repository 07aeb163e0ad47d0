// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/pdiddy/mdconvert/internal/container"
	"github.com/pdiddy/mdconvert/internal/engine"
	"github.com/pdiddy/mdconvert/pkg/types"
)

var enginesCmd = &cobra.Command{
	Use:   "engines",
	Short: "Report which conversion engines are available",
	RunE: func(cmd *cobra.Command, args []string) error {
		ok := color.New(color.FgGreen)
		bad := color.New(color.FgRed)
		report := func(name string, err error) {
			if err != nil {
				bad.Fprintf(os.Stdout, "✗ %-24s %v\n", name, err)
				return
			}
			ok.Fprintf(os.Stdout, "✓ %s\n", name)
		}

		native := engine.NewNative()
		report(fmt.Sprintf("%s %v", native.Name(), native.Extensions()), nil)

		_, err := engine.NewMarkitdown(cfg.Engine.MarkitdownBin)
		report("markitdown (cli)", err)

		_, err = newContainerEngine(cfg.Engine, logger)
		report("markitdown (container)", err)

		if cfg.DocIntel.APIKey == "" {
			report("document-intelligence", fmt.Errorf("no API key; markitdown handles --docintel-endpoint"))
		} else {
			report(fmt.Sprintf("document-intelligence (%s)", cfg.DocIntel.Model), nil)
		}

		std, err := buildStandard(cfg.Engine, logger)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "\nbackend %q uses %s\n", cfg.Engine.Backend, std.Name())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(enginesCmd)
}

func newContainerEngine(ec types.EngineConfig, log zerolog.Logger) (*engine.Containerized, error) {
	rt, err := container.DetectRuntime()
	if err != nil {
		return nil, err
	}
	return engine.NewContainerized(rt, ec.Image, log)
}

// buildStandard returns the standard engine for ec.Backend. The auto
// backend routes the native formats to the native engine and everything
// else to markitdown, preferring the binary over the container.
func buildStandard(ec types.EngineConfig, log zerolog.Logger) (engine.Engine, error) {
	switch ec.Backend {
	case types.BackendNative:
		return engine.NewNative(), nil
	case types.BackendMarkitdown:
		return engine.NewMarkitdown(ec.MarkitdownBin, engine.WithMarkitdownLogger(log))
	case types.BackendContainer:
		return newContainerEngine(ec, log)
	case types.BackendAuto, "":
		var fallback engine.Engine
		if m, err := engine.NewMarkitdown(ec.MarkitdownBin, engine.WithMarkitdownLogger(log)); err == nil {
			fallback = m
		} else if c, cerr := newContainerEngine(ec, log); cerr == nil {
			fallback = c
		} else {
			log.Debug().AnErr("markitdown", err).AnErr("container", cerr).Msg("no markitdown engine, native formats only")
		}
		native := engine.NewNative()
		reg := engine.NewRegistry(fallback)
		reg.Register(native, native.Extensions()...)
		return reg, nil
	default:
		return nil, types.Errorf(types.KindInput, "unknown engine %q (want auto, markitdown, container or native)", ec.Backend)
	}
}
