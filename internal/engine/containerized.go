// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package engine

import (
	"bytes"
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/pdiddy/mdconvert/internal/container"
	"github.com/pdiddy/mdconvert/pkg/types"
)

// DefaultImage is the markitdown container image.
const DefaultImage = "markitdown:latest"

// Containerized converts documents by piping them through the markitdown
// container image on a docker or podman runtime.
type Containerized struct {
	runtime container.Runtime
	image   string
	log     zerolog.Logger
}

// NewContainerized returns an engine running image on rt. It fails when the
// image is not present locally.
func NewContainerized(rt container.Runtime, image string, log zerolog.Logger) (*Containerized, error) {
	if image == "" {
		image = DefaultImage
	}
	if err := rt.ImageExists(image); err != nil {
		return nil, fmt.Errorf("markitdown image not available in %s: %w", rt.Name(), err)
	}
	return &Containerized{runtime: rt, image: image, log: log}, nil
}

func (c *Containerized) Name() string {
	return fmt.Sprintf("markitdown (%s)", c.runtime.Name())
}

// Convert pipes the document into the container. The container cannot see
// the host path, so the extension hint is filled in from it when missing.
func (c *Containerized) Convert(ctx context.Context, in Input, p Params) (*Result, error) {
	rc, err := in.Open()
	if err != nil {
		return nil, types.Errorf(types.KindInput, "%w", err)
	}
	defer rc.Close()

	params := p
	if _, ok := p.Get(ParamExtension); !ok {
		if ext := Extension(in, p); ext != "" {
			params = make(Params, len(p)+1)
			for k, v := range p {
				params[k] = v
			}
			params[ParamExtension] = ext
		}
	}
	args := cliArgs(params)

	c.log.Debug().Str("runtime", c.runtime.Name()).Str("image", c.image).Strs("args", args).Msg("running markitdown container")

	var stdout, stderr bytes.Buffer
	if err := c.runtime.Run(ctx, c.image, args, rc, &stdout, &stderr); err != nil {
		return nil, commandError(ctx, "markitdown container", err, stderr.String())
	}

	diag := ScanDiagnostics(stderr.String())
	return &Result{
		Markdown: stdout.String(),
		Engine:   c.Name(),
		Warnings: diag.Warnings,
		Errors:   diag.Errors,
	}, nil
}
