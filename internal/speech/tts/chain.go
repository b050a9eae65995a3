package tts

import (
	"context"
	"errors"

	"go.uber.org/multierr"

	"github.com/oshokin/smart-cane/internal/logger"
	"github.com/oshokin/smart-cane/internal/speech"
)

// ErrNoRenderers is returned when a chain is built without renderers.
var ErrNoRenderers = errors.New("no speech renderers configured")

// Chain tries renderers in order until one succeeds.
type Chain struct {
	renderers []speech.Renderer
}

// NewChain creates a chain. At least one renderer is required.
func NewChain(renderers ...speech.Renderer) (*Chain, error) {
	if len(renderers) == 0 {
		return nil, ErrNoRenderers
	}

	return &Chain{renderers: renderers}, nil
}

// Render returns nil as soon as one renderer succeeds, otherwise the combined errors.
func (c *Chain) Render(ctx context.Context, text string) error {
	var errs error

	for i, r := range c.renderers {
		err := r.Render(ctx, text)
		if err == nil {
			if i > 0 {
				logger.InfoKV(ctx, "Fallback speech renderer succeeded", "renderer", i)
			}

			return nil
		}

		if ctx.Err() != nil {
			return ctx.Err()
		}

		logger.WarnKV(ctx, "Speech renderer failed, trying next", "renderer", i, "error", err)

		errs = multierr.Append(errs, err)
	}

	return errs
}
