//go:build unittest

package tiktok

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
)

type RodLauncher struct {
	opts   BrowserOptions
	logger zerolog.Logger
}

func NewRodLauncher(opts BrowserOptions, logger zerolog.Logger) *RodLauncher {
	return &RodLauncher{opts: opts, logger: logger}
}

func (r *RodLauncher) Launch(ctx context.Context, opts LaunchOptions) (Session, error) {
	return nil, fmt.Errorf("browser: %w (build tag: unittest)", ErrBrowserNotReady)
}
