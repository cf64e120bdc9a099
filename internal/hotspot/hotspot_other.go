//go:build !linux

package hotspot

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/coral-mesh/injector/internal/attacher"
	"github.com/coral-mesh/injector/internal/errors"
)

// Facility rejects every attach outside Linux.
type Facility struct {
	logger zerolog.Logger
}

var _ attacher.Facility = (*Facility)(nil)

// New creates a Facility.
func New(logger zerolog.Logger) *Facility {
	return &Facility{logger: logger.With().Str("component", "hotspot").Logger()}
}

// Attach always fails with AttachRejected.
func (f *Facility) Attach(_ context.Context, targetID string) (attacher.Handle, error) {
	f.logger.Debug().Str("target", targetID).Msg("Dynamic attach unavailable on this platform")
	return nil, errors.Newf(errors.KindAttachRejected, "dynamic attach is only supported on linux")
}
