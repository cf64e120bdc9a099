// Package attacher runs one attach, load, detach cycle against a target
// process through an injectable host attach facility.
package attacher

import (
	"context"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/coral-mesh/injector/internal/errors"
)

// Facility is the host runtime's live-attach mechanism.
type Facility interface {
	// Attach opens a control channel to the process named by targetID.
	Attach(ctx context.Context, targetID string) (Handle, error)
}

// Handle is an open control channel to one target process.
type Handle interface {
	// LoadModule asks the target to load the module at the absolute path and
	// waits for its loader to report the outcome.
	LoadModule(ctx context.Context, path, options string) error
	// Detach releases the channel.
	Detach() error
}

// Request describes a single attach cycle.
type Request struct {
	TargetID   string
	ModulePath string
	// Options is handed to the module's entry point.
	Options string
}

// Result reports what a cycle achieved.
type Result struct {
	TargetID string
	// ModulePath is the absolute path handed to the target.
	ModulePath string
	Loaded     bool
	// DetachErr is set when detaching failed after a successful load. The
	// module stays loaded, so the cycle still counts as a success.
	DetachErr error
}

// Attacher drives a Facility through attach, load and detach.
type Attacher struct {
	facility Facility
	logger   zerolog.Logger
	abs      func(string) (string, error)
}

// New creates an Attacher over facility.
func New(facility Facility, logger zerolog.Logger) *Attacher {
	return &Attacher{
		facility: facility,
		logger:   logger.With().Str("component", "attacher").Logger(),
		abs:      filepath.Abs,
	}
}

// AttachAndLoad attaches to targetID, loads the module at modulePath and
// detaches.
func (a *Attacher) AttachAndLoad(ctx context.Context, targetID, modulePath string) error {
	_, err := a.Run(ctx, Request{TargetID: targetID, ModulePath: modulePath})
	return err
}

// Run executes req. Once Attach has succeeded, Detach is called exactly once
// whatever the outcome of the load. A failed Attach skips both load and
// detach.
func (a *Attacher) Run(ctx context.Context, req Request) (*Result, error) {
	if req.TargetID == "" {
		return nil, errors.Newf(errors.KindTargetNotFound, "target identifier is empty")
	}
	if req.ModulePath == "" {
		return nil, errors.Newf(errors.KindModuleLoadFailed, "module path is empty")
	}

	absPath, err := a.abs(req.ModulePath)
	if err != nil {
		return nil, errors.Newf(errors.KindModuleLoadFailed, "failed to resolve %s: %w", req.ModulePath, err)
	}

	logger := a.logger.With().
		Str("target", req.TargetID).
		Str("module", absPath).
		Logger()

	result := &Result{TargetID: req.TargetID, ModulePath: absPath}

	logger.Debug().Msg("Attaching to target")
	handle, err := a.facility.Attach(ctx, req.TargetID)
	if err != nil {
		return result, errors.Ensure(errors.KindAttachRejected, err)
	}
	logger.Debug().Msg("Attached")

	loadErr := handle.LoadModule(ctx, absPath, req.Options)
	if loadErr != nil {
		loadErr = errors.Ensure(errors.KindModuleLoadFailed, loadErr)
	} else {
		result.Loaded = true
		logger.Info().Msg("Module loaded")
	}

	if err := handle.Detach(); err != nil {
		detachErr := errors.Ensure(errors.KindDetachFailed, err)
		if loadErr != nil {
			logger.Warn().Err(detachErr).Msg("Detach failed after failed load")
			return result, loadErr
		}
		logger.Warn().Err(detachErr).Msg("Detach failed; module remains loaded")
		result.DetachErr = detachErr
		return result, nil
	}
	logger.Debug().Msg("Detached")

	return result, loadErr
}
