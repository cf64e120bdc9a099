// Package errors provides the attach error taxonomy and cleanup helpers.
package errors

import (
	"io"

	"github.com/rs/zerolog"
)

// DeferClose properly closes an io.Closer with logging.
// Use this in defer statements to avoid suppressing close errors.
func DeferClose(logger zerolog.Logger, closer io.Closer, msg string) {
	if closer == nil {
		return
	}
	if err := closer.Close(); err != nil {
		logger.Warn().Err(err).Msg(msg)
	}
}

// DeferRemove removes a file with logging. A file that is already gone is not
// reported.
func DeferRemove(logger zerolog.Logger, path string, remove func(string) error) {
	if path == "" {
		return
	}
	if err := remove(path); err != nil && !isNotExist(err) {
		logger.Warn().Err(err).Str("path", path).Msg("failed to remove file")
	}
}
