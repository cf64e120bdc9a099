package hotspot

import (
	"context"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/rs/zerolog"

	"github.com/coral-mesh/injector/internal/constants"
	"github.com/coral-mesh/injector/internal/errors"
)

// dialFunc opens a connection to the attach listener.
type dialFunc func(ctx context.Context) (net.Conn, error)

// unixDialer dials the listener socket at path.
func unixDialer(path string) dialFunc {
	return func(ctx context.Context) (net.Conn, error) {
		var d net.Dialer
		return d.DialContext(ctx, "unix", path)
	}
}

// execute sends cmd on a fresh connection and returns the parsed reply. A
// failed dial is AttachRejected; transport failures after that are returned
// untagged.
func execute(ctx context.Context, dial dialFunc, cmd command, logger zerolog.Logger) (response, error) {
	payload, err := cmd.encode()
	if err != nil {
		return response{}, errors.New(errors.KindModuleLoadFailed, err)
	}

	conn, err := dial(ctx)
	if err != nil {
		return response{}, errors.Newf(errors.KindAttachRejected, "failed to connect to attach listener: %w", err)
	}
	defer errors.DeferClose(logger, conn, "failed to close attach socket")

	deadline := time.Now().Add(constants.SocketDeadline)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := conn.SetDeadline(deadline); err != nil {
		return response{}, err
	}

	logger.Debug().Str("command", cmd.String()).Msg("Sending attach command")
	if _, err := conn.Write(payload); err != nil {
		return response{}, fmt.Errorf("failed to send %s: %w", cmd.name, err)
	}

	data, err := io.ReadAll(io.LimitReader(conn, constants.MaxResponseSize+1))
	if err != nil {
		return response{}, fmt.Errorf("failed to read %s response: %w", cmd.name, err)
	}
	if len(data) > constants.MaxResponseSize {
		return response{}, fmt.Errorf("%s response exceeds %d bytes", cmd.name, constants.MaxResponseSize)
	}
	logger.Trace().Bytes("response", data).Msg("Attach listener replied")

	return parseResponse(data)
}
