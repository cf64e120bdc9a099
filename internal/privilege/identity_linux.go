//go:build linux

package privilege

import (
	"fmt"

	"syscall"
)

// WithIdentity runs fn with the effective uid/gid set to id and restores the
// original identity afterwards. When id already is the current identity fn
// runs directly.
func WithIdentity(id Identity, fn func() error) (err error) {
	orig := Current()
	if id == orig {
		return fn()
	}
	if !CanSwitchIdentity() {
		return fmt.Errorf("%w: want %s, running as %s", ErrNotPermitted, id, orig)
	}

	// The gid must change while the euid is still root.
	if err := syscall.Setegid(id.GID); err != nil {
		return fmt.Errorf("failed to set effective GID to %d: %w", id.GID, err)
	}
	if err := syscall.Seteuid(id.UID); err != nil {
		_ = syscall.Setegid(orig.GID)
		return fmt.Errorf("failed to set effective UID to %d: %w", id.UID, err)
	}

	defer func() {
		restoreErr := restore(orig)
		if err == nil {
			err = restoreErr
		}
	}()

	return fn()
}

func restore(orig Identity) error {
	if err := syscall.Seteuid(orig.UID); err != nil {
		return fmt.Errorf("failed to restore effective UID %d: %w", orig.UID, err)
	}
	if err := syscall.Setegid(orig.GID); err != nil {
		return fmt.Errorf("failed to restore effective GID %d: %w", orig.GID, err)
	}
	return nil
}
