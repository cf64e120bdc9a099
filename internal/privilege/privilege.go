// Package privilege handles the effective identity the injector acts under.
//
// A JVM only accepts attach requests from a peer with its own effective uid
// and gid, so an injector running as root must temporarily take on the
// target's identity while it creates the trigger file and connects.
package privilege

import (
	"errors"
	"fmt"
	"os"
)

// ErrNotPermitted is returned when switching identity requires root or
// CAP_SETUID and CAP_SETGID and the process has neither.
var ErrNotPermitted = errors.New("switching identity requires root or CAP_SETUID and CAP_SETGID")

// Identity is an effective uid/gid pair.
type Identity struct {
	UID int
	GID int
}

func (i Identity) String() string {
	return fmt.Sprintf("%d:%d", i.UID, i.GID)
}

// Current returns the effective identity of this process.
func Current() Identity {
	return Identity{UID: os.Geteuid(), GID: os.Getegid()}
}

// IsRoot checks if the current process is running with root privileges (euid
// == 0).
func IsRoot() bool {
	return os.Geteuid() == 0
}

// Chown changes the ownership of path to id. It is a no-op when id is the
// current identity.
func Chown(path string, id Identity) error {
	if id == Current() {
		return nil
	}
	if err := os.Chown(path, id.UID, id.GID); err != nil {
		return fmt.Errorf("failed to chown %s to %s: %w", path, id, err)
	}
	return nil
}
