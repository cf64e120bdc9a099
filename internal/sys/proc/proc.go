// Package proc reads per-process information from a proc filesystem.
// The mount point is configurable so the injector can run in a container with
// the host's /proc mounted elsewhere.
package proc

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/coral-mesh/injector/internal/constants"
)

// FS is a proc filesystem rooted at a mount point.
type FS struct {
	root string
}

// New returns an FS rooted at root.
func New(root string) FS {
	return FS{root: root}
}

// FromEnv returns the FS named by HOST_PROC, or /proc.
func FromEnv() FS {
	if root := os.Getenv(constants.HostProcEnvVar); root != "" {
		return New(root)
	}
	return New(constants.DefaultProcRoot)
}

// Path joins elems under the directory of pid.
func (f FS) Path(pid int, elems ...string) string {
	return filepath.Join(append([]string{f.root, strconv.Itoa(pid)}, elems...)...)
}

// NamespacePID returns the pid of the process as seen from its innermost pid
// namespace. Kernels without the NSpid status field (< 4.1) report the host
// pid.
func (f FS) NamespacePID(pid int) (int, error) {
	//nolint:gosec // G304: Path is from the proc filesystem.
	file, err := os.Open(f.Path(pid, "status"))
	if err != nil {
		return 0, err
	}
	defer file.Close() // nolint:errcheck

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "NSpid:") {
			continue
		}

		fields := strings.Fields(strings.TrimPrefix(line, "NSpid:"))
		if len(fields) == 0 {
			break
		}
		nsPid, err := strconv.Atoi(fields[len(fields)-1])
		if err != nil {
			return 0, fmt.Errorf("invalid NSpid line %q: %w", line, err)
		}
		return nsPid, nil
	}
	if err := scanner.Err(); err != nil {
		return 0, fmt.Errorf("failed to read status of pid %d: %w", pid, err)
	}

	return pid, nil
}

// Cwd returns the working directory of pid as seen by the process itself.
func (f FS) Cwd(pid int) (string, error) {
	return os.Readlink(f.Path(pid, "cwd"))
}

// RootDir returns the path through which the filesystem of pid is reachable
// from this process.
func (f FS) RootDir(pid int) string {
	return f.Path(pid, "root")
}

// SharesRoot reports whether pid sees the same root directory as this
// process. A false result means paths must be translated into the target's
// mount namespace.
func (f FS) SharesRoot(pid int) (bool, error) {
	own, err := os.Stat("/")
	if err != nil {
		return false, err
	}
	theirs, err := os.Stat(f.RootDir(pid))
	if err != nil {
		return false, err
	}
	return os.SameFile(own, theirs), nil
}
