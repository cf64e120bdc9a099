package privilege

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Linux capability bit positions (from include/uapi/linux/capability.h).
const (
	CapSetgid = 6 // CAP_SETGID
	CapSetuid = 7 // CAP_SETUID
)

const selfStatus = "/proc/self/status"

// HasCapabilities reports whether every capability in caps is in the
// effective set of this process.
func HasCapabilities(caps ...int) bool {
	capEff, err := readCapabilityBitmask(selfStatus, "CapEff")
	if err != nil {
		return false
	}
	for _, c := range caps {
		if !hasCapability(capEff, c) {
			return false
		}
	}
	return true
}

// CanSwitchIdentity reports whether this process may change its effective
// uid and gid to arbitrary values.
func CanSwitchIdentity() bool {
	return IsRoot() || HasCapabilities(CapSetuid, CapSetgid)
}

// readCapabilityBitmask reads the named capability bitmask from a
// /proc/<pid>/status file.
func readCapabilityBitmask(procStatusPath, capName string) (uint64, error) {
	//nolint:gosec // G304: Path names a procfs status file.
	file, err := os.Open(procStatusPath)
	if err != nil {
		return 0, fmt.Errorf("failed to open %s: %w", procStatusPath, err)
	}
	defer file.Close() // nolint:errcheck

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, capName+":") {
			continue
		}

		// Format: "CapEff:\t00000000a80435fb"
		parts := strings.Fields(line)
		if len(parts) < 2 {
			return 0, fmt.Errorf("invalid %s format: %s", capName, line)
		}

		bitmask, err := strconv.ParseUint(parts[1], 16, 64)
		if err != nil {
			return 0, fmt.Errorf("failed to parse %s bitmask: %w", capName, err)
		}
		return bitmask, nil
	}

	if err := scanner.Err(); err != nil {
		return 0, fmt.Errorf("failed to scan %s: %w", procStatusPath, err)
	}

	return 0, fmt.Errorf("%s not found in %s", capName, procStatusPath)
}

func hasCapability(bitmask uint64, capBit int) bool {
	return bitmask&(1<<uint(capBit)) != 0
}
