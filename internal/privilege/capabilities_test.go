package privilege

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadCapabilityBitmask(t *testing.T) {
	tests := []struct {
		name        string
		content     string
		capName     string
		expected    uint64
		expectError bool
	}{
		{
			name: "root in a default container",
			content: `Name:	injector
CapInh:	0000000000000000
CapPrm:	00000000a80425fb
CapEff:	00000000a80425fb
CapBnd:	00000000a80425fb
CapAmb:	0000000000000000`,
			capName:  "CapEff",
			expected: 0xa80425fb,
		},
		{
			name: "unprivileged user",
			content: `Name:	injector
CapPrm:	0000000000000000
CapEff:	0000000000000000`,
			capName:  "CapEff",
			expected: 0,
		},
		{
			name: "missing field",
			content: `Name:	injector
CapPrm:	00000000a80425fb`,
			capName:     "CapEff",
			expectError: true,
		},
		{
			name:        "malformed bitmask",
			content:     "CapEff:\tnot-hex",
			capName:     "CapEff",
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "status")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o644))

			bitmask, err := readCapabilityBitmask(path, tt.capName)
			if tt.expectError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, bitmask)
		})
	}
}

func TestReadCapabilityBitmask_MissingFile(t *testing.T) {
	_, err := readCapabilityBitmask(filepath.Join(t.TempDir(), "status"), "CapEff")
	assert.ErrorContains(t, err, "failed to open")
}

func TestHasCapability(t *testing.T) {
	// CAP_SETGID and CAP_SETUID are both in the container default set.
	const containerDefault = 0xa80425fb

	assert.True(t, hasCapability(containerDefault, CapSetgid))
	assert.True(t, hasCapability(containerDefault, CapSetuid))
	assert.False(t, hasCapability(0, CapSetuid))
	assert.False(t, hasCapability(1<<CapSetgid, CapSetuid))
}

func TestCanSwitchIdentity_Root(t *testing.T) {
	if !IsRoot() {
		t.Skip("requires root")
	}
	assert.True(t, CanSwitchIdentity())
}
