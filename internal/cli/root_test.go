package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coral-mesh/injector/internal/attacher"
	"github.com/coral-mesh/injector/internal/errors"
	"github.com/coral-mesh/injector/internal/testutil"
)

const demoModule = "../AgentDemo1/target/AgentDemo1-1.0-SNAPSHOT.jar"

func clearEnv(t *testing.T) {
	t.Helper()
	for _, name := range []string{
		"INJECTOR_CONFIG",
		"INJECTOR_TARGET_PID",
		"INJECTOR_MODULE_PATH",
		"INJECTOR_AGENT_OPTIONS",
		"INJECTOR_LOG_LEVEL",
		"INJECTOR_LOG_PRETTY",
	} {
		t.Setenv(name, "")
	}
	t.Setenv("HOME", t.TempDir())
}

func runCLI(t *testing.T, fake *testutil.FakeFacility, args ...string) (string, string, error) {
	t.Helper()
	cmd := NewRootCmd(func(zerolog.Logger) attacher.Facility { return fake })

	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	if args == nil {
		args = []string{}
	}
	cmd.SetArgs(args)

	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

// demoWorkspace lays out the demo agent next to a working directory and
// changes into it.
func demoWorkspace(t *testing.T, withModule bool) string {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "work"), 0o755))
	jar := filepath.Join(root, "AgentDemo1", "target", "AgentDemo1-1.0-SNAPSHOT.jar")
	if withModule {
		require.NoError(t, os.MkdirAll(filepath.Dir(jar), 0o755))
		require.NoError(t, os.WriteFile(jar, []byte("PK"), 0o644))
	}
	t.Chdir(filepath.Join(root, "work"))
	return jar
}

func TestRoot_DemoScenario(t *testing.T) {
	clearEnv(t)
	jar := demoWorkspace(t, true)
	fake := &testutil.FakeFacility{CheckModule: true}

	stdout, _, err := runCLI(t, fake, "19892", demoModule)
	require.NoError(t, err)

	calls := fake.Calls()
	require.Len(t, calls, 3)
	assert.Equal(t, testutil.Call{Op: "attach", Arg: "19892"}, calls[0])
	assert.Equal(t, testutil.Call{Op: "load", Arg: jar}, calls[1])
	assert.Equal(t, "detach", calls[2].Op)

	assert.Contains(t, stdout, "Module loaded")
	assert.Contains(t, stdout, "19892")
	assert.Contains(t, stdout, jar)
}

func TestRoot_DemoScenarioMissingModule(t *testing.T) {
	clearEnv(t)
	demoWorkspace(t, false)
	fake := &testutil.FakeFacility{CheckModule: true}

	stdout, _, err := runCLI(t, fake, "19892", demoModule)
	require.Error(t, err)

	assert.ErrorIs(t, err, errors.ErrModuleLoadFailed)
	assert.Contains(t, err.Error(), "ModuleLoadFailed: ")
	assert.Equal(t, 1, fake.Count("detach"))
	assert.Empty(t, stdout)
}

func TestRoot_AttachFailure(t *testing.T) {
	clearEnv(t)
	fake := &testutil.FakeFacility{
		AttachErr: errors.Newf(errors.KindTargetNotFound, "process 424242 not found"),
	}

	_, _, err := runCLI(t, fake, "424242", "/opt/agents/agent.jar")
	require.Error(t, err)

	assert.Equal(t, "TargetNotFound: process 424242 not found", err.Error())
	assert.Zero(t, fake.Count("load"))
	assert.Zero(t, fake.Count("detach"))
}

func TestRoot_DetachWarningIsNotFatal(t *testing.T) {
	clearEnv(t)
	fake := &testutil.FakeFacility{DetachErr: assert.AnError}

	stdout, _, err := runCLI(t, fake, "--output", "json", "19892", "/opt/agents/agent.jar")
	require.NoError(t, err)

	var report Report
	require.NoError(t, json.Unmarshal([]byte(stdout), &report))
	assert.Equal(t, "19892", report.Target)
	assert.Equal(t, "/opt/agents/agent.jar", report.Module)
	assert.True(t, report.Loaded)
	assert.Contains(t, report.DetachWarning, "DetachFailed")
	assert.NotEmpty(t, report.SessionID)
}

func TestRoot_OptionsFlag(t *testing.T) {
	clearEnv(t)
	fake := &testutil.FakeFacility{}

	_, _, err := runCLI(t, fake, "-o", "verbose=true", "19892", "/opt/agents/agent.jar")
	require.NoError(t, err)

	calls := fake.Calls()
	require.Len(t, calls, 3)
	assert.Equal(t, "verbose=true", calls[1].Options)
}

func TestRoot_ConfigAndEnvFallback(t *testing.T) {
	clearEnv(t)
	cfgPath := filepath.Join(t.TempDir(), "injector.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(`
target:
  pid: "100"
module:
  path: /opt/agents/from-file.jar
  options: source=file
`), 0o600))
	t.Setenv("INJECTOR_MODULE_PATH", "/opt/agents/from-env.jar")

	t.Run("config and env", func(t *testing.T) {
		fake := &testutil.FakeFacility{}
		_, _, err := runCLI(t, fake, "--config", cfgPath)
		require.NoError(t, err)

		calls := fake.Calls()
		require.Len(t, calls, 3)
		assert.Equal(t, "100", calls[0].Arg)
		assert.Equal(t, "/opt/agents/from-env.jar", calls[1].Arg)
		assert.Equal(t, "source=file", calls[1].Options)
	})

	t.Run("positional args win", func(t *testing.T) {
		fake := &testutil.FakeFacility{}
		_, _, err := runCLI(t, fake, "--config", cfgPath, "200", "/opt/agents/from-args.jar")
		require.NoError(t, err)

		calls := fake.Calls()
		require.Len(t, calls, 3)
		assert.Equal(t, "200", calls[0].Arg)
		assert.Equal(t, "/opt/agents/from-args.jar", calls[1].Arg)
	})
}

func TestRoot_UsageErrors(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{
			name:    "no target or module",
			args:    nil,
			wantErr: "target pid is required",
		},
		{
			name:    "no module",
			args:    []string{"19892"},
			wantErr: "module path is required",
		},
		{
			name:    "too many args",
			args:    []string{"19892", "a.jar", "extra"},
			wantErr: "accepts between 0 and 2 arg(s)",
		},
		{
			name:    "bad output format",
			args:    []string{"--output", "yaml", "19892", "a.jar"},
			wantErr: `unsupported output format "yaml"`,
		},
		{
			name:    "bad log level",
			args:    []string{"--log-level", "loud", "19892", "a.jar"},
			wantErr: `invalid log level "loud"`,
		},
		{
			name:    "missing config file",
			args:    []string{"--config", "/nonexistent/injector.yaml", "19892", "a.jar"},
			wantErr: "failed to read config",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			fake := &testutil.FakeFacility{}

			_, _, err := runCLI(t, fake, tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
			assert.Empty(t, fake.Calls())
		})
	}
}

func TestRoot_LogsCarrySessionID(t *testing.T) {
	clearEnv(t)
	fake := &testutil.FakeFacility{}

	stdout, stderr, err := runCLI(t, fake, "--log-level", "debug", "--pretty=false", "--output", "json", "19892", "/opt/agents/agent.jar")
	require.NoError(t, err)

	var report Report
	require.NoError(t, json.Unmarshal([]byte(stdout), &report))
	assert.Contains(t, stderr, `"session_id":"`+report.SessionID+`"`)
	assert.Contains(t, stderr, `"component":"attacher"`)
}

func TestVersionCmd(t *testing.T) {
	stdout, _, err := runCLI(t, &testutil.FakeFacility{}, "version")
	require.NoError(t, err)
	assert.Contains(t, stdout, "injector version")
	assert.Contains(t, stdout, "Go version")
}
