// Package constants defines shared configuration constants.
package constants

var (
	ConfigFile = "config.yaml"

	// DefaultDir holds the per-user config file, relative to the home directory.
	DefaultDir = ".injector"

	// EnvPrefix prefixes every environment variable the injector reads.
	EnvPrefix = "INJECTOR_"

	// ConfigEnvVar points at an explicit YAML config file.
	ConfigEnvVar = EnvPrefix + "CONFIG"

	// HostProcEnvVar overrides the proc mount, as used when running inside a
	// container with the host's /proc mounted elsewhere.
	HostProcEnvVar = "HOST_PROC"

	DefaultProcRoot = "/proc"

	// SocketPrefix names the JVM attach listener socket, suffixed with the
	// namespace pid and created in the target's /tmp.
	SocketPrefix = ".java_pid"

	// TriggerPrefix names the file that asks the JVM to start its attach
	// listener on SIGQUIT.
	TriggerPrefix = ".attach_pid"

	// InstrumentLibrary is the JVM library that loads Java agents from jars.
	InstrumentLibrary = "instrument"
)
