// Package hotspot implements the HotSpot JVM dynamic attach protocol.
//
// The short version of the protocol:
//   - if the JVM has no attach listener yet, create a .attach_pid<pid> trigger
//     file and send SIGQUIT; the JVM then opens a UNIX socket
//     /tmp/.java_pid<pid> in its own mount namespace;
//   - every command is a fresh connection carrying the protocol version, the
//     command name and exactly three arguments, all NUL-terminated;
//   - the JVM writes a status line, the command output, and closes.
package hotspot

import (
	"bufio"
	"bytes"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/coral-mesh/injector/internal/constants"
	"github.com/coral-mesh/injector/internal/errors"
)

const (
	protocolVersion = "1"
	maxArgs         = 3

	// statusBadVersion is returned when the JVM does not speak protocolVersion.
	statusBadVersion = 101

	// Return codes of the instrument library's Agent_OnAttach.
	rcNoMemory       = -4
	rcBadJar         = 100
	rcNotOnClassPath = 101
	rcStartFailed    = 102
)

// command is a single attach listener request.
type command struct {
	name string
	args []string
}

func (c command) String() string {
	return strings.TrimSpace(c.name + " " + strings.Join(c.args, " "))
}

// isJar reports whether path names a Java agent jar rather than a native
// JVMTI agent.
func isJar(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".jar")
}

// loadCommand builds the load request for the agent at path, which must be
// absolute in the target's mount namespace. Jars go through the instrument
// library with options appended after '='; native agents are loaded by path.
func loadCommand(path, options string) command {
	if isJar(path) {
		arg := path
		if options != "" {
			arg += "=" + options
		}
		return command{name: "load", args: []string{constants.InstrumentLibrary, "false", arg}}
	}
	return command{name: "load", args: []string{path, "true", options}}
}

// encode frames the command for the wire.
func (c command) encode() ([]byte, error) {
	if len(c.args) > maxArgs {
		return nil, fmt.Errorf("command %q takes at most %d arguments, got %d", c.name, maxArgs, len(c.args))
	}

	fields := make([]string, 0, 2+maxArgs)
	fields = append(fields, protocolVersion, c.name)
	fields = append(fields, c.args...)
	for len(fields) < 2+maxArgs {
		fields = append(fields, "")
	}

	var buf bytes.Buffer
	for _, f := range fields {
		if strings.IndexByte(f, 0) >= 0 {
			return nil, fmt.Errorf("argument %q contains a NUL byte", f)
		}
		buf.WriteString(f)
		buf.WriteByte(0)
	}
	return buf.Bytes(), nil
}

// response is a parsed attach listener reply.
type response struct {
	status int
	// returnCode is the agent's Agent_OnAttach result, reported by load.
	returnCode    int
	hasReturnCode bool
	// output is everything after the status line.
	output string
}

// parseResponse parses a complete reply. The first line is the command
// status. For load, the next line carries the agent's return code either as
// "return code: N" (JDK 9 and later) or as a bare integer (JDK 8).
func parseResponse(data []byte) (response, error) {
	var resp response

	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 4096), len(data)+1)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return resp, fmt.Errorf("failed to read status line: %w", err)
		}
		return resp, fmt.Errorf("empty response from attach listener")
	}

	status, err := strconv.Atoi(strings.TrimSpace(scanner.Text()))
	if err != nil {
		return resp, fmt.Errorf("malformed status line %q", scanner.Text())
	}
	resp.status = status

	var out []string
	for scanner.Scan() {
		line := scanner.Text()
		if len(out) == 0 && !resp.hasReturnCode {
			if rc, ok := parseReturnCode(line); ok {
				resp.returnCode = rc
				resp.hasReturnCode = true
				continue
			}
		}
		out = append(out, line)
	}
	if err := scanner.Err(); err != nil {
		return resp, fmt.Errorf("failed to read response: %w", err)
	}
	resp.output = strings.TrimSpace(strings.Join(out, "\n"))

	return resp, nil
}

func parseReturnCode(line string) (int, bool) {
	line = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), "return code:"))
	rc, err := strconv.Atoi(line)
	return rc, err == nil
}

// loadError maps a reply to a load request onto the attach error taxonomy.
func (r response) loadError(cmd command, agent string) error {
	switch {
	case r.status == statusBadVersion:
		return errors.Newf(errors.KindAttachRejected, "target does not support attach protocol version %s", protocolVersion)
	case r.status != 0 && r.hasReturnCode:
		return errors.Newf(errors.KindModuleLoadFailed, "%s failed with status %d: %s%s", cmd.name, r.status, describeReturnCode(agent, r.returnCode), detail(r.output))
	case r.status != 0:
		return errors.Newf(errors.KindModuleLoadFailed, "%s failed with status %d%s", cmd.name, r.status, detail(r.output))
	case r.hasReturnCode && r.returnCode != 0:
		return errors.Newf(errors.KindModuleLoadFailed, "%s: %s%s", agent, describeReturnCode(agent, r.returnCode), detail(r.output))
	}
	return nil
}

func describeReturnCode(agent string, rc int) string {
	if rc == rcNoMemory {
		return "insufficient memory"
	}
	if isJar(agent) {
		switch rc {
		case rcBadJar:
			return "agent JAR not found or no Agent-Class attribute"
		case rcNotOnClassPath:
			return "unable to add JAR file to system class path"
		case rcStartFailed:
			return "agent JAR loaded but agent failed to initialize"
		}
	}
	return fmt.Sprintf("Agent_OnAttach failed with return code %d", rc)
}

func detail(output string) string {
	if output == "" {
		return ""
	}
	return ": " + output
}
