package constants

import "time"

const (
	// AttachTimeout bounds the wait for the JVM to create its attach socket
	// after SIGQUIT.
	AttachTimeout = 6 * time.Second

	// AttachPollInitial is the first delay between socket checks; it doubles up
	// to AttachPollMax.
	AttachPollInitial = 20 * time.Millisecond
	AttachPollMax     = 500 * time.Millisecond

	// SocketDeadline bounds a single command round trip on the attach socket.
	SocketDeadline = 3 * time.Second

	// MaxResponseSize caps how much of a JVM response is read.
	MaxResponseSize = 64 << 10

	// MaxModuleSize caps the size of a module staged into a container.
	MaxModuleSize = 512 << 20
)
