// Package transport provides the connection to the remote system.
//
// The session engine sees a Transport: a connected duplex byte stream.
// The telnet implementation negotiates the options a BBS expects
// (echo, suppress-go-ahead, terminal type) and strips IAC command
// sequences from the data stream, so the engine only ever sees
// terminal bytes.
package transport

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/jedcn/baud/internal/logging"
)

// ErrNotConnected is returned for operations on a closed transport.
var ErrNotConnected = errors.New("not connected")

// Transport is a connected duplex byte stream to the remote system.
type Transport interface {
	// IsConnected reports whether the stream is still usable.
	IsConnected() bool

	// Read fills p with decoded data bytes (telnet commands stripped).
	Read(p []byte) (int, error)

	// Write sends bytes to the remote, escaping as the wire requires.
	Write(p []byte) (int, error)

	// Close tears down the connection. Safe to call more than once.
	Close() error
}

// Dial connects to a telnet server and performs initial option
// negotiation. The returned transport is ready for session use.
func Dial(host string, port int, timeout time.Duration, log *logging.Logger) (*Telnet, error) {
	addr := net.JoinHostPort(host, strconv.Itoa(port))

	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return nil, fmt.Errorf("connecting to %s: %w", addr, err)
	}

	t := NewTelnet(conn, log)
	if err := t.announce(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("announcing telnet options: %w", err)
	}
	return t, nil
}
