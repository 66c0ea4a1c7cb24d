// Package terminal owns raw-mode control of the local terminal device.
//
// While a Terminal is open, canonical line buffering and local echo are
// disabled and input arrives one byte at a time. The original terminal
// state is saved on open and restored on Close, which is safe to call
// on every exit path and more than once.
package terminal

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"golang.org/x/term"
)

// Errors returned by terminal operations.
var (
	// ErrNotTerminal is returned when the input device is not a TTY.
	ErrNotTerminal = errors.New("input is not a terminal")

	// ErrTimeout is returned by ReadByte when no input arrived in time.
	ErrTimeout = errors.New("terminal read timed out")
)

// Terminal provides raw-mode reads and synchronous writes on a local
// character device.
type Terminal struct {
	in  *os.File
	out *os.File

	mu       sync.Mutex
	oldState *term.State

	bytes chan byte

	errMu   sync.Mutex
	readErr error
}

// Open puts the device into raw mode and starts delivering input.
// The caller must arrange for Close to run on every exit path.
func Open(in, out *os.File) (*Terminal, error) {
	if !term.IsTerminal(int(in.Fd())) {
		return nil, ErrNotTerminal
	}

	state, err := term.MakeRaw(int(in.Fd()))
	if err != nil {
		return nil, fmt.Errorf("entering raw mode: %w", err)
	}

	t := newTerminal(in, out)
	t.oldState = state
	return t, nil
}

// newTerminal wires the input loop without touching terminal modes.
// Tests use it directly with pipes.
func newTerminal(in, out *os.File) *Terminal {
	t := &Terminal{
		in:    in,
		out:   out,
		bytes: make(chan byte, 256),
	}
	go t.readLoop()
	return t
}

// readLoop feeds input bytes into the channel one at a time. It exits
// when the underlying device reports an error or end of input.
func (t *Terminal) readLoop() {
	buf := make([]byte, 256)
	for {
		n, err := t.in.Read(buf)
		for i := 0; i < n; i++ {
			t.bytes <- buf[i]
		}
		if err != nil {
			t.errMu.Lock()
			t.readErr = err
			t.errMu.Unlock()
			close(t.bytes)
			return
		}
	}
}

// ReadByte returns the next input byte. With a positive timeout it
// returns ErrTimeout if nothing arrived in time; this lets the caller
// poll other work without busy-waiting. End of input is io.EOF.
func (t *Terminal) ReadByte(timeout time.Duration) (byte, error) {
	if timeout <= 0 {
		b, ok := <-t.bytes
		if !ok {
			return 0, t.readError()
		}
		return b, nil
	}

	select {
	case b, ok := <-t.bytes:
		if !ok {
			return 0, t.readError()
		}
		return b, nil
	case <-time.After(timeout):
		return 0, ErrTimeout
	}
}

// readError reports why the input channel closed.
func (t *Terminal) readError() error {
	t.errMu.Lock()
	defer t.errMu.Unlock()

	if t.readErr == nil || errors.Is(t.readErr, io.EOF) {
		return io.EOF
	}
	return fmt.Errorf("terminal read: %w", t.readErr)
}

// Write sends raw bytes to the display. os.File writes are unbuffered,
// so each call reaches the device before Write returns.
func (t *Terminal) Write(p []byte) (int, error) {
	return t.out.Write(p)
}

// WriteString sends display text. The text must already be decoded;
// escape sequences within it pass through untouched.
func (t *Terminal) WriteString(s string) error {
	_, err := io.WriteString(t.out, s)
	return err
}

// Close restores the terminal to its original mode. It is safe to call
// multiple times; only the first call restores.
func (t *Terminal) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.oldState == nil {
		return nil
	}
	state := t.oldState
	t.oldState = nil
	return term.Restore(int(t.in.Fd()), state)
}
