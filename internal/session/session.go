// Package session coordinates one interactive terminal session between
// the local terminal and a remote system.
//
// Two flows run for the session's lifetime: an inbound goroutine
// relaying remote bytes to the display, and the outbound foreground
// loop dispatching keyboard input. They share exactly one piece of
// state, a one-shot termination signal; everything else each flow owns
// alone. Cancellation is cooperative: each flow checks the signal once
// per iteration, and the bounded keyboard read timeout keeps the
// outbound loop responsive without busy-waiting.
package session

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/jedcn/baud/internal/codec"
	"github.com/jedcn/baud/internal/editor"
	"github.com/jedcn/baud/internal/logging"
	"github.com/jedcn/baud/internal/terminal"
)

// escapeByte switches from session mode to command mode (Ctrl+]).
const escapeByte = 0x1D

const (
	// readTimeout bounds keyboard reads so pending auto-responses
	// are polled between keystrokes.
	readTimeout = 100 * time.Millisecond

	// shutdownWait bounds how long the outbound flow waits for the
	// inbound flow to observe the termination signal.
	shutdownWait = time.Second

	commandPrompt = "\r\ntelnet> "
)

// Transport is the remote connection, already negotiated.
type Transport interface {
	IsConnected() bool
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	Close() error
}

// Console is the raw-mode local terminal.
type Console interface {
	// ReadByte returns the next input byte, terminal.ErrTimeout when
	// nothing arrived in time, or io.EOF at end of input.
	ReadByte(timeout time.Duration) (byte, error)

	// WriteString sends decoded display text.
	WriteString(s string) error

	// Close restores the terminal mode. Safe to call more than once.
	Close() error
}

// Expander maps a completed line to its expansion, or returns it
// unchanged. Called from the outbound flow only.
type Expander interface {
	Expand(text string) string
}

// Automation receives inbound text and queues auto-responses. Both
// methods must be safe for concurrent use: ProcessText runs on the
// inbound flow while PollAutoResponse runs on the outbound flow.
type Automation interface {
	ProcessText(text string)
	PollAutoResponse() (string, bool)
}

// Coordinator runs one session over a transport and a console.
type Coordinator struct {
	transport  Transport
	console    Console
	editor     *editor.LineEditor
	expander   Expander
	automation Automation
	log        *logging.Logger

	done     chan struct{}
	doneOnce sync.Once

	// Command mode state. Touched only by the outbound flow.
	commandMode bool
	command     []byte
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithExpander sets the text expansion collaborator.
func WithExpander(e Expander) Option {
	return func(s *Coordinator) { s.expander = e }
}

// WithAutomation sets the automation collaborator.
func WithAutomation(a Automation) Option {
	return func(s *Coordinator) { s.automation = a }
}

// WithLogger sets the session logger.
func WithLogger(l *logging.Logger) Option {
	return func(s *Coordinator) { s.log = l }
}

// New creates a session coordinator. The coordinator owns a fresh line
// editor drawing to the console.
func New(t Transport, c Console, opts ...Option) *Coordinator {
	s := &Coordinator{
		transport: t,
		console:   c,
		log:       logging.NullLogger,
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.editor = editor.New(c)
	return s
}

// Run executes the session until the user quits, either end of stream
// is reached, or a flow fails. The transport is closed and the terminal
// restored on every path. A normal quit returns nil; transport and
// terminal failures return the error that ended the session.
func (s *Coordinator) Run() error {
	inboundDone := make(chan struct{})
	var inboundErr error
	go func() {
		defer close(inboundDone)
		inboundErr = s.inbound()
	}()

	outboundErr := s.outbound()
	s.Stop()

	// Closing the transport first unblocks an inbound flow stuck in a
	// read. The wait stays bounded for the display write case.
	_ = s.transport.Close()

	select {
	case <-inboundDone:
		if outboundErr == nil {
			outboundErr = inboundErr
		}
	case <-time.After(shutdownWait):
		s.log.Warn("inbound flow did not stop within %v", shutdownWait)
	}

	_ = s.console.Close()
	return outboundErr
}

// Stop sets the one-shot termination signal. Safe to call from any
// goroutine, any number of times.
func (s *Coordinator) Stop() {
	s.doneOnce.Do(func() { close(s.done) })
}

func (s *Coordinator) stopping() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// inbound relays remote bytes to the display and hands decoded text to
// the automation collaborator. Exits on end of stream, read error, or
// the termination signal.
func (s *Coordinator) inbound() error {
	buf := make([]byte, 4096)
	for {
		if s.stopping() {
			return nil
		}
		if !s.transport.IsConnected() {
			s.Stop()
			return nil
		}

		n, err := s.transport.Read(buf)
		if n > 0 {
			text := codec.Decode(buf[:n])
			if werr := s.console.WriteString(text); werr != nil {
				s.Stop()
				return fmt.Errorf("writing to display: %w", werr)
			}
			if s.automation != nil {
				// Display is already current; automation failures
				// are contained by the collaborator.
				s.automation.ProcessText(text)
			}
		}
		if err != nil {
			wasStopping := s.stopping()
			s.Stop()
			if errors.Is(err, io.EOF) || wasStopping {
				return nil
			}
			return fmt.Errorf("reading from remote: %w", err)
		}
	}
}

// outbound is the foreground loop: keyboard dispatch, command mode,
// and auto-response polling. Exits on local end of input, transport
// disconnection, or the termination signal.
func (s *Coordinator) outbound() error {
	for {
		if s.stopping() {
			return nil
		}
		if !s.transport.IsConnected() {
			s.Stop()
			return nil
		}

		if s.automation != nil {
			if text, ok := s.automation.PollAutoResponse(); ok {
				if err := s.sendAuto(text); err != nil {
					s.Stop()
					return err
				}
				continue
			}
		}

		b, err := s.console.ReadByte(readTimeout)
		if err != nil {
			if errors.Is(err, terminal.ErrTimeout) {
				continue
			}
			s.Stop()
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("reading keyboard: %w", err)
		}

		quit, err := s.dispatch(b)
		if err != nil {
			s.Stop()
			return err
		}
		if quit {
			s.Stop()
			return nil
		}
	}
}

// dispatch routes one input byte per the session state machine.
func (s *Coordinator) dispatch(b byte) (bool, error) {
	if s.commandMode {
		return s.commandByte(b)
	}

	if b == escapeByte {
		s.commandMode = true
		s.command = s.command[:0]
		return false, s.console.WriteString(commandPrompt)
	}

	ready, err := s.editor.ProcessByte(b)
	if err != nil {
		return false, fmt.Errorf("writing to display: %w", err)
	}
	if !ready {
		return false, nil
	}

	line := s.editor.Line()
	s.editor.Reset()
	if s.expander != nil {
		line = s.expander.Expand(line)
	}
	return false, s.send(line)
}

// commandByte handles one byte of command-mode input.
func (s *Coordinator) commandByte(b byte) (bool, error) {
	switch {
	case b == '\r' || b == '\n':
		command := strings.TrimSpace(string(s.command))
		s.commandMode = false
		s.command = s.command[:0]

		if strings.EqualFold(command, "quit") || strings.EqualFold(command, "q") {
			s.log.Info("session ended by user")
			return true, nil
		}
		return false, s.console.WriteString("\r\nUnknown command: " + command + "\r\n")

	case b == 127 || b == 8:
		if len(s.command) > 0 {
			s.command = s.command[:len(s.command)-1]
			return false, s.console.WriteString("\b \b")
		}
		return false, nil

	case b >= 0x20 && b <= 0x7E:
		s.command = append(s.command, b)
		return false, s.console.WriteString(string(b))

	default:
		return false, nil
	}
}

// send transmits a completed line to the remote as ASCII plus CRLF.
func (s *Coordinator) send(line string) error {
	data := append(codec.EncodeASCII(line), '\r', '\n')
	if _, err := s.transport.Write(data); err != nil {
		return fmt.Errorf("writing to remote: %w", err)
	}
	return nil
}

// sendAuto transmits a queued auto-response as if the user had typed
// it, echoing it locally. Expansion is deliberately skipped.
func (s *Coordinator) sendAuto(text string) error {
	s.log.Debug("sending auto-response: %s", text)
	if err := s.console.WriteString(text + "\r\n"); err != nil {
		return fmt.Errorf("writing to display: %w", err)
	}
	return s.send(text)
}
