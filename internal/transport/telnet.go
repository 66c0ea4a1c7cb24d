package transport

import (
	"net"
	"sync"

	"github.com/jedcn/baud/internal/logging"
)

// Telnet command bytes (RFC 854).
const (
	cmdSE   = 240
	cmdSB   = 250
	cmdWill = 251
	cmdWont = 252
	cmdDo   = 253
	cmdDont = 254
	cmdIAC  = 255
)

// Telnet option codes.
const (
	optEcho            = 1
	optSuppressGoAhead = 3
	optTerminalType    = 24
)

// TERMINAL-TYPE subnegotiation qualifiers (RFC 1091).
const (
	ttypeIs   = 0
	ttypeSend = 1
)

// termType is the terminal type announced to the server.
const termType = "VT100"

// parseState tracks the inbound IAC parser.
type parseState uint8

const (
	stateData parseState = iota
	stateIAC             // IAC seen, next byte is a command
	stateOption          // WILL/WONT/DO/DONT seen, next byte is the option
	stateSub             // inside IAC SB ... collecting subnegotiation
	stateSubIAC          // IAC seen inside subnegotiation
)

// Telnet is a Transport over a TCP connection that handles telnet
// option negotiation inline with the data stream.
//
// Read strips IAC sequences and answers negotiation requests; Write
// escapes any literal 255 bytes. Read is used by one goroutine and
// Write by another; negotiation replies and caller writes share a
// write mutex so commands are never interleaved mid-sequence.
type Telnet struct {
	conn net.Conn
	log  *logging.Logger

	writeMu sync.Mutex

	mu        sync.Mutex
	connected bool

	// Inbound parser state. Touched only by the reading goroutine.
	state     parseState
	cmd       byte
	subOpt    byte
	subHasOpt bool
	subBuf    []byte

	// Options already answered, so repeated requests don't loop.
	answered map[[2]byte]bool
}

// NewTelnet wraps an established connection. Dial is the usual entry
// point; NewTelnet exists so tests can drive the protocol over an
// in-memory pipe.
func NewTelnet(conn net.Conn, log *logging.Logger) *Telnet {
	if log == nil {
		log = logging.NullLogger
	}
	return &Telnet{
		conn:      conn,
		log:       log.WithComponent("telnet"),
		connected: true,
		answered:  make(map[[2]byte]bool),
	}
}

// announce offers the options the client wants up front: suppress
// go-ahead in both directions, terminal type on request.
func (t *Telnet) announce() error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	_, err := t.conn.Write([]byte{
		cmdIAC, cmdWill, optSuppressGoAhead,
		cmdIAC, cmdDo, optSuppressGoAhead,
	})
	return err
}

// IsConnected reports whether the connection is still usable.
func (t *Telnet) IsConnected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.connected
}

// Read fills p with data bytes, stripping and answering telnet
// commands. It loops until at least one data byte arrives or the
// connection fails, so a read that consumed only negotiation traffic
// never returns a zero count.
func (t *Telnet) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	raw := make([]byte, len(p))
	for {
		n, err := t.conn.Read(raw)
		kept := t.filter(raw[:n], p)
		if err != nil {
			t.markDisconnected()
			return kept, err
		}
		if kept > 0 {
			return kept, nil
		}
	}
}

// filter runs the IAC state machine over in, writing data bytes into
// out and answering negotiation inline. in and out may overlap only if
// out does not precede in; callers pass distinct buffers.
func (t *Telnet) filter(in, out []byte) int {
	kept := 0
	for _, b := range in {
		switch t.state {
		case stateData:
			if b == cmdIAC {
				t.state = stateIAC
				continue
			}
			out[kept] = b
			kept++

		case stateIAC:
			switch b {
			case cmdIAC:
				// Escaped 255 is a literal data byte.
				out[kept] = cmdIAC
				kept++
				t.state = stateData
			case cmdWill, cmdWont, cmdDo, cmdDont:
				t.cmd = b
				t.state = stateOption
			case cmdSB:
				t.subOpt = 0
				t.subHasOpt = false
				t.subBuf = t.subBuf[:0]
				t.state = stateSub
			default:
				// NOP, GA, and friends carry no payload.
				t.state = stateData
			}

		case stateOption:
			t.respond(t.cmd, b)
			t.state = stateData

		case stateSub:
			if b == cmdIAC {
				t.state = stateSubIAC
				continue
			}
			if !t.subHasOpt {
				t.subOpt = b
				t.subHasOpt = true
				continue
			}
			t.subBuf = append(t.subBuf, b)

		case stateSubIAC:
			if b == cmdSE {
				t.handleSubnegotiation(t.subOpt, t.subBuf)
				t.state = stateData
				continue
			}
			if b == cmdIAC {
				t.subBuf = append(t.subBuf, cmdIAC)
			}
			t.state = stateSub
		}
	}
	return kept
}

// respond answers a single WILL/WONT/DO/DONT request. Each (command,
// option) pair is answered at most once.
func (t *Telnet) respond(cmd, opt byte) {
	key := [2]byte{cmd, opt}
	if t.answered[key] {
		return
	}
	t.answered[key] = true

	var reply byte
	switch cmd {
	case cmdWill:
		// Accept the server driving echo and go-ahead suppression;
		// refuse everything else.
		if opt == optEcho || opt == optSuppressGoAhead {
			reply = cmdDo
		} else {
			reply = cmdDont
		}
	case cmdDo:
		// The line editor owns local echo, so refuse DO ECHO.
		if opt == optSuppressGoAhead || opt == optTerminalType {
			reply = cmdWill
		} else {
			reply = cmdWont
		}
	case cmdWont:
		reply = cmdDont
	case cmdDont:
		reply = cmdWont
	default:
		return
	}

	t.log.Debug("option %d: server %d, replying %d", opt, cmd, reply)
	t.sendCommand(reply, opt)
}

// handleSubnegotiation answers TERMINAL-TYPE SEND with the announced
// terminal type. Other subnegotiations are ignored.
func (t *Telnet) handleSubnegotiation(opt byte, data []byte) {
	if opt != optTerminalType {
		return
	}
	if len(data) == 0 || data[0] != ttypeSend {
		return
	}

	t.log.Debug("answering TERMINAL-TYPE with %s", termType)

	reply := []byte{cmdIAC, cmdSB, optTerminalType, ttypeIs}
	reply = append(reply, []byte(termType)...)
	reply = append(reply, cmdIAC, cmdSE)

	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	if _, err := t.conn.Write(reply); err != nil {
		t.log.Warn("subnegotiation reply failed: %v", err)
	}
}

// sendCommand writes a three-byte IAC command.
func (t *Telnet) sendCommand(cmd, opt byte) {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	if _, err := t.conn.Write([]byte{cmdIAC, cmd, opt}); err != nil {
		t.log.Warn("negotiation reply failed: %v", err)
	}
}

// Write sends bytes to the remote, doubling any literal 255 so it is
// not taken as an IAC.
func (t *Telnet) Write(p []byte) (int, error) {
	if !t.IsConnected() {
		return 0, ErrNotConnected
	}

	escaped := make([]byte, 0, len(p))
	for _, b := range p {
		escaped = append(escaped, b)
		if b == cmdIAC {
			escaped = append(escaped, cmdIAC)
		}
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	if _, err := t.conn.Write(escaped); err != nil {
		t.markDisconnected()
		return 0, err
	}
	return len(p), nil
}

// Close tears down the connection. Safe to call more than once.
func (t *Telnet) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.connected {
		return nil
	}
	t.connected = false
	return t.conn.Close()
}

func (t *Telnet) markDisconnected() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.connected = false
}
