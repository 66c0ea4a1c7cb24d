// Package editor implements local line editing for a raw-mode terminal
// session.
//
// The LineEditor owns one in-progress input line: its buffer, cursor,
// and an escape-sequence parser for arrow keys. It emits exactly the
// display updates needed to keep the visible line consistent with the
// buffer, redrawing only the suffix affected by an edit rather than the
// whole line.
package editor

import "strings"

// Cursor-control sequences emitted to the display.
const (
	cursorLeft  = "\x1b[D"
	cursorRight = "\x1b[C"
	clearToEOL  = "\x1b[K"
)

// Control bytes recognized in the normal state.
const (
	ctrlA     = 1   // beginning-of-line
	ctrlB     = 2   // backward-char
	ctrlD     = 4   // forward-delete
	ctrlE     = 5   // end-of-line
	ctrlF     = 6   // forward-char
	backspace = 8   // BS
	lineFeed  = 10  // LF
	ctrlK     = 11  // kill-to-end-of-line
	carriage  = 13  // CR
	escape    = 27  // ESC
	del       = 127 // DEL, also backspace
)

// parseState tracks escape-sequence parsing.
type parseState uint8

const (
	// stateNormal is ordinary character input.
	stateNormal parseState = iota
	// stateEscSeen means ESC was received; waiting for '['.
	stateEscSeen
	// stateCSISeen means ESC [ was received; waiting for the final byte.
	stateCSISeen
)

// String returns the state name.
func (s parseState) String() string {
	switch s {
	case stateNormal:
		return "normal"
	case stateEscSeen:
		return "esc-seen"
	case stateCSISeen:
		return "csi-seen"
	default:
		return "unknown"
	}
}

// Display receives the editor's redraw output. The session's terminal
// adapter satisfies it; tests use an in-memory fake.
type Display interface {
	WriteString(s string) error
}

// LineEditor maintains one line's editable text.
// It is used from a single goroutine and needs no synchronization.
type LineEditor struct {
	out    Display
	buf    []byte
	cursor int
	state  parseState
}

// New creates a line editor drawing to the given display.
func New(out Display) *LineEditor {
	return &LineEditor{out: out}
}

// ProcessByte consumes one decoded input unit. It returns true when a
// complete line is ready to transmit; the buffer stays populated until
// Reset is called.
func (e *LineEditor) ProcessByte(b byte) (bool, error) {
	switch e.state {
	case stateEscSeen:
		return false, e.processEscSeen(b)
	case stateCSISeen:
		return false, e.processCSISeen(b)
	default:
		return e.processNormal(b)
	}
}

// Line returns the full buffer contents regardless of cursor position.
func (e *LineEditor) Line() string {
	return string(e.buf)
}

// Cursor returns the current cursor position in [0, len].
func (e *LineEditor) Cursor() int {
	return e.cursor
}

// Reset clears the buffer, cursor, and parse state for a new line.
func (e *LineEditor) Reset() {
	e.buf = e.buf[:0]
	e.cursor = 0
	e.state = stateNormal
}

func (e *LineEditor) processNormal(b byte) (bool, error) {
	switch {
	case b == escape:
		e.state = stateEscSeen
		return false, nil
	case b == carriage || b == lineFeed:
		return true, e.out.WriteString("\r\n")
	case b == backspace || b == del:
		return false, e.deleteBeforeCursor()
	case b == ctrlA:
		return false, e.beginningOfLine()
	case b == ctrlE:
		return false, e.endOfLine()
	case b == ctrlB:
		return false, e.backwardChar()
	case b == ctrlF:
		return false, e.forwardChar()
	case b == ctrlK:
		return false, e.killToEnd()
	case b == ctrlD:
		return false, e.forwardDelete()
	case b >= 0x20 && b <= 0x7E:
		return false, e.insert(b)
	default:
		// Unrecognized control code: ignored, no state change.
		return false, nil
	}
}

func (e *LineEditor) processEscSeen(b byte) error {
	if b == '[' {
		e.state = stateCSISeen
		return nil
	}
	// Malformed sequence: both the ESC and this byte are absorbed
	// without touching the buffer.
	e.state = stateNormal
	return nil
}

func (e *LineEditor) processCSISeen(b byte) error {
	e.state = stateNormal

	switch b {
	case 'C':
		return e.forwardChar()
	case 'D':
		return e.backwardChar()
	case 'A', 'B':
		// Up/down reserved for history navigation; not implemented.
		return nil
	default:
		return nil
	}
}

// insert places a printable character at the cursor. Appending at the
// end is a plain echo; inserting mid-line rewrites only the suffix and
// walks the cursor back to its logical column.
func (e *LineEditor) insert(b byte) error {
	if e.cursor == len(e.buf) {
		e.buf = append(e.buf, b)
		e.cursor++
		return e.out.WriteString(string(b))
	}

	e.buf = append(e.buf, 0)
	copy(e.buf[e.cursor+1:], e.buf[e.cursor:])
	e.buf[e.cursor] = b
	e.cursor++

	var sb strings.Builder
	sb.Write(e.buf[e.cursor-1:])
	writeCursorLeft(&sb, len(e.buf)-e.cursor)
	return e.out.WriteString(sb.String())
}

// deleteBeforeCursor removes the character before the cursor, rewrites
// the suffix, clears the now-vacant trailing column, and repositions.
func (e *LineEditor) deleteBeforeCursor() error {
	if e.cursor == 0 {
		return nil
	}

	e.buf = append(e.buf[:e.cursor-1], e.buf[e.cursor:]...)
	e.cursor--

	var sb strings.Builder
	sb.WriteString(cursorLeft)
	if e.cursor < len(e.buf) {
		sb.Write(e.buf[e.cursor:])
	}
	sb.WriteString(clearToEOL)
	writeCursorLeft(&sb, len(e.buf)-e.cursor)
	return e.out.WriteString(sb.String())
}

// forwardDelete removes the character at the cursor; the cursor column
// does not move.
func (e *LineEditor) forwardDelete() error {
	if e.cursor >= len(e.buf) {
		return nil
	}

	e.buf = append(e.buf[:e.cursor], e.buf[e.cursor+1:]...)

	var sb strings.Builder
	if e.cursor < len(e.buf) {
		sb.Write(e.buf[e.cursor:])
	}
	sb.WriteString(clearToEOL)
	writeCursorLeft(&sb, len(e.buf)-e.cursor)
	return e.out.WriteString(sb.String())
}

// killToEnd truncates the buffer at the cursor and clears the display
// to end of line.
func (e *LineEditor) killToEnd() error {
	if e.cursor >= len(e.buf) {
		return nil
	}
	e.buf = e.buf[:e.cursor]
	return e.out.WriteString(clearToEOL)
}

func (e *LineEditor) beginningOfLine() error {
	var sb strings.Builder
	for e.cursor > 0 {
		sb.WriteString(cursorLeft)
		e.cursor--
	}
	if sb.Len() == 0 {
		return nil
	}
	return e.out.WriteString(sb.String())
}

func (e *LineEditor) endOfLine() error {
	var sb strings.Builder
	for e.cursor < len(e.buf) {
		sb.WriteString(cursorRight)
		e.cursor++
	}
	if sb.Len() == 0 {
		return nil
	}
	return e.out.WriteString(sb.String())
}

func (e *LineEditor) backwardChar() error {
	if e.cursor == 0 {
		return nil
	}
	e.cursor--
	return e.out.WriteString(cursorLeft)
}

func (e *LineEditor) forwardChar() error {
	if e.cursor >= len(e.buf) {
		return nil
	}
	e.cursor++
	return e.out.WriteString(cursorRight)
}

func writeCursorLeft(sb *strings.Builder, n int) {
	for i := 0; i < n; i++ {
		sb.WriteString(cursorLeft)
	}
}
