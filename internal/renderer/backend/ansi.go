package backend

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"sync"
	"time"

	"golang.org/x/term"

	"github.com/dshills/taskdash/internal/renderer/core"
)

// Pre-allocated ANSI sequence fragments.
var (
	csi           = []byte("\x1b[")
	csiSGR0       = []byte("\x1b[0m")
	csiCursorHide = []byte("\x1b[?25l")
	csiCursorShow = []byte("\x1b[?25h")
	csiQueryPos   = []byte("\x1b[6n")
)

// outputBufferSize is the initial capacity of the frame queue. Larger
// frames grow it and are still written in one call.
const outputBufferSize = 128 * 1024

// ErrCursorTimeout is returned when the terminal does not answer a cursor position query.
var ErrCursorTimeout = errors.New("cursor position query timed out")

// ANSITerminal draws inline (below the shell prompt, no alternate screen)
// using raw ANSI escape sequences.
type ANSITerminal struct {
	mu sync.Mutex

	in  io.Reader
	out io.Writer

	// w queues everything until flush, which hands it to out in one Write
	// so a frame never reaches the terminal in pieces.
	w bytes.Buffer

	inFd  int
	outFd int

	sizeFn        func() (int, int, error)
	cursorTimeout time.Duration

	// pending is a cursor reply reader still blocked after a timeout.
	pending chan cursorReply

	lastStyle core.Style
	styleSet  bool

	resizeCh chan ResizeEvent
	stopCh   chan struct{}
	doneCh   chan struct{}

	initialized bool
	finalized   bool
}

// NewANSITerminal creates a terminal bound to stdin/stdout.
func NewANSITerminal() *ANSITerminal {
	t := newANSI(os.Stdin, os.Stdout)
	t.inFd = int(os.Stdin.Fd())
	t.outFd = int(os.Stdout.Fd())
	t.sizeFn = func() (int, int, error) {
		return term.GetSize(t.outFd)
	}
	return t
}

// NewANSITerminalWithIO creates a terminal over arbitrary streams.
// size supplies the physical dimensions; raw mode is never entered.
func NewANSITerminalWithIO(in io.Reader, out io.Writer, size func() (int, int, error)) *ANSITerminal {
	t := newANSI(in, out)
	t.sizeFn = size
	return t
}

func newANSI(in io.Reader, out io.Writer) *ANSITerminal {
	t := &ANSITerminal{
		in:            in,
		out:           out,
		inFd:          -1,
		outFd:         -1,
		cursorTimeout: 500 * time.Millisecond,
		resizeCh:      make(chan ResizeEvent, 1),
	}
	t.w.Grow(outputBufferSize)
	return t
}

// SetCursorTimeout bounds how long CursorPosition waits for the terminal's reply.
func (t *ANSITerminal) SetCursorTimeout(d time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cursorTimeout = d
}

func (t *ANSITerminal) Init() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.initialized {
		return nil
	}
	if t.outFd >= 0 && !term.IsTerminal(t.outFd) {
		return fmt.Errorf("stdout is not a terminal")
	}

	t.w.Write(csiCursorHide)
	if err := t.flush(); err != nil {
		return err
	}

	if t.outFd >= 0 {
		t.stopCh = make(chan struct{})
		t.doneCh = make(chan struct{})
		go watchResize(t.stopCh, t.doneCh, t.sizeFn, t.resizeCh)
	}

	t.initialized = true
	return nil
}

func (t *ANSITerminal) Fini() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.initialized || t.finalized {
		return
	}

	if t.stopCh != nil {
		close(t.stopCh)
		<-t.doneCh
	}

	// A reader left behind by a timed-out cursor query stays blocked on
	// stdin until the process exits. Take its reply if it already arrived
	// so nothing it read is handed to a later owner of the terminal.
	if t.pending != nil {
		select {
		case <-t.pending:
		default:
		}
		t.pending = nil
	}

	t.w.Write(csiSGR0)
	t.w.Write(csiCursorShow)
	_ = t.flush() // best-effort; terminal may already be gone
	t.finalized = true
}

func (t *ANSITerminal) Size() (int, int, error) {
	w, h, err := t.sizeFn()
	if err != nil {
		return 0, 0, fmt.Errorf("query terminal size: %w", err)
	}
	return w, h, nil
}

// CursorPosition sends a DSR query and parses the "ESC[row;colR" reply.
// When stdin is a terminal it is switched to raw mode for the duration of
// the query so the reply is neither echoed nor line buffered.
func (t *ANSITerminal) CursorPosition() (int, int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.inFd >= 0 && term.IsTerminal(t.inFd) {
		old, err := term.MakeRaw(t.inFd)
		if err != nil {
			return 0, 0, fmt.Errorf("enter raw mode: %w", err)
		}
		defer term.Restore(t.inFd, old)
	}

	if f, ok := t.in.(*os.File); ok {
		// Not every file supports deadlines (a blocking tty may not); the
		// pending reader below covers that case.
		if f.SetReadDeadline(time.Now().Add(t.cursorTimeout)) == nil {
			defer f.SetReadDeadline(time.Time{})
		}
	}

	ch := t.pending
	if ch != nil {
		// A reader left behind by a timed-out query may have finished in
		// the meantime; its reply is stale.
		select {
		case <-ch:
			ch = nil
		default:
		}
	}

	t.w.Write(csiQueryPos)
	if err := t.flush(); err != nil {
		return 0, 0, err
	}

	if ch == nil {
		ch = make(chan cursorReply, 1)
		go func() {
			buf, err := readCursorReply(t.in)
			ch <- cursorReply{buf, err}
		}()
	}
	t.pending = nil

	select {
	case rep := <-ch:
		if rep.err != nil {
			return 0, 0, fmt.Errorf("read cursor position: %w", rep.err)
		}
		return parseCursorReply(rep.buf)
	case <-time.After(t.cursorTimeout):
		// The reader cannot be interrupted. It is kept so the next query
		// consumes its reply instead of starting a second reader.
		t.pending = ch
		return 0, 0, ErrCursorTimeout
	}
}

type cursorReply struct {
	buf []byte
	err error
}

// readCursorReply reads byte by byte until the terminating 'R'.
func readCursorReply(r io.Reader) ([]byte, error) {
	var buf []byte
	one := make([]byte, 1)
	for len(buf) < 64 {
		n, err := r.Read(one)
		if n == 1 {
			buf = append(buf, one[0])
			if one[0] == 'R' {
				return buf, nil
			}
		}
		if err != nil {
			return buf, err
		}
	}
	return buf, fmt.Errorf("malformed cursor reply %q", buf)
}

// parseCursorReply parses "ESC[row;colR" into 0-indexed coordinates.
// Bytes preceding the final escape (stray input) are ignored.
func parseCursorReply(b []byte) (int, int, error) {
	i := bytes.LastIndex(b, csi)
	if i < 0 || len(b) == 0 || b[len(b)-1] != 'R' {
		return 0, 0, fmt.Errorf("malformed cursor reply %q", b)
	}
	body := b[i+len(csi) : len(b)-1]
	sep := bytes.IndexByte(body, ';')
	if sep < 0 {
		return 0, 0, fmt.Errorf("malformed cursor reply %q", b)
	}
	row, err := strconv.Atoi(string(body[:sep]))
	if err != nil {
		return 0, 0, fmt.Errorf("malformed cursor row in %q", b)
	}
	col, err := strconv.Atoi(string(body[sep+1:]))
	if err != nil {
		return 0, 0, fmt.Errorf("malformed cursor column in %q", b)
	}
	return row - 1, col - 1, nil
}

func (t *ANSITerminal) MoveTo(row, col int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.writeCursorPos(row, col)
}

func (t *ANSITerminal) Print(cell core.Cell) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if cell.IsContinuation() {
		return
	}
	t.writeStyle(cell.Style)
	r := cell.Rune
	if r < 0x80 {
		t.w.WriteByte(byte(r))
	} else {
		t.w.WriteRune(r)
	}
}

func (t *ANSITerminal) Newline() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.w.WriteByte('\n')
}

func (t *ANSITerminal) ScrollUp(n int) {
	if n <= 0 {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	t.w.Write(csi)
	t.writeInt(n)
	t.w.WriteByte('S')
}

func (t *ANSITerminal) ClearRegion(rect core.ScreenRect) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if rect.IsEmpty() {
		return
	}
	t.resetStyle()
	for y := rect.Top; y < rect.Bottom; y++ {
		t.writeCursorPos(y, rect.Left)
		for x := rect.Left; x < rect.Right; x++ {
			t.w.WriteByte(' ')
		}
	}
}

func (t *ANSITerminal) Flush() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.resetStyle()
	return t.flush()
}

// flush writes the queue to out with a single Write. The queue is
// discarded even on error; a partial frame is never retried.
func (t *ANSITerminal) flush() error {
	if t.w.Len() == 0 {
		return nil
	}
	_, err := t.out.Write(t.w.Bytes())
	t.w.Reset()
	return err
}

func (t *ANSITerminal) Resizes() <-chan ResizeEvent {
	if t.outFd < 0 {
		return nil
	}
	return t.resizeCh
}

// writeCursorPos writes a CUP sequence (0-indexed input).
func (t *ANSITerminal) writeCursorPos(row, col int) {
	t.w.Write(csi)
	t.writeInt(row + 1)
	t.w.WriteByte(';')
	t.writeInt(col + 1)
	t.w.WriteByte('H')
}

// writeStyle emits SGR only when the style differs from the last one written.
func (t *ANSITerminal) writeStyle(s core.Style) {
	if t.styleSet && s.Equals(t.lastStyle) {
		return
	}
	if !t.styleSet && s.IsDefault() {
		return
	}

	t.w.Write(csi)
	t.w.WriteByte('0')
	if s.Attributes.Has(core.AttrBold) {
		t.w.WriteString(";1")
	}
	if s.Attributes.Has(core.AttrDim) {
		t.w.WriteString(";2")
	}
	if s.Attributes.Has(core.AttrItalic) {
		t.w.WriteString(";3")
	}
	if s.Attributes.Has(core.AttrUnderline) {
		t.w.WriteString(";4")
	}
	if s.Attributes.Has(core.AttrReverse) {
		t.w.WriteString(";7")
	}
	t.writeColor(s.Foreground, 38)
	t.writeColor(s.Background, 48)
	t.w.WriteByte('m')

	t.lastStyle = s
	t.styleSet = !s.IsDefault()
}

func (t *ANSITerminal) writeColor(c core.Color, base int) {
	if c.IsDefault() {
		return
	}
	t.w.WriteByte(';')
	t.writeInt(base)
	if c.Indexed {
		t.w.WriteString(";5;")
		t.writeInt(int(c.R))
		return
	}
	t.w.WriteString(";2;")
	t.writeInt(int(c.R))
	t.w.WriteByte(';')
	t.writeInt(int(c.G))
	t.w.WriteByte(';')
	t.writeInt(int(c.B))
}

func (t *ANSITerminal) resetStyle() {
	if t.styleSet {
		t.w.Write(csiSGR0)
		t.styleSet = false
	}
}

func (t *ANSITerminal) writeInt(n int) {
	var scratch [20]byte
	t.w.Write(strconv.AppendInt(scratch[:0], int64(max(n, 0)), 10))
}
