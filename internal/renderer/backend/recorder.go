package backend

import (
	"sync"

	"github.com/dshills/taskdash/internal/renderer/core"
)

// OpKind identifies a recorded terminal primitive.
type OpKind int

const (
	OpMoveTo OpKind = iota
	OpPrint
	OpNewline
	OpScrollUp
	OpClearRegion
	OpFlush
)

// String returns the primitive name.
func (k OpKind) String() string {
	switch k {
	case OpMoveTo:
		return "move"
	case OpPrint:
		return "print"
	case OpNewline:
		return "newline"
	case OpScrollUp:
		return "scroll"
	case OpClearRegion:
		return "clear"
	case OpFlush:
		return "flush"
	default:
		return "unknown"
	}
}

// Op is a single recorded primitive.
type Op struct {
	Kind OpKind
	Row  int
	Col  int
	N    int
	Cell core.Cell
	Rect core.ScreenRect
}

// Recorder is an in-memory terminal for testing.
// It records every primitive and keeps a model of the physical screen so
// tests can assert both on emitted operations and on what would be visible.
type Recorder struct {
	mu sync.Mutex

	width, height int
	cursorRow     int
	cursorCol     int
	screen        [][]rune

	sizeErr   error
	cursorErr error
	flushErr  error

	ops      []Op
	flushes  int
	resizeCh chan ResizeEvent
	quitCh   chan struct{}
}

// NewRecorder creates a recorder with the given physical dimensions.
func NewRecorder(width, height int) *Recorder {
	r := &Recorder{
		resizeCh: make(chan ResizeEvent, 1),
		quitCh:   make(chan struct{}),
	}
	r.resize(width, height)
	return r
}

func (r *Recorder) resize(width, height int) {
	r.width = width
	r.height = height
	r.screen = make([][]rune, height)
	for i := range r.screen {
		r.screen[i] = make([]rune, width)
		for j := range r.screen[i] {
			r.screen[i][j] = ' '
		}
	}
}

func (r *Recorder) Init() error { return nil }
func (r *Recorder) Fini()       {}

func (r *Recorder) Size() (int, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sizeErr != nil {
		return 0, 0, r.sizeErr
	}
	return r.width, r.height, nil
}

func (r *Recorder) CursorPosition() (int, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cursorErr != nil {
		return 0, 0, r.cursorErr
	}
	return r.cursorRow, r.cursorCol, nil
}

func (r *Recorder) MoveTo(row, col int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.ops = append(r.ops, Op{Kind: OpMoveTo, Row: row, Col: col})
	r.cursorRow = row
	r.cursorCol = col
}

func (r *Recorder) Print(cell core.Cell) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.ops = append(r.ops, Op{Kind: OpPrint, Row: r.cursorRow, Col: r.cursorCol, Cell: cell})
	if r.inBounds(r.cursorRow, r.cursorCol) {
		r.screen[r.cursorRow][r.cursorCol] = cell.Rune
		if cell.IsWide() && r.inBounds(r.cursorRow, r.cursorCol+1) {
			r.screen[r.cursorRow][r.cursorCol+1] = 0
		}
	}
	r.cursorCol += max(cell.Width, 1)
}

func (r *Recorder) Newline() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.ops = append(r.ops, Op{Kind: OpNewline})
	r.cursorCol = 0
	if r.cursorRow < r.height-1 {
		r.cursorRow++
		return
	}
	r.scroll(1)
}

func (r *Recorder) ScrollUp(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.ops = append(r.ops, Op{Kind: OpScrollUp, N: n})
	r.scroll(n)
}

func (r *Recorder) scroll(n int) {
	for i := 0; i < n && r.height > 0; i++ {
		blank := make([]rune, r.width)
		for j := range blank {
			blank[j] = ' '
		}
		r.screen = append(r.screen[1:], blank)
	}
}

func (r *Recorder) ClearRegion(rect core.ScreenRect) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.ops = append(r.ops, Op{Kind: OpClearRegion, Rect: rect})
	for y := rect.Top; y < rect.Bottom; y++ {
		for x := rect.Left; x < rect.Right; x++ {
			if r.inBounds(y, x) {
				r.screen[y][x] = ' '
			}
		}
	}
}

func (r *Recorder) Flush() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.ops = append(r.ops, Op{Kind: OpFlush})
	r.flushes++
	return r.flushErr
}

func (r *Recorder) Resizes() <-chan ResizeEvent {
	return r.resizeCh
}

// QuitRequests implements Quitter.
func (r *Recorder) QuitRequests() <-chan struct{} {
	return r.quitCh
}

func (r *Recorder) inBounds(row, col int) bool {
	return row >= 0 && row < r.height && col >= 0 && col < r.width
}

// Resize simulates a terminal resize and posts a ResizeEvent.
func (r *Recorder) Resize(width, height int) {
	r.mu.Lock()
	r.resize(width, height)
	r.mu.Unlock()

	sendLatest(r.resizeCh, ResizeEvent{Width: width, Height: height})
}

// SetCursor sets the position reported by CursorPosition.
func (r *Recorder) SetCursor(row, col int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.cursorRow = row
	r.cursorCol = col
}

// FailSize makes subsequent Size calls return err (nil clears it).
func (r *Recorder) FailSize(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sizeErr = err
}

// FailCursor makes subsequent CursorPosition calls return err.
func (r *Recorder) FailCursor(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cursorErr = err
}

// FailFlush makes subsequent Flush calls return err.
func (r *Recorder) FailFlush(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.flushErr = err
}

// Ops returns a copy of the recorded operations.
func (r *Recorder) Ops() []Op {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Op, len(r.ops))
	copy(out, r.ops)
	return out
}

// Prints returns only the recorded glyph writes.
func (r *Recorder) Prints() []Op {
	var out []Op
	for _, op := range r.Ops() {
		if op.Kind == OpPrint {
			out = append(out, op)
		}
	}
	return out
}

// Flushes returns how many times Flush was called.
func (r *Recorder) Flushes() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.flushes
}

// Reset discards recorded operations.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ops = nil
	r.flushes = 0
}

// RuneAt returns the rune visible at the given physical position.
// The trailing half of a wide glyph reads as 0.
func (r *Recorder) RuneAt(row, col int) rune {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.inBounds(row, col) {
		return ' '
	}
	return r.screen[row][col]
}

// RequestQuit closes the quit channel.
func (r *Recorder) RequestQuit() {
	select {
	case <-r.quitCh:
	default:
		close(r.quitCh)
	}
}
