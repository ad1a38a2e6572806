package backend

import (
	"sync"

	"github.com/gdamore/tcell/v2"

	"github.com/dshills/taskdash/internal/renderer/core"
)

// TcellTerminal implements Terminal on a full-screen tcell.Screen.
// The dashboard owns the whole alternate screen, so the cursor position is
// always the top-left corner and scrolling is never required.
type TcellTerminal struct {
	mu     sync.Mutex
	screen tcell.Screen

	row, col int

	resizeCh chan ResizeEvent
	quitCh   chan struct{}
	quitOnce sync.Once
	doneCh   chan struct{}

	initialized bool
	finalized   bool
}

// NewTcellTerminal creates a terminal backend on the real screen.
func NewTcellTerminal() (*TcellTerminal, error) {
	screen, err := tcell.NewScreen()
	if err != nil {
		return nil, err
	}
	return NewTcellTerminalWithScreen(screen), nil
}

// NewTcellTerminalWithScreen wraps an existing screen, e.g. a tcell.SimulationScreen.
func NewTcellTerminalWithScreen(screen tcell.Screen) *TcellTerminal {
	return &TcellTerminal{
		screen:   screen,
		resizeCh: make(chan ResizeEvent, 1),
		quitCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

func (t *TcellTerminal) Init() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.initialized {
		return nil
	}
	if err := t.screen.Init(); err != nil {
		return err
	}
	t.screen.HideCursor()
	t.screen.Clear()

	go t.pollEvents()

	t.initialized = true
	return nil
}

// pollEvents runs until the screen is finalized, at which point PollEvent returns nil.
func (t *TcellTerminal) pollEvents() {
	defer close(t.doneCh)

	for {
		ev := t.screen.PollEvent()
		if ev == nil {
			return
		}
		switch e := ev.(type) {
		case *tcell.EventResize:
			w, h := e.Size()
			sendLatest(t.resizeCh, ResizeEvent{Width: w, Height: h})
		case *tcell.EventKey:
			if isQuitKey(e) {
				t.quitOnce.Do(func() { close(t.quitCh) })
			}
		}
	}
}

func isQuitKey(e *tcell.EventKey) bool {
	switch e.Key() {
	case tcell.KeyCtrlC, tcell.KeyEscape:
		return true
	case tcell.KeyRune:
		return e.Rune() == 'q'
	}
	return false
}

func (t *TcellTerminal) Fini() {
	t.mu.Lock()
	if !t.initialized || t.finalized {
		t.mu.Unlock()
		return
	}
	t.finalized = true
	t.mu.Unlock()

	t.screen.Fini()
	<-t.doneCh
}

func (t *TcellTerminal) Size() (int, int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	w, h := t.screen.Size()
	return w, h, nil
}

func (t *TcellTerminal) CursorPosition() (int, int, error) {
	return 0, 0, nil
}

func (t *TcellTerminal) MoveTo(row, col int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.row = row
	t.col = col
}

func (t *TcellTerminal) Print(cell core.Cell) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if cell.IsContinuation() {
		return
	}
	t.screen.SetContent(t.col, t.row, cell.Rune, nil, convertStyle(cell.Style))
	t.col += max(cell.Width, 1)
}

func (t *TcellTerminal) Newline() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.row++
	t.col = 0
}

func (t *TcellTerminal) ScrollUp(int) {}

func (t *TcellTerminal) ClearRegion(rect core.ScreenRect) {
	t.mu.Lock()
	defer t.mu.Unlock()

	width, height := t.screen.Size()
	for y := rect.Top; y < rect.Bottom && y < height; y++ {
		for x := rect.Left; x < rect.Right && x < width; x++ {
			if x >= 0 && y >= 0 {
				t.screen.SetContent(x, y, ' ', nil, tcell.StyleDefault)
			}
		}
	}
}

func (t *TcellTerminal) Flush() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.screen.Show()
	return nil
}

func (t *TcellTerminal) Resizes() <-chan ResizeEvent {
	return t.resizeCh
}

// QuitRequests implements Quitter; it is closed on Ctrl-C, Esc or 'q'.
func (t *TcellTerminal) QuitRequests() <-chan struct{} {
	return t.quitCh
}

// convertStyle converts our Style to tcell.Style.
func convertStyle(s core.Style) tcell.Style {
	style := tcell.StyleDefault

	if !s.Foreground.IsDefault() {
		style = style.Foreground(convertColor(s.Foreground))
	}
	if !s.Background.IsDefault() {
		style = style.Background(convertColor(s.Background))
	}

	if s.Attributes.Has(core.AttrBold) {
		style = style.Bold(true)
	}
	if s.Attributes.Has(core.AttrDim) {
		style = style.Dim(true)
	}
	if s.Attributes.Has(core.AttrItalic) {
		style = style.Italic(true)
	}
	if s.Attributes.Has(core.AttrUnderline) {
		style = style.Underline(true)
	}
	if s.Attributes.Has(core.AttrReverse) {
		style = style.Reverse(true)
	}

	return style
}

func convertColor(c core.Color) tcell.Color {
	if c.Indexed {
		return tcell.PaletteColor(int(c.R))
	}
	return tcell.NewRGBColor(int32(c.R), int32(c.G), int32(c.B))
}
