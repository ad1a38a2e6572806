package backend

import (
	"errors"
	"testing"

	"github.com/dshills/taskdash/internal/renderer/core"
)

func TestRecorderInit(t *testing.T) {
	r := NewRecorder(80, 24)
	if err := r.Init(); err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	w, h, err := r.Size()
	if err != nil {
		t.Fatalf("Size failed: %v", err)
	}
	if w != 80 || h != 24 {
		t.Errorf("expected size (80, 24), got (%d, %d)", w, h)
	}
}

func TestRecorderPrintTracksScreen(t *testing.T) {
	r := NewRecorder(10, 3)

	r.MoveTo(1, 2)
	r.Print(core.NewCell('A'))
	r.Print(core.NewCell('中'))
	r.Print(core.NewCell('B'))

	if got := r.RuneAt(1, 2); got != 'A' {
		t.Errorf("expected 'A' at (1,2), got %q", got)
	}
	if got := r.RuneAt(1, 3); got != '中' {
		t.Errorf("expected wide glyph at (1,3), got %q", got)
	}
	if got := r.RuneAt(1, 4); got != 0 {
		t.Errorf("expected continuation at (1,4), got %q", got)
	}
	if got := r.RuneAt(1, 5); got != 'B' {
		t.Errorf("wide glyph should advance cursor by two, got %q at (1,5)", got)
	}

	prints := r.Prints()
	if len(prints) != 3 {
		t.Fatalf("expected 3 prints, got %d", len(prints))
	}
	if prints[0].Row != 1 || prints[0].Col != 2 {
		t.Errorf("first print recorded at (%d,%d)", prints[0].Row, prints[0].Col)
	}
}

func TestRecorderClearRegion(t *testing.T) {
	r := NewRecorder(5, 5)
	r.MoveTo(2, 2)
	r.Print(core.NewCell('x'))

	r.ClearRegion(core.RectFromSize(1, 1, 3, 3))

	if got := r.RuneAt(2, 2); got != ' ' {
		t.Errorf("expected cleared cell, got %q", got)
	}
}

func TestRecorderNewlineScrollsAtBottom(t *testing.T) {
	r := NewRecorder(3, 2)
	r.MoveTo(0, 0)
	r.Print(core.NewCell('t'))
	r.MoveTo(1, 0)

	r.Newline()

	if got := r.RuneAt(0, 0); got != ' ' {
		t.Errorf("top row should have scrolled off, got %q", got)
	}
	row, col, _ := r.CursorPosition()
	if row != 1 || col != 0 {
		t.Errorf("cursor should stay on last row, got (%d,%d)", row, col)
	}
}

func TestRecorderScrollUp(t *testing.T) {
	r := NewRecorder(3, 3)
	r.MoveTo(2, 0)
	r.Print(core.NewCell('z'))

	r.ScrollUp(2)

	if got := r.RuneAt(0, 0); got != 'z' {
		t.Errorf("expected bottom glyph scrolled to top, got %q", got)
	}
}

func TestRecorderFailures(t *testing.T) {
	r := NewRecorder(10, 10)
	boom := errors.New("boom")

	r.FailSize(boom)
	if _, _, err := r.Size(); !errors.Is(err, boom) {
		t.Errorf("expected size error, got %v", err)
	}

	r.FailCursor(boom)
	if _, _, err := r.CursorPosition(); !errors.Is(err, boom) {
		t.Errorf("expected cursor error, got %v", err)
	}

	r.FailFlush(boom)
	if err := r.Flush(); !errors.Is(err, boom) {
		t.Errorf("expected flush error, got %v", err)
	}
}

func TestRecorderResizePostsEvent(t *testing.T) {
	r := NewRecorder(10, 10)

	r.Resize(20, 5)
	r.Resize(30, 6)

	ev := <-r.Resizes()
	if ev.Width != 30 || ev.Height != 6 {
		t.Errorf("expected latest resize (30,6), got %+v", ev)
	}
	w, h, _ := r.Size()
	if w != 30 || h != 6 {
		t.Errorf("expected size (30,6), got (%d,%d)", w, h)
	}
}

func TestRecorderReset(t *testing.T) {
	r := NewRecorder(4, 4)
	r.MoveTo(0, 0)
	r.Flush()

	r.Reset()

	if len(r.Ops()) != 0 || r.Flushes() != 0 {
		t.Error("Reset should discard operations and flush count")
	}
}

func TestOpKindString(t *testing.T) {
	if OpPrint.String() != "print" || OpKind(99).String() != "unknown" {
		t.Error("unexpected OpKind names")
	}
}
