package viewport

import (
	"errors"
	"testing"

	"github.com/dshills/taskdash/internal/renderer/backend"
)

func TestVirtualSize(t *testing.T) {
	tests := []struct {
		physical, border, want int
	}{
		{40, 5, 35},
		{10, 5, 5},
		{5, 5, 0},
		{3, 5, 0},
		{0, 5, 0},
		{0, 0, 0},
		{12, 0, 12},
	}

	for _, tt := range tests {
		if got := VirtualSize(tt.physical, tt.border); got != tt.want {
			t.Errorf("VirtualSize(%d, %d) = %d, want %d", tt.physical, tt.border, got, tt.want)
		}
	}
}

func TestDetectComputesVirtualSize(t *testing.T) {
	v := New(5)
	term := backend.NewRecorder(40, 10)

	changed, err := v.Detect(term)
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	if !changed {
		t.Error("first detection from empty viewport should report a change")
	}

	w, h := v.Size()
	if w != 35 || h != 5 {
		t.Errorf("expected virtual size (35, 5), got (%d, %d)", w, h)
	}
	pw, ph := v.PhysicalSize()
	if pw != 40 || ph != 10 {
		t.Errorf("expected physical size (40, 10), got (%d, %d)", pw, ph)
	}
}

func TestDetectReportsChangeOnce(t *testing.T) {
	v := New(5)
	term := backend.NewRecorder(40, 10)
	v.Detect(term)

	term.Resize(50, 12)
	changed, _ := v.Detect(term)
	if !changed {
		t.Error("resize should be reported")
	}

	changed, _ = v.Detect(term)
	if changed {
		t.Error("second detection with the same size should not report a change")
	}
}

func TestDetectZeroSize(t *testing.T) {
	v := New(5)
	term := backend.NewRecorder(0, 0)

	changed, err := v.Detect(term)
	if err != nil {
		t.Fatalf("zero-size terminal should not fail: %v", err)
	}
	if changed {
		t.Error("virtual size stays 0x0, so nothing changed")
	}
	w, h := v.Size()
	if w != 0 || h != 0 {
		t.Errorf("expected (0, 0), got (%d, %d)", w, h)
	}
}

func TestDetectPropagatesSizeError(t *testing.T) {
	v := New(5)
	term := backend.NewRecorder(40, 10)
	boom := errors.New("no tty")
	term.FailSize(boom)

	if _, err := v.Detect(term); !errors.Is(err, boom) {
		t.Errorf("expected wrapped size error, got %v", err)
	}
}

func TestUpdateOriginFits(t *testing.T) {
	v := New(5)
	term := backend.NewRecorder(40, 10)
	v.Detect(term)
	term.SetCursor(2, 0)

	scrolled, err := v.UpdateOrigin(term)
	if err != nil {
		t.Fatalf("UpdateOrigin failed: %v", err)
	}
	if scrolled {
		t.Error("viewport at row 2 with height 5 fits in 10 rows")
	}
	row, col := v.Origin()
	if row != 2 || col != 0 {
		t.Errorf("expected origin (2, 0), got (%d, %d)", row, col)
	}
}

func TestUpdateOriginScrolls(t *testing.T) {
	v := New(5)
	term := backend.NewRecorder(40, 10)
	v.Detect(term)
	term.SetCursor(8, 0)

	scrolled, err := v.UpdateOrigin(term)
	if err != nil {
		t.Fatalf("UpdateOrigin failed: %v", err)
	}
	if !scrolled {
		t.Fatal("8+5 > 10 must scroll")
	}

	row, _ := v.Origin()
	if row != 4 {
		t.Errorf("expected origin row 10-5-1=4, got %d", row)
	}

	var newlines, scrolls int
	for _, op := range term.Ops() {
		switch op.Kind {
		case backend.OpNewline:
			newlines++
		case backend.OpScrollUp:
			scrolls++
			if op.N != 5 {
				t.Errorf("expected scroll-up by virtual height 5, got %d", op.N)
			}
		}
	}
	if newlines != 5 {
		t.Errorf("expected overflow(3)+2 newlines, got %d", newlines)
	}
	if scrolls != 1 {
		t.Errorf("expected one scroll-up, got %d", scrolls)
	}
}

func TestUpdateOriginClampsColumn(t *testing.T) {
	v := New(5)
	term := backend.NewRecorder(40, 10)
	v.Detect(term)
	term.SetCursor(0, 30)

	if _, err := v.UpdateOrigin(term); err != nil {
		t.Fatalf("UpdateOrigin failed: %v", err)
	}
	_, col := v.Origin()
	if col != 5 {
		t.Errorf("expected column clamped to 40-35=5, got %d", col)
	}
}

func TestUpdateOriginCursorError(t *testing.T) {
	v := New(5)
	term := backend.NewRecorder(40, 10)
	boom := errors.New("no reply")
	term.FailCursor(boom)

	if _, err := v.UpdateOrigin(term); !errors.Is(err, boom) {
		t.Errorf("expected wrapped cursor error, got %v", err)
	}
}

func TestClampOrigin(t *testing.T) {
	v := New(5)
	term := backend.NewRecorder(40, 20)
	v.Detect(term)
	v.SetOrigin(10, 0)

	term.Resize(40, 12)
	v.Detect(term)

	if !v.ClampOrigin() {
		t.Fatal("origin 10 with height 7 in 12 rows should be clamped")
	}
	row, _ := v.Origin()
	if row != 4 {
		t.Errorf("expected origin 12-7-1=4, got %d", row)
	}
	if v.ClampOrigin() {
		t.Error("second clamp should be a no-op")
	}
}

func TestStatus(t *testing.T) {
	v := New(5)
	v.Detect(backend.NewRecorder(40, 10))
	v.SetOrigin(3, 1)

	s := v.Status()
	want := Status{
		PhysicalWidth:  40,
		PhysicalHeight: 10,
		VirtualWidth:   35,
		VirtualHeight:  5,
		OriginRow:      3,
		OriginCol:      1,
	}
	if s != want {
		t.Errorf("expected %+v, got %+v", want, s)
	}
	if s.String() != "physical 40x10, virtual 35x5, origin (3, 1)" {
		t.Errorf("unexpected status string %q", s.String())
	}
}

func TestRect(t *testing.T) {
	v := New(5)
	v.Detect(backend.NewRecorder(40, 10))
	v.SetOrigin(2, 0)

	r := v.Rect()
	if r.Top != 2 || r.Bottom != 7 || r.Left != 0 || r.Right != 35 {
		t.Errorf("unexpected rect %+v", r)
	}
}
