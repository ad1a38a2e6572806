// Package viewport provides viewport management for the renderer.
//
// The viewport is the drawing rectangle inside the physical terminal: the
// physical size minus a fixed border, anchored at an origin derived from the
// cursor position when rendering starts.
package viewport

import (
	"fmt"
	"sync"

	"github.com/dshills/taskdash/internal/renderer/backend"
	"github.com/dshills/taskdash/internal/renderer/core"
)

// DefaultBorder is the number of rows and columns reserved around the viewport.
const DefaultBorder = 5

// GeometrySource reports physical terminal geometry.
type GeometrySource interface {
	Size() (width, height int, err error)
	CursorPosition() (row, col int, err error)
}

// Status is a snapshot of viewport geometry for diagnostics.
type Status struct {
	PhysicalWidth  int
	PhysicalHeight int
	VirtualWidth   int
	VirtualHeight  int
	OriginRow      int
	OriginCol      int
}

// String renders the status as a human-readable report.
func (s Status) String() string {
	return fmt.Sprintf("physical %dx%d, virtual %dx%d, origin (%d, %d)",
		s.PhysicalWidth, s.PhysicalHeight,
		s.VirtualWidth, s.VirtualHeight,
		s.OriginRow, s.OriginCol)
}

// Viewport tracks physical and virtual dimensions and the drawing origin.
// It is mutated only by the render loop; the lock exists so Status can be
// read from other goroutines.
type Viewport struct {
	mu sync.RWMutex

	border int

	physWidth  int
	physHeight int
	virtWidth  int
	virtHeight int

	originRow int
	originCol int
}

// New creates an empty viewport with the given border. Negative borders are treated as zero.
func New(border int) *Viewport {
	return &Viewport{border: max(border, 0)}
}

// VirtualSize subtracts the border from a physical dimension, clamping at zero.
func VirtualSize(physical, border int) int {
	return max(physical, border) - border
}

// Detect queries the physical size and recomputes the virtual size.
// It reports whether either virtual dimension changed since the last call.
func (v *Viewport) Detect(p GeometrySource) (bool, error) {
	w, h, err := p.Size()
	if err != nil {
		return false, fmt.Errorf("detect terminal size: %w", err)
	}
	w, h = max(w, 0), max(h, 0)

	v.mu.Lock()
	defer v.mu.Unlock()

	v.physWidth = w
	v.physHeight = h

	oldW, oldH := v.virtWidth, v.virtHeight
	v.virtWidth = VirtualSize(w, v.border)
	v.virtHeight = VirtualSize(h, v.border)

	return oldW != v.virtWidth || oldH != v.virtHeight, nil
}

// UpdateOrigin anchors the viewport at the cursor. If the viewport plus the
// line the cursor is parked on afterwards would run past the bottom of the
// screen, the terminal is scrolled to make room and the origin moved up.
func (v *Viewport) UpdateOrigin(t backend.Terminal) (bool, error) {
	if err := t.Flush(); err != nil {
		return false, fmt.Errorf("flush before cursor query: %w", err)
	}
	row, col, err := t.CursorPosition()
	if err != nil {
		return false, fmt.Errorf("query cursor position: %w", err)
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	v.originRow = max(row, 0)
	v.originCol = max(min(col, v.physWidth-v.virtWidth), 0)

	if v.originRow+v.virtHeight < v.physHeight {
		return false, nil
	}

	overflow := v.originRow + v.virtHeight - v.physHeight
	for i := 0; i <= overflow+1; i++ {
		t.Newline()
	}
	if err := t.Flush(); err != nil {
		return false, fmt.Errorf("scroll terminal: %w", err)
	}

	t.ScrollUp(v.virtHeight)
	v.originRow = max(v.physHeight-v.virtHeight-1, 0)
	t.MoveTo(v.originRow, v.originCol)
	if err := t.Flush(); err != nil {
		return false, fmt.Errorf("reposition cursor: %w", err)
	}
	return true, nil
}

// ClampOrigin moves the origin up, without scrolling, when a shrink left the
// viewport running past the bottom or right edge. It reports whether the
// origin moved.
func (v *Viewport) ClampOrigin() bool {
	v.mu.Lock()
	defer v.mu.Unlock()

	moved := false
	if v.originRow+v.virtHeight >= v.physHeight {
		row := max(v.physHeight-v.virtHeight-1, 0)
		moved = row != v.originRow
		v.originRow = row
	}
	if v.originCol+v.virtWidth > v.physWidth {
		col := max(v.physWidth-v.virtWidth, 0)
		moved = moved || col != v.originCol
		v.originCol = col
	}
	return moved
}

// Size returns the virtual (drawable) dimensions.
func (v *Viewport) Size() (width, height int) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.virtWidth, v.virtHeight
}

// PhysicalSize returns the last detected physical dimensions.
func (v *Viewport) PhysicalSize() (width, height int) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.physWidth, v.physHeight
}

// Origin returns the terminal position of the viewport's top-left cell.
func (v *Viewport) Origin() (row, col int) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.originRow, v.originCol
}

// SetOrigin places the viewport explicitly.
func (v *Viewport) SetOrigin(row, col int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.originRow = max(row, 0)
	v.originCol = max(col, 0)
}

// Rect returns the viewport rectangle in physical coordinates.
func (v *Viewport) Rect() core.ScreenRect {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return core.RectFromSize(v.originRow, v.originCol, v.virtHeight, v.virtWidth)
}

// Status returns a snapshot of the current geometry.
func (v *Viewport) Status() Status {
	v.mu.RLock()
	defer v.mu.RUnlock()

	return Status{
		PhysicalWidth:  v.physWidth,
		PhysicalHeight: v.physHeight,
		VirtualWidth:   v.virtWidth,
		VirtualHeight:  v.virtHeight,
		OriginRow:      v.originRow,
		OriginCol:      v.originCol,
	}
}
