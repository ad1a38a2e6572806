package frame

import (
	"fmt"

	"github.com/dshills/taskdash/internal/renderer/core"
)

// Canvas is the drawing surface handed to content during staging.
// Coordinates are viewport-relative and row-major.
type Canvas interface {
	// Size returns the drawable dimensions.
	Size() (width, height int)

	// Set stages a glyph at (row, col). Writes outside the grid are a caller
	// bug: they are dropped, not clamped onto the nearest edge cell, and
	// they panic when built with the taskdash_debug tag. Continuation cells
	// are reserved for the commit algorithm and are ignored.
	Set(row, col int, cell core.Cell)

	// SetString stages s starting at (row, col), clipping at the right edge.
	// The column after a wide glyph is left untouched. It returns the number
	// of columns consumed.
	SetString(row, col int, s string, style core.Style) int
}

// canvas adapts the staged grid of a Pair to Canvas.
type canvas struct {
	p *Pair
}

func (c canvas) Size() (int, int) {
	return c.p.width, c.p.height
}

func (c canvas) Set(row, col int, cell core.Cell) {
	if cell.IsContinuation() {
		return
	}
	if !c.p.inBounds(row, col) {
		if debugAsserts {
			panic(fmt.Sprintf("frame: staged write at (%d, %d) outside %dx%d grid", row, col, c.p.width, c.p.height))
		}
		return
	}
	c.p.staged[row*c.p.width+col] = slot{cell: cell, set: true}
}

func (c canvas) SetString(row, col int, s string, style core.Style) int {
	start := col
	for _, r := range s {
		w := core.RuneWidth(r)
		if w == 0 {
			continue
		}
		if col+w > c.p.width {
			break
		}
		c.Set(row, col, core.Cell{Rune: r, Width: w, Style: style})
		col += w
	}
	return col - start
}
