// Package frame implements the committed/staged cell grid pair and the
// diff-based commit that reconciles them with the terminal.
package frame

import (
	"github.com/dshills/taskdash/internal/renderer/backend"
	"github.com/dshills/taskdash/internal/renderer/core"
)

// slot is an optional glyph. In the staged grid an unset slot means
// "untouched": no change requested for this cell this frame.
type slot struct {
	cell core.Cell
	set  bool
}

// Pair holds the committed grid (what the terminal shows) and the staged
// grid (what the next frame should show). Both are row-major with length
// width*height. A Pair is owned by a single goroutine.
type Pair struct {
	width, height int
	committed     []slot
	staged        []slot
}

// NewPair creates an empty grid pair.
func NewPair() *Pair {
	return &Pair{}
}

// Resize reallocates both grids for the given dimensions, reusing capacity
// when possible. The staged grid is left untouched everywhere and the
// committed grid is filled with blanks, so every staged glyph differs from
// committed on the next commit unless it is itself a blank.
func (p *Pair) Resize(width, height int) {
	width, height = max(width, 0), max(height, 0)
	size := width * height

	p.committed = resizeSlots(p.committed, size)
	p.staged = resizeSlots(p.staged, size)
	p.width = width
	p.height = height

	blank := slot{cell: core.BlankCell(), set: true}
	for i := range p.committed {
		p.committed[i] = blank
	}
	p.clearStaged()
}

func resizeSlots(s []slot, size int) []slot {
	if cap(s) < size {
		return make([]slot, size)
	}
	return s[:size]
}

// Size returns the grid dimensions.
func (p *Pair) Size() (width, height int) {
	return p.width, p.height
}

// Len returns the number of cells in each grid.
func (p *Pair) Len() int {
	return len(p.committed)
}

// StagedLen returns the length of the staged grid.
func (p *Pair) StagedLen() int {
	return len(p.staged)
}

// Stage clears the staged grid to untouched and lets draw populate it.
func (p *Pair) Stage(draw func(Canvas)) {
	p.clearStaged()
	if draw != nil {
		draw(canvas{p: p})
	}
}

func (p *Pair) clearStaged() {
	for i := range p.staged {
		p.staged[i] = slot{}
	}
}

// Commit writes every staged glyph that differs from the committed grid,
// parks the cursor below the viewport and flushes once. It returns the
// number of glyphs written. On success the grids are swapped and the new
// staged grid is cleared for the next frame.
//
// Untouched cells keep the committed glyph. A wide glyph marks the next
// column as its continuation; replacing a wide glyph with a narrow one
// blanks the orphaned second column unless the frame staged it.
func (p *Pair) Commit(t backend.Terminal, originRow, originCol int) (int, error) {
	writes := 0
	blank := slot{cell: core.BlankCell(), set: true}

	for row := 0; row < p.height; row++ {
		rowStart := row * p.width
		for col := 0; col < p.width; col++ {
			i := rowStart + col
			s := p.staged[i]
			c := p.committed[i]

			if !s.set {
				p.staged[i] = c
				continue
			}
			if s.cell.IsContinuation() || s.cell.Equals(c.cell) {
				continue
			}

			cell := s.cell
			hasNext := col+1 < p.width
			if cell.IsWide() && !hasNext {
				cell = core.BlankCell()
				p.staged[i] = slot{cell: cell, set: true}
				if cell.Equals(c.cell) {
					continue
				}
			}
			if hasNext {
				next := &p.staged[i+1]
				switch {
				case cell.IsWide() && !next.set:
					*next = slot{cell: core.ContinuationCell(), set: true}
				case !cell.IsWide() && c.cell.IsWide() && (!next.set || next.cell.IsContinuation()):
					*next = blank
				}
			}

			t.MoveTo(originRow+row, originCol+col)
			t.Print(cell)
			writes++
		}
	}

	t.MoveTo(originRow+p.height, 0)
	if err := t.Flush(); err != nil {
		return writes, err
	}

	p.committed, p.staged = p.staged, p.committed
	p.clearStaged()
	return writes, nil
}

// Committed returns the glyph the terminal is believed to show at (row, col).
func (p *Pair) Committed(row, col int) core.Cell {
	if !p.inBounds(row, col) {
		return core.Cell{}
	}
	return p.committed[row*p.width+col].cell
}

// Staged returns the staged glyph at (row, col) and whether one is set.
func (p *Pair) Staged(row, col int) (core.Cell, bool) {
	if !p.inBounds(row, col) {
		return core.Cell{}, false
	}
	s := p.staged[row*p.width+col]
	return s.cell, s.set
}

func (p *Pair) inBounds(row, col int) bool {
	return row >= 0 && row < p.height && col >= 0 && col < p.width
}
