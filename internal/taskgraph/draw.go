package taskgraph

import (
	"fmt"
	"strings"

	"github.com/dshills/taskdash/internal/renderer/core"
	"github.com/dshills/taskdash/internal/renderer/frame"
)

const (
	indentWidth = 2
	barWidth    = 10
)

var (
	headerStyle = core.DefaultStyle().Bold()
	mutedStyle  = core.NewStyle(core.ColorGray)
)

// statusSymbol returns the marker drawn between brackets.
func statusSymbol(s Status) rune {
	switch s {
	case StatusRunning:
		return '>'
	case StatusDone:
		return '+'
	case StatusFailed:
		return '!'
	case StatusSkipped:
		return '-'
	default:
		return ' '
	}
}

// Palette holds the color each task status is drawn in.
type Palette struct {
	Running core.Color
	Done    core.Color
	Failed  core.Color
	Skipped core.Color
}

// DefaultPalette returns the built-in status colors.
func DefaultPalette() Palette {
	return Palette{
		Running: core.ColorYellow,
		Done:    core.ColorGreen,
		Failed:  core.ColorRed,
		Skipped: core.ColorGray,
	}
}

func (p Palette) style(s Status) core.Style {
	switch s {
	case StatusRunning:
		return core.NewStyle(p.Running).Bold()
	case StatusDone:
		return core.NewStyle(p.Done)
	case StatusFailed:
		return core.NewStyle(p.Failed).Bold()
	case StatusSkipped:
		return core.NewStyle(p.Skipped).Dim()
	default:
		return core.DefaultStyle()
	}
}

// WithPalette returns a copy of the graph drawn with p.
func (g *Graph) WithPalette(p Palette) *Graph {
	next := *g
	next.palette = p
	return &next
}

// Palette returns the colors the graph is drawn with.
func (g *Graph) Palette() Palette {
	return g.palette
}

// HeaderText returns the first dashboard line.
func (g *Graph) HeaderText() string {
	s := g.Summary()
	text := fmt.Sprintf("%d/%d done", s.Done, s.Total)
	if s.Running > 0 {
		text += fmt.Sprintf(", %d running", s.Running)
	}
	if s.Failed > 0 {
		text += fmt.Sprintf(", %d failed", s.Failed)
	}
	if s.Skipped > 0 {
		text += fmt.Sprintf(", %d skipped", s.Skipped)
	}
	if g.title == "" {
		return text
	}
	return g.title + "  " + text
}

// Draw renders the graph: a summary header, then one line per task in
// dependency order, indented by depth. Tasks that do not fit are counted
// on the last line.
func (g *Graph) Draw(c frame.Canvas) {
	width, height := c.Size()
	if width <= 0 || height <= 0 {
		return
	}

	c.SetString(0, 0, core.Truncate(g.HeaderText(), width, "..."), headerStyle)

	rows := height - 1
	shown := len(g.order)
	if shown > rows {
		shown = max(rows-1, 0)
	}

	for k := 0; k < shown; k++ {
		i := g.order[k]
		g.drawTask(c, 1+k, width, g.tasks[i], g.depth[i])
	}

	if hidden := len(g.order) - shown; hidden > 0 && rows > 0 {
		c.SetString(height-1, 0, fmt.Sprintf("... +%d more", hidden), mutedStyle)
	}
}

func (g *Graph) drawTask(c frame.Canvas, row, width int, t Task, depth int) {
	style := g.palette.style(t.Status)

	col := min(depth*indentWidth, width/2)
	col += c.SetString(row, col, "[", mutedStyle)
	col += c.SetString(row, col, string(statusSymbol(t.Status)), style)
	col += c.SetString(row, col, "] ", mutedStyle)

	suffix := ""
	if t.Status == StatusRunning {
		suffix = " " + progressBar(t.Progress) + fmt.Sprintf(" %3d%%", int(t.Progress*100))
	}

	room := width - col - core.StringWidth(suffix)
	if room <= 0 {
		return
	}
	col += c.SetString(row, col, core.Truncate(t.Label(), room, "..."), style)
	c.SetString(row, col, suffix, mutedStyle)
}

func progressBar(p float64) string {
	filled := int(p*barWidth + 0.5)
	filled = min(max(filled, 0), barWidth)
	return "[" + strings.Repeat("#", filled) + strings.Repeat(".", barWidth-filled) + "]"
}
