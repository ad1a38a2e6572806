// Package backend provides terminal backend abstraction for the renderer.
//
// A backend exposes the handful of primitives the renderer needs: size and
// cursor queries, absolute cursor moves, glyph writes, region clears, newline
// and scroll-up. Writes are queued and only reach the terminal on Flush, so a
// frame is emitted as one batch.
package backend

import (
	"github.com/dshills/taskdash/internal/renderer/core"
)

// ResizeEvent represents a terminal resize.
type ResizeEvent struct {
	Width  int
	Height int
}

// Terminal defines the interface for terminal backends.
// Positions are 0-indexed (row, col) in physical terminal coordinates.
type Terminal interface {
	// Init prepares the terminal for drawing.
	// Must be called before any other methods.
	Init() error

	// Fini restores terminal state. Safe to call multiple times.
	Fini()

	// Size returns the current physical terminal dimensions.
	Size() (width, height int, err error)

	// CursorPosition queries the terminal for the current cursor position.
	// Pending output is flushed first.
	CursorPosition() (row, col int, err error)

	// MoveTo queues an absolute cursor move.
	MoveTo(row, col int)

	// Print queues a glyph at the cursor and advances the cursor by its width.
	Print(cell core.Cell)

	// Newline queues a line feed.
	Newline()

	// ScrollUp queues a scroll of the whole screen up by n lines.
	ScrollUp(n int)

	// ClearRegion queues a space fill of the given rectangle.
	ClearRegion(rect core.ScreenRect)

	// Flush writes all queued output in a single batch.
	Flush() error

	// Resizes returns a channel delivering resize notifications.
	// A nil channel means the backend cannot notify and callers must poll Size.
	Resizes() <-chan ResizeEvent
}

// Quitter is implemented by backends that capture keyboard input and can
// therefore observe a user's request to quit.
type Quitter interface {
	QuitRequests() <-chan struct{}
}

// sendLatest delivers ev without blocking, replacing a stale pending event.
func sendLatest(ch chan ResizeEvent, ev ResizeEvent) {
	select {
	case ch <- ev:
		return
	default:
	}
	// Drain and replace to ensure latest size is pending
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- ev:
	default:
	}
}
