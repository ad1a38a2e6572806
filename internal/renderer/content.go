package renderer

import "github.com/dshills/taskdash/internal/renderer/frame"

// Content is the payload the renderer displays. The renderer treats it as
// opaque: each frame it asks the current content to draw itself onto the
// staged grid. Content handed to ReplaceContent must not be mutated
// afterwards; producers publish a new value instead.
type Content interface {
	Draw(c frame.Canvas)
}

// ContentFunc adapts a function to Content.
type ContentFunc func(c frame.Canvas)

// Draw calls f(c).
func (f ContentFunc) Draw(c frame.Canvas) {
	f(c)
}
