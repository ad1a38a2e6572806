// Package renderer draws a dashboard into a fixed region of a text terminal.
//
// The renderer owns a viewport below the shell prompt (or the whole screen
// with the tcell backend), keeps a model of what is displayed and repaints
// only the cells that changed, at a fixed frame cadence.
//
// Architecture:
//
//	┌─────────────────────────────────────────┐
//	│     Renderer (ingestor + render loop)   │
//	├─────────────────────────────────────────┤
//	│   Viewport      │   Frame buffer pair   │
//	├─────────────────────────────────────────┤
//	│           Backend abstraction           │
//	├─────────────────────────────────────────┤
//	│   ANSI (inline) │ tcell (fullscreen)    │
//	└─────────────────────────────────────────┘
//
// Three timelines meet here: the render loop, content producers calling
// ReplaceContent from any goroutine, and terminal resizes. Content and the
// layout-dirty flag share one lock; the lock is never held across terminal
// I/O, and only the render loop writes to the terminal.
//
// Usage:
//
//	term := backend.NewANSITerminal()
//	_ = term.Init()
//	defer term.Fini()
//
//	r := renderer.New(term, renderer.DefaultOptions())
//	go producer(r) // calls r.ReplaceContent(...)
//	err := r.Run(ctx)
package renderer
