package renderer

import (
	"context"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/dshills/taskdash/internal/renderer/backend"
	"github.com/dshills/taskdash/internal/renderer/core"
	"github.com/dshills/taskdash/internal/renderer/frame"
	"github.com/dshills/taskdash/internal/renderer/viewport"
)

// Options configures the renderer.
type Options struct {
	// Border is the number of rows and columns reserved around the viewport.
	Border int

	// FrameInterval is the time between frames.
	FrameInterval time.Duration

	// ResizeCheckFrames is how many frames pass between polled size and
	// termination checks. Resize and termination events reported by the
	// backend are handled immediately regardless.
	ResizeCheckFrames int

	// Logger receives diagnostics. It must not write to the terminal being
	// drawn on. Nil discards.
	Logger *logrus.Entry
}

// DefaultOptions returns sensible default options.
func DefaultOptions() Options {
	return Options{
		Border:            viewport.DefaultBorder,
		FrameInterval:     time.Second / 30,
		ResizeCheckFrames: 30,
	}
}

// State is the render loop lifecycle phase.
type State int32

const (
	StateIdle State = iota
	StateInitializing
	StateRunning
	StateTerminated
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateInitializing:
		return "initializing"
	case StateRunning:
		return "running"
	case StateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// Renderer drives a dashboard viewport on a terminal.
type Renderer struct {
	term backend.Terminal
	opts Options
	log  *logrus.Entry

	// Owned by the render loop.
	vp       *viewport.Viewport
	pair     *frame.Pair
	lastRect core.ScreenRect

	shared *sharedState

	terminateCh   chan struct{}
	terminateOnce sync.Once

	state   atomic.Int32
	started atomic.Bool
	frames  atomic.Uint64
	writes  atomic.Uint64
}

// New creates a renderer on an initialized terminal.
func New(term backend.Terminal, opts Options) *Renderer {
	defaults := DefaultOptions()
	if opts.Border < 0 {
		opts.Border = 0
	}
	if opts.FrameInterval <= 0 {
		opts.FrameInterval = defaults.FrameInterval
	}
	if opts.ResizeCheckFrames <= 0 {
		opts.ResizeCheckFrames = defaults.ResizeCheckFrames
	}

	log := opts.Logger
	if log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		log = logrus.NewEntry(l)
	}

	return &Renderer{
		term:        term,
		opts:        opts,
		log:         log.WithField("component", "renderer"),
		vp:          viewport.New(opts.Border),
		pair:        frame.NewPair(),
		shared:      newSharedState(),
		terminateCh: make(chan struct{}),
	}
}

// ReplaceContent publishes new content and marks the layout dirty.
// It is safe to call from any goroutine. Content published before a frame's
// relayout check is drawn by that frame; the last writer wins.
func (r *Renderer) ReplaceContent(c Content) error {
	return r.shared.replace(c)
}

// RequestTermination asks the render loop to exit. The loop notices at its
// next wait point. Safe to call multiple times and from any goroutine.
func (r *Renderer) RequestTermination() {
	r.shared.requestTermination()
	r.terminateOnce.Do(func() { close(r.terminateCh) })
}

// Status returns a snapshot of the viewport geometry.
func (r *Renderer) Status() viewport.Status {
	return r.vp.Status()
}

// State returns the current lifecycle phase.
func (r *Renderer) State() State {
	return State(r.state.Load())
}

// Frames returns the number of frames committed so far.
func (r *Renderer) Frames() uint64 {
	return r.frames.Load()
}

// Writes returns the number of glyphs written to the terminal so far.
func (r *Renderer) Writes() uint64 {
	return r.writes.Load()
}

// Run initializes the viewport and renders frames until termination is
// requested, ctx is done, the backend reports a quit request, or a failure
// occurs. Clean termination returns nil. Failures are returned as *Error
// and are never retried.
func (r *Renderer) Run(ctx context.Context) error {
	if !r.started.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer r.setState(StateTerminated)

	r.setState(StateInitializing)
	if err := r.initialize(); err != nil {
		r.log.WithError(err).Error("initialization failed")
		return err
	}

	r.setState(StateRunning)
	r.log.WithField("status", r.vp.Status().String()).Info("render loop started")

	err := r.loop(ctx)
	if err != nil {
		r.log.WithError(err).Error("render loop aborted")
		return err
	}
	r.log.WithField("frames", r.Frames()).Info("render loop terminated")
	return nil
}

func (r *Renderer) setState(s State) {
	r.state.Store(int32(s))
}

// initialize queries the terminal, anchors the viewport and performs the
// first layout.
func (r *Renderer) initialize() error {
	if _, err := r.detectResize(); err != nil {
		return err
	}

	scrolled, err := r.vp.UpdateOrigin(r.term)
	if err != nil {
		return terminalIOError("update-origin", err)
	}
	if scrolled {
		row, col := r.vp.Origin()
		r.log.WithFields(logrus.Fields{"row": row, "col": col}).Debug("scrolled to fit viewport")
	}

	if _, err := r.relayoutIfDirty(); err != nil {
		return err
	}
	return nil
}

func (r *Renderer) loop(ctx context.Context) error {
	ticker := time.NewTicker(r.opts.FrameInterval)
	defer ticker.Stop()

	var quit <-chan struct{}
	if q, ok := r.term.(backend.Quitter); ok {
		quit = q.QuitRequests()
	}
	resizes := r.term.Resizes()

	for {
		select {
		case <-r.terminateCh:
			return nil
		case <-ctx.Done():
			return nil
		default:
		}

		if err := r.renderFrame(); err != nil {
			return err
		}

		if r.Frames()%uint64(r.opts.ResizeCheckFrames) == 0 {
			if _, err := r.detectResize(); err != nil {
				return err
			}
			stop, err := r.shared.terminating()
			if err != nil {
				return err
			}
			if stop {
				return nil
			}
		}

		select {
		case <-r.terminateCh:
			return nil
		case <-ctx.Done():
			return nil
		case <-quit:
			r.log.Debug("quit requested by user")
			r.RequestTermination()
			return nil
		case ev := <-resizes:
			r.log.WithFields(logrus.Fields{"width": ev.Width, "height": ev.Height}).Debug("resize event")
			if _, err := r.detectResize(); err != nil {
				return err
			}
		case <-ticker.C:
		}
	}
}

// renderFrame produces one frame: relayout if dirty, stage, commit.
func (r *Renderer) renderFrame() error {
	if _, err := r.relayoutIfDirty(); err != nil {
		return err
	}
	if err := r.stage(); err != nil {
		return err
	}

	row, col := r.vp.Origin()
	n, err := r.pair.Commit(r.term, row, col)
	if err != nil {
		return terminalIOError("commit", err)
	}

	r.writes.Add(uint64(n))
	r.frames.Add(1)
	return nil
}

// detectResize queries the terminal again and marks the layout dirty when the
// virtual size changed.
func (r *Renderer) detectResize() (bool, error) {
	changed, err := r.vp.Detect(r.term)
	if err != nil {
		return false, terminalIOError("detect-resize", err)
	}
	if !changed {
		return false, nil
	}

	if err := r.shared.markDirty("detect-resize"); err != nil {
		return false, err
	}
	w, h := r.vp.Size()
	r.log.WithFields(logrus.Fields{"width": w, "height": h}).Debug("viewport resized")
	return true, nil
}

// relayoutIfDirty resizes both grids to the viewport and clears the area
// on screen. The clear covers the previous and the new viewport so that a
// shrink leaves no stale glyphs behind. Output is flushed by the next commit.
func (r *Renderer) relayoutIfDirty() (bool, error) {
	dirty, err := r.shared.takeDirty()
	if err != nil || !dirty {
		return false, err
	}

	if r.vp.ClampOrigin() {
		row, col := r.vp.Origin()
		r.log.WithFields(logrus.Fields{"row": row, "col": col}).Debug("origin clamped")
	}

	w, h := r.vp.Size()
	r.pair.Resize(w, h)

	rect := r.vp.Rect()
	pw, ph := r.vp.PhysicalSize()
	area := r.lastRect.Union(rect).Intersection(core.RectFromSize(0, 0, ph, pw))
	if !area.IsEmpty() {
		r.term.ClearRegion(area)
	}
	r.lastRect = rect
	return true, nil
}

// stage lets the current content draw onto the staged grid. Drawing runs
// under the state lock so content is never observed mid-replacement.
func (r *Renderer) stage() error {
	return r.shared.with("stage-content", func() {
		content := r.shared.content
		if content == nil {
			r.pair.Stage(nil)
			return
		}
		r.pair.Stage(content.Draw)
	})
}
