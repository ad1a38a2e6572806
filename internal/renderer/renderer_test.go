package renderer

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/taskdash/internal/renderer/backend"
	"github.com/dshills/taskdash/internal/renderer/core"
	"github.com/dshills/taskdash/internal/renderer/frame"
)

func newTestRenderer(width, height int) (*Renderer, *backend.Recorder) {
	term := backend.NewRecorder(width, height)
	opts := DefaultOptions()
	opts.FrameInterval = time.Millisecond
	return New(term, opts), term
}

func glyphAt(row, col int, r rune) Content {
	return ContentFunc(func(c frame.Canvas) {
		c.Set(row, col, core.NewCell(r))
	})
}

func runAsync(r *Renderer, ctx context.Context) <-chan error {
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()
	return done
}

func waitRun(t *testing.T, done <-chan error) error {
	t.Helper()
	select {
	case err := <-done:
		return err
	case <-time.After(2 * time.Second):
		t.Fatal("render loop did not exit")
		return nil
	}
}

// countingWriter records the size of every Write reaching the terminal.
type countingWriter struct {
	mu    sync.Mutex
	sizes []int
}

func (w *countingWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.sizes = append(w.sizes, len(p))
	return len(p), nil
}

func (w *countingWriter) count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.sizes)
}

func TestFullRepaintIsOneTerminalWrite(t *testing.T) {
	out := &countingWriter{}
	size := func() (int, int, error) { return 250, 75, nil }
	term := backend.NewANSITerminalWithIO(strings.NewReader("\x1b[1;1R"), out, size)
	r := New(term, DefaultOptions())

	styles := []core.Style{core.NewStyle(core.ColorYellow).Bold(), core.NewStyle(core.ColorCyan)}
	fill := ContentFunc(func(c frame.Canvas) {
		w, h := c.Size()
		for row := range h {
			for col := range w {
				c.Set(row, col, core.NewStyledCell('@', styles[(row+col)%2]))
			}
		}
	})
	require.NoError(t, r.ReplaceContent(fill))

	require.NoError(t, r.initialize())
	before := out.count()

	require.NoError(t, r.renderFrame())
	require.Equal(t, before+1, out.count(), "the first frame, relayout clear included, must be a single write")
	assert.Greater(t, out.sizes[before], 245*70)
	assert.Equal(t, uint64(245*70), r.Writes())
}

func TestDefaultOptions(t *testing.T) {
	opts := DefaultOptions()

	assert.Equal(t, 5, opts.Border)
	assert.Equal(t, time.Second/30, opts.FrameInterval)
	assert.Equal(t, 30, opts.ResizeCheckFrames)
}

func TestSingleCellWriteAtOrigin(t *testing.T) {
	r, term := newTestRenderer(40, 10)
	term.SetCursor(1, 3)

	require.NoError(t, r.initialize())
	st := r.Status()
	assert.Equal(t, 35, st.VirtualWidth)
	assert.Equal(t, 5, st.VirtualHeight)
	assert.Equal(t, 1, st.OriginRow)
	assert.Equal(t, 3, st.OriginCol)

	require.NoError(t, r.ReplaceContent(glyphAt(2, 2, 'X')))
	term.Reset()
	require.NoError(t, r.renderFrame())

	prints := term.Prints()
	require.Len(t, prints, 1)
	assert.Equal(t, 'X', prints[0].Cell.Rune)
	assert.Equal(t, 1+2, prints[0].Row)
	assert.Equal(t, 3+2, prints[0].Col)
	assert.Equal(t, 'X', term.RuneAt(3, 5))

	term.Reset()
	require.NoError(t, r.renderFrame())
	assert.Empty(t, term.Prints(), "unchanged frame writes nothing")
	assert.Equal(t, uint64(1), r.Writes())
	assert.Equal(t, uint64(2), r.Frames())
}

func TestLastReplaceWins(t *testing.T) {
	r, term := newTestRenderer(40, 10)

	require.NoError(t, r.ReplaceContent(glyphAt(0, 0, 'A')))
	require.NoError(t, r.ReplaceContent(glyphAt(1, 1, 'B')))

	require.NoError(t, r.initialize())
	require.NoError(t, r.renderFrame())

	prints := term.Prints()
	require.Len(t, prints, 1)
	assert.Equal(t, 'B', prints[0].Cell.Rune)
	assert.Equal(t, 1, prints[0].Row)
	assert.Equal(t, 1, prints[0].Col)
}

func TestReplaceContentMarksDirty(t *testing.T) {
	r, _ := newTestRenderer(40, 10)
	require.NoError(t, r.initialize())

	dirty, err := r.shared.takeDirty()
	require.NoError(t, err)
	assert.False(t, dirty, "initial relayout consumes the flag")

	require.NoError(t, r.ReplaceContent(glyphAt(0, 0, 'A')))
	dirty, err = r.shared.takeDirty()
	require.NoError(t, err)
	assert.True(t, dirty)
}

func TestResizeMarksDirtyOncePerChange(t *testing.T) {
	r, term := newTestRenderer(40, 10)
	require.NoError(t, r.initialize())
	require.NoError(t, r.renderFrame())

	term.Resize(60, 20)

	changed, err := r.detectResize()
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = r.detectResize()
	require.NoError(t, err)
	assert.False(t, changed)

	dirty, err := r.shared.takeDirty()
	require.NoError(t, err)
	assert.True(t, dirty)
	dirty, err = r.shared.takeDirty()
	require.NoError(t, err)
	assert.False(t, dirty)

	st := r.Status()
	assert.Equal(t, 55, st.VirtualWidth)
	assert.Equal(t, 15, st.VirtualHeight)
}

func TestRelayoutClearsPreviousAndNewViewport(t *testing.T) {
	r, term := newTestRenderer(40, 10)
	require.NoError(t, r.initialize())
	require.NoError(t, r.renderFrame())

	term.Resize(30, 8)
	_, err := r.detectResize()
	require.NoError(t, err)

	term.Reset()
	require.NoError(t, r.renderFrame())

	var clears []core.ScreenRect
	for _, op := range term.Ops() {
		if op.Kind == backend.OpClearRegion {
			clears = append(clears, op.Rect)
		}
	}
	require.Len(t, clears, 1)
	assert.Equal(t, core.ScreenRect{Top: 0, Left: 0, Bottom: 5, Right: 30}, clears[0],
		"old 35x5 area clipped to the new 30 column screen")
	assert.Equal(t, 25*3, r.pair.Len())
}

func TestRelayoutRepaintsAfterResize(t *testing.T) {
	r, term := newTestRenderer(40, 10)
	require.NoError(t, r.ReplaceContent(glyphAt(0, 0, 'Z')))
	require.NoError(t, r.initialize())
	require.NoError(t, r.renderFrame())

	term.Resize(50, 12)
	_, err := r.detectResize()
	require.NoError(t, err)

	term.Reset()
	require.NoError(t, r.renderFrame())

	prints := term.Prints()
	require.Len(t, prints, 1, "committed grid is blank after relayout")
	assert.Equal(t, 'Z', prints[0].Cell.Rune)
}

func TestZeroSizeTerminal(t *testing.T) {
	r, term := newTestRenderer(3, 2)
	require.NoError(t, r.ReplaceContent(ContentFunc(func(c frame.Canvas) {
		c.SetString(0, 0, "abc", core.DefaultStyle())
	})))

	require.NoError(t, r.initialize())
	require.NoError(t, r.renderFrame())
	require.NoError(t, r.renderFrame())

	assert.Empty(t, term.Prints())
	assert.Zero(t, r.pair.Len())
}

func TestRunTerminates(t *testing.T) {
	r, term := newTestRenderer(40, 10)
	require.NoError(t, r.ReplaceContent(glyphAt(0, 0, 'A')))

	done := runAsync(r, context.Background())
	require.Eventually(t, func() bool { return r.Frames() >= 3 }, time.Second, time.Millisecond)
	assert.Equal(t, StateRunning, r.State())

	r.RequestTermination()
	r.RequestTermination()
	require.NoError(t, waitRun(t, done))
	assert.Equal(t, StateTerminated, r.State())

	opsAfter := len(term.Ops())
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, opsAfter, len(term.Ops()), "no terminal writes after termination")

	var aPrints int
	for _, p := range term.Prints() {
		if p.Cell.Rune == 'A' {
			aPrints++
		}
	}
	assert.Equal(t, 1, aPrints, "static content is painted once")
}

func TestRunTerminationBeforeStart(t *testing.T) {
	r, term := newTestRenderer(40, 10)
	r.RequestTermination()

	require.NoError(t, r.Run(context.Background()))
	assert.Zero(t, r.Frames())
	assert.Empty(t, term.Prints())
}

func TestRunPolledTermination(t *testing.T) {
	term := backend.NewRecorder(40, 10)
	opts := DefaultOptions()
	opts.FrameInterval = time.Millisecond
	opts.ResizeCheckFrames = 2
	r := New(term, opts)

	// Set the flag without signalling the loop's wait point.
	r.shared.requestTermination()

	require.NoError(t, r.Run(context.Background()))
	assert.Equal(t, uint64(2), r.Frames())
}

func TestRunContextCancel(t *testing.T) {
	r, _ := newTestRenderer(40, 10)
	ctx, cancel := context.WithCancel(context.Background())

	done := runAsync(r, ctx)
	require.Eventually(t, func() bool { return r.Frames() >= 1 }, time.Second, time.Millisecond)
	cancel()

	require.NoError(t, waitRun(t, done))
}

func TestRunQuitRequest(t *testing.T) {
	r, term := newTestRenderer(40, 10)

	done := runAsync(r, context.Background())
	require.Eventually(t, func() bool { return r.Frames() >= 1 }, time.Second, time.Millisecond)
	term.RequestQuit()

	require.NoError(t, waitRun(t, done))
}

func TestRunHandlesResizeEvent(t *testing.T) {
	r, term := newTestRenderer(40, 10)

	done := runAsync(r, context.Background())
	require.Eventually(t, func() bool { return r.Frames() >= 1 }, time.Second, time.Millisecond)

	term.Resize(60, 20)
	require.Eventually(t, func() bool { return r.Status().VirtualWidth == 55 }, time.Second, time.Millisecond)

	r.RequestTermination()
	require.NoError(t, waitRun(t, done))
}

func TestRunTwice(t *testing.T) {
	r, _ := newTestRenderer(40, 10)
	r.RequestTermination()

	require.NoError(t, r.Run(context.Background()))
	assert.ErrorIs(t, r.Run(context.Background()), ErrAlreadyRunning)
}

func TestRunConcurrentProducers(t *testing.T) {
	r, _ := newTestRenderer(40, 10)
	done := runAsync(r, context.Background())

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				assert.NoError(t, r.ReplaceContent(glyphAt(i, j%30, rune('a'+i))))
			}
		}(i)
	}
	wg.Wait()

	require.Eventually(t, func() bool { return r.Frames() >= 2 }, time.Second, time.Millisecond)
	r.RequestTermination()
	require.NoError(t, waitRun(t, done))
}

func TestRunSizeFailure(t *testing.T) {
	r, term := newTestRenderer(40, 10)
	boom := errors.New("not a tty")
	term.FailSize(boom)

	err := r.Run(context.Background())

	require.Error(t, err)
	assert.True(t, IsTerminalIO(err))
	assert.False(t, IsSynchronization(err))
	assert.ErrorIs(t, err, boom)

	var rerr *Error
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, "detect-resize", rerr.Op)
	assert.Equal(t, StateTerminated, r.State())
}

func TestRunCursorFailure(t *testing.T) {
	r, term := newTestRenderer(40, 10)
	term.FailCursor(errors.New("no reply"))

	err := r.Run(context.Background())

	var rerr *Error
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, KindTerminalIO, rerr.Kind)
	assert.Equal(t, "update-origin", rerr.Op)
}

func TestCommitFailure(t *testing.T) {
	r, term := newTestRenderer(40, 10)
	require.NoError(t, r.initialize())

	term.FailFlush(errors.New("broken pipe"))
	err := r.renderFrame()

	var rerr *Error
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, "commit", rerr.Op)
	assert.True(t, IsTerminalIO(err))
}

func TestPanicPoisonsRenderer(t *testing.T) {
	r, _ := newTestRenderer(40, 10)
	require.NoError(t, r.ReplaceContent(ContentFunc(func(frame.Canvas) {
		panic("bad content")
	})))

	err := r.Run(context.Background())
	require.Error(t, err)
	assert.True(t, IsSynchronization(err))
	assert.Contains(t, err.Error(), "bad content")
	assert.NotEmpty(t, r.shared.poisoned)

	err = r.ReplaceContent(glyphAt(0, 0, 'A'))
	assert.ErrorIs(t, err, ErrSynchronization)

	assert.NotPanics(t, r.RequestTermination)
}

func TestErrorFormatting(t *testing.T) {
	err := terminalIOError("commit", errors.New("broken pipe"))
	assert.Equal(t, "commit: terminal-io failure: broken pipe", err.Error())

	err = syncError("stage-content", "panic")
	assert.Equal(t, "stage-content: synchronization failure: panic", err.Error())
	assert.ErrorIs(t, err, ErrSynchronization)
	assert.NotErrorIs(t, err, ErrTerminalIO)

	var nilErr *Error
	assert.Equal(t, "", nilErr.Error())
	assert.Nil(t, nilErr.Unwrap())
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "idle", StateIdle.String())
	assert.Equal(t, "running", StateRunning.String())
	assert.Equal(t, "terminated", StateTerminated.String())
}
