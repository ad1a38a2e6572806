package taskgraph

import (
	"context"
	"io"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/dshills/taskdash/internal/config/watcher"
)

// PublishFunc delivers a freshly loaded graph, typically to
// renderer.ReplaceContent. An error stops the watcher.
type PublishFunc func(g *Graph) error

// WatchOptions configures a Watcher.
type WatchOptions struct {
	// ReloadPerSecond caps how often the file is re-read.
	ReloadPerSecond float64

	// Debounce coalesces bursts of file events.
	Debounce time.Duration

	// Logger receives reload diagnostics. Nil discards.
	Logger *logrus.Entry
}

// Watcher reloads a task file whenever it changes and publishes the result.
// A file that fails to load is logged and the previous graph stays on screen.
type Watcher struct {
	path    string
	publish PublishFunc
	limiter *rate.Limiter
	log     *logrus.Entry
	fw      *watcher.Watcher

	changed chan struct{}
}

// NewWatcher creates a watcher for the task file at path.
func NewWatcher(path string, publish PublishFunc, opts WatchOptions) (*Watcher, error) {
	if opts.ReloadPerSecond <= 0 {
		opts.ReloadPerSecond = 4
	}
	if opts.Debounce <= 0 {
		opts.Debounce = 50 * time.Millisecond
	}
	log := opts.Logger
	if log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		log = logrus.NewEntry(l)
	}

	fw, err := watcher.New(watcher.WithDebounce(opts.Debounce))
	if err != nil {
		return nil, err
	}
	if err := fw.Watch(path); err != nil {
		fw.Stop()
		return nil, err
	}

	w := &Watcher{
		path:    path,
		publish: publish,
		limiter: rate.NewLimiter(rate.Limit(opts.ReloadPerSecond), 1),
		log:     log.WithFields(logrus.Fields{"component": "taskgraph", "path": path}),
		fw:      fw,
		changed: make(chan struct{}, 1),
	}
	fw.OnChange(w.onChange)
	fw.OnError(func(err error) {
		w.log.WithError(err).Warn("file watcher error")
	})
	return w, nil
}

func (w *Watcher) onChange(ev watcher.Event) {
	w.log.WithField("op", ev.Op.String()).Debug("task file changed")
	select {
	case w.changed <- struct{}{}:
	default:
	}
}

// Run loads and publishes the file once, then again after every change,
// until ctx is done. An initial load failure or a publish failure is
// returned.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.fw.Stop()

	g, err := Load(w.path)
	if err != nil {
		return err
	}
	if err := w.publish(g); err != nil {
		return err
	}

	w.fw.Start()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-w.changed:
		}

		if err := w.limiter.Wait(ctx); err != nil {
			return nil
		}

		g, err := Load(w.path)
		if err != nil {
			w.log.WithError(err).Warn("reload failed, keeping previous graph")
			continue
		}
		if err := w.publish(g); err != nil {
			return err
		}
		w.log.WithField("tasks", g.Len()).Info("task file reloaded")
	}
}
