// Package app wires configuration, logging, a terminal backend, the
// renderer and a content producer into a runnable dashboard.
package app

import (
	"context"
	"errors"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/dshills/taskdash/internal/config"
	"github.com/dshills/taskdash/internal/config/watcher"
	"github.com/dshills/taskdash/internal/renderer"
	"github.com/dshills/taskdash/internal/renderer/backend"
	"github.com/dshills/taskdash/internal/renderer/core"
	"github.com/dshills/taskdash/internal/renderer/frame"
	"github.com/dshills/taskdash/internal/taskgraph"
)

// DefaultDemoInterval is the time between simulated task updates.
const DefaultDemoInterval = 400 * time.Millisecond

// Options configures the application.
type Options struct {
	// ConfigPath is the configuration file. Empty uses config.DefaultPath.
	ConfigPath string

	// Override adjusts the loaded configuration, typically from command-line
	// flags. It is reapplied whenever the config file is reloaded.
	Override func(*config.Config)

	// Demo shows a simulated pipeline when no task file is configured.
	Demo bool

	// DemoInterval is the time between simulated updates.
	DemoInterval time.Duration

	// Seed drives the simulator. Zero picks a time-based seed.
	Seed uint64

	// Terminal replaces the backend named in the configuration.
	Terminal backend.Terminal

	// LogOutput replaces the configured log file.
	LogOutput io.Writer
}

// Application owns one dashboard session.
type Application struct {
	opts Options

	mu  sync.RWMutex
	cfg *config.Config

	log     *logrus.Entry
	logFile io.Closer

	term     backend.Terminal
	renderer *renderer.Renderer

	running atomic.Bool
}

// New loads configuration and assembles the components. Nothing touches
// the terminal until Run.
func New(opts Options) (*Application, error) {
	if opts.ConfigPath == "" {
		opts.ConfigPath = config.DefaultPath
	}
	if opts.DemoInterval <= 0 {
		opts.DemoInterval = DefaultDemoInterval
	}

	app := &Application{opts: opts}

	cfg, err := app.loadConfig()
	if err != nil {
		return nil, initError("load config", opts.ConfigPath, err)
	}
	app.cfg = cfg

	if err := app.setupLogging(); err != nil {
		return nil, err
	}

	term, err := app.newTerminal()
	if err != nil {
		app.Close()
		return nil, initError("create terminal", cfg.Render.Backend, err)
	}
	app.term = term

	app.renderer = renderer.New(term, renderer.Options{
		Border:            cfg.Render.Border,
		FrameInterval:     cfg.FrameInterval(),
		ResizeCheckFrames: cfg.Render.ResizeCheckFrames,
		Logger:            WithComponent(app.log, "renderer"),
	})

	app.log.WithFields(logrus.Fields{
		"backend": cfg.Render.Backend,
		"border":  cfg.Render.Border,
		"fps":     cfg.Render.FPS,
	}).Info("application assembled")

	return app, nil
}

// loadConfig reads the file and environment, applies overrides and
// validates the result.
func (app *Application) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(app.opts.ConfigPath)
	if err != nil {
		return nil, err
	}
	if app.opts.Override != nil {
		app.opts.Override(cfg)
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

func (app *Application) setupLogging() error {
	lc := DefaultLoggerConfig()
	lc.Level = ParseLogLevel(app.cfg.Logging.Level)

	switch {
	case app.opts.LogOutput != nil:
		lc.Output = app.opts.LogOutput
	case app.cfg.Logging.File != "":
		f, err := openLogFile(app.cfg.Logging.File)
		if err != nil {
			return initError("open log", app.cfg.Logging.File, err)
		}
		lc.Output = f
		app.logFile = f
	}

	app.log = NewLogger(lc)
	return nil
}

func (app *Application) newTerminal() (backend.Terminal, error) {
	if app.opts.Terminal != nil {
		return app.opts.Terminal, nil
	}
	if app.cfg.Render.Backend == config.BackendTcell {
		return backend.NewTcellTerminal()
	}
	return backend.NewANSITerminal(), nil
}

// Config returns the active configuration.
func (app *Application) Config() *config.Config {
	app.mu.RLock()
	defer app.mu.RUnlock()
	return app.cfg
}

// Logger returns the application logger.
func (app *Application) Logger() *logrus.Entry {
	return app.log
}

// Renderer returns the renderer driven by Run.
func (app *Application) Renderer() *renderer.Renderer {
	return app.renderer
}

// RequestTermination asks the render loop to stop. Safe from any goroutine,
// including signal handlers.
func (app *Application) RequestTermination() {
	app.renderer.RequestTermination()
}

// Status returns the renderer's viewport geometry.
func (app *Application) Status() string {
	return app.renderer.Status().String()
}

// Run initializes the terminal, starts the content producer and the config
// watcher, and blocks in the render loop until termination. A producer
// failure stops the renderer and is returned.
func (app *Application) Run(ctx context.Context) error {
	if !app.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}

	if err := app.term.Init(); err != nil {
		return NewOperationError("init terminal", app.Config().Render.Backend, err)
	}
	defer app.term.Fini()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	stopWatch := app.watchConfig()
	defer stopWatch()

	var (
		wg          sync.WaitGroup
		producerErr error
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := app.produce(ctx); err != nil {
			producerErr = err
			app.log.WithError(err).Error("content producer failed")
			app.renderer.RequestTermination()
		}
	}()

	err := app.renderer.Run(ctx)
	cancel()
	wg.Wait()

	if err != nil {
		return err
	}
	if producerErr != nil {
		return NewOperationError("produce content", app.source(), producerErr)
	}
	return nil
}

// source names where content comes from, for logs and errors.
func (app *Application) source() string {
	switch {
	case app.Config().Content.Path != "":
		return app.Config().Content.Path
	case app.opts.Demo:
		return "demo"
	default:
		return "none"
	}
}

// produce feeds content to the renderer until ctx is done.
func (app *Application) produce(ctx context.Context) error {
	log := WithComponent(app.log, "content")
	cfg := app.Config()
	pal := themePalette(cfg.Theme)
	publish := func(g *taskgraph.Graph) error {
		return app.renderer.ReplaceContent(g.WithPalette(pal))
	}

	switch {
	case cfg.Content.Path != "" && cfg.Content.Watch:
		w, err := taskgraph.NewWatcher(cfg.Content.Path, publish, taskgraph.WatchOptions{
			ReloadPerSecond: cfg.Content.ReloadPerSecond,
			Logger:          log,
		})
		if err != nil {
			return err
		}
		log.WithField("path", cfg.Content.Path).Info("watching task file")
		return w.Run(ctx)

	case cfg.Content.Path != "":
		g, err := taskgraph.Load(cfg.Content.Path)
		if err != nil {
			return err
		}
		return publish(g)

	case app.opts.Demo:
		seed := app.opts.Seed
		if seed == 0 {
			seed = uint64(time.Now().UnixNano())
		}
		sim := taskgraph.NewSimulator(taskgraph.DemoGraph(), seed)
		log.WithField("seed", seed).Info("running demo pipeline")
		return sim.Run(ctx, app.opts.DemoInterval, publish)

	default:
		return app.renderer.ReplaceContent(placeholder)
	}
}

// themePalette applies configured colors over the built-in palette.
// Values were validated when the config was loaded.
func themePalette(t config.ThemeConfig) taskgraph.Palette {
	p := taskgraph.DefaultPalette()
	for _, e := range []struct {
		dst *core.Color
		hex string
	}{
		{&p.Running, t.Running},
		{&p.Done, t.Done},
		{&p.Failed, t.Failed},
		{&p.Skipped, t.Skipped},
	} {
		if c, err := core.ColorFromHex(e.hex); err == nil {
			*e.dst = c
		}
	}
	return p
}

var placeholder = renderer.ContentFunc(func(c frame.Canvas) {
	c.SetString(0, 0, "taskdash: no task source (use -tasks FILE or -demo)", core.DefaultStyle().Dim())
})

// watchConfig reloads the config file on change and applies the new log
// level. Other settings take effect on the next start. The returned
// function stops the watcher.
func (app *Application) watchConfig() func() {
	noop := func() {}
	if _, err := os.Stat(app.opts.ConfigPath); err != nil {
		return noop
	}

	log := WithComponent(app.log, "config")
	w, err := watcher.New()
	if err != nil {
		log.WithError(err).Warn("config watcher unavailable")
		return noop
	}
	if err := w.Watch(app.opts.ConfigPath); err != nil {
		log.WithError(err).Warn("cannot watch config file")
		w.Stop()
		return noop
	}

	w.OnChange(func(ev watcher.Event) {
		if ev.Op == watcher.OpRemove || ev.Op == watcher.OpRename {
			return
		}
		cfg, err := app.loadConfig()
		if err != nil {
			log.WithError(err).Warn("config reload failed, keeping previous settings")
			return
		}
		app.mu.Lock()
		app.cfg = cfg
		app.mu.Unlock()

		level := ParseLogLevel(cfg.Logging.Level)
		app.log.Logger.SetLevel(level)
		log.WithField("level", level.String()).Info("config reloaded")
	})
	w.OnError(func(err error) {
		log.WithError(err).Warn("config watcher error")
	})
	w.Start()

	return w.Stop
}

// Close releases the log file. Safe to call more than once.
func (app *Application) Close() error {
	if app.logFile == nil {
		return nil
	}
	err := app.logFile.Close()
	app.logFile = nil
	if errors.Is(err, os.ErrClosed) {
		return nil
	}
	return err
}
