// Package main is the entry point for the taskdash terminal dashboard.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dshills/taskdash/internal/app"
	"github.com/dshills/taskdash/internal/config"
)

// Version information (set via ldflags during build).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	os.Exit(run())
}

func run() int {
	opts, showStatus := parseFlags()

	application, err := app.New(opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to initialize: %v\n", err)
		return 1
	}
	defer application.Close()

	// Handle signals for graceful shutdown
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(signals)

	go func() {
		<-signals
		application.RequestTermination()
	}()

	err = application.Run(context.Background())
	if showStatus {
		fmt.Fprintf(os.Stderr, "%s\n", application.Status())
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

// flagValues holds command-line settings; only flags given explicitly
// override the configuration file.
type flagValues struct {
	tasks    string
	backend  string
	border   int
	fps      int
	logLevel string
	logFile  string
	noWatch  bool
}

func parseFlags() (app.Options, bool) {
	var (
		opts        app.Options
		fv          flagValues
		showStatus  bool
		showVersion bool
		showHelp    bool
	)

	flag.StringVar(&opts.ConfigPath, "config", config.DefaultPath, "Path to configuration file")
	flag.StringVar(&opts.ConfigPath, "c", config.DefaultPath, "Path to configuration file (shorthand)")
	flag.StringVar(&fv.tasks, "tasks", "", "Task file to display (.yaml, .yml, .toml, .lua)")
	flag.StringVar(&fv.tasks, "t", "", "Task file to display (shorthand)")
	flag.StringVar(&fv.backend, "backend", config.BackendANSI, "Terminal backend (ansi, tcell)")
	flag.IntVar(&fv.border, "border", 5, "Rows and columns reserved around the dashboard")
	flag.IntVar(&fv.fps, "fps", 30, "Frames per second")
	flag.StringVar(&fv.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	flag.StringVar(&fv.logFile, "log-file", "", "Write logs to this file")
	flag.BoolVar(&fv.noWatch, "no-watch", false, "Do not reload the task file on change")
	flag.BoolVar(&opts.Demo, "demo", false, "Show a simulated pipeline when no task file is given")
	flag.Uint64Var(&opts.Seed, "seed", 0, "Seed for the demo simulator (0 picks one)")
	flag.BoolVar(&showStatus, "status", false, "Print viewport geometry to stderr on exit")
	flag.BoolVar(&showVersion, "version", false, "Show version information")
	flag.BoolVar(&showVersion, "v", false, "Show version information (shorthand)")
	flag.BoolVar(&showHelp, "help", false, "Show help message")
	flag.BoolVar(&showHelp, "h", false, "Show help message (shorthand)")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "taskdash - live task graph dashboard for the terminal\n\n")
		fmt.Fprintf(os.Stderr, "Usage: taskdash [options] [task-file]\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nEnvironment:\n")
		fmt.Fprintf(os.Stderr, "  %sBORDER, %sFPS, %sBACKEND, %sTASKS, %sLOG_LEVEL, %sLOG_FILE\n",
			config.EnvPrefix, config.EnvPrefix, config.EnvPrefix, config.EnvPrefix, config.EnvPrefix, config.EnvPrefix)
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  taskdash -demo                  Watch a simulated release pipeline\n")
		fmt.Fprintf(os.Stderr, "  taskdash build.yaml             Show and follow a task file\n")
		fmt.Fprintf(os.Stderr, "  taskdash -backend tcell ci.lua  Full-screen view of a Lua task script\n")
	}

	flag.Parse()

	if showHelp {
		flag.Usage()
		os.Exit(0)
	}

	if showVersion {
		fmt.Printf("taskdash %s\n", version)
		fmt.Printf("Commit: %s\n", commit)
		fmt.Printf("Built: %s\n", date)
		os.Exit(0)
	}

	if fv.tasks == "" && flag.NArg() > 0 {
		fv.tasks = flag.Arg(0)
	}

	set := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })

	opts.Override = func(c *config.Config) {
		if fv.tasks != "" {
			c.Content.Path = fv.tasks
		}
		if set["backend"] {
			c.Render.Backend = fv.backend
		}
		if set["border"] {
			c.Render.Border = fv.border
		}
		if set["fps"] {
			c.Render.FPS = fv.fps
		}
		if set["log-level"] {
			c.Logging.Level = fv.logLevel
		}
		if set["log-file"] {
			c.Logging.File = fv.logFile
		}
		if fv.noWatch {
			c.Content.Watch = false
		}
	}

	return opts, showStatus
}
