package taskgraph

import (
	"context"
	"math/rand/v2"
	"time"
)

// DemoGraph returns a small release pipeline with every task pending.
func DemoGraph() *Graph {
	g, err := New("release pipeline", []Task{
		{ID: "fetch", Name: "Fetch sources"},
		{ID: "deps", Name: "Resolve dependencies", Deps: []string{"fetch"}},
		{ID: "lint", Name: "Lint", Deps: []string{"fetch"}},
		{ID: "build-api", Name: "Build API server", Deps: []string{"deps"}},
		{ID: "build-ui", Name: "Build web UI", Deps: []string{"deps"}},
		{ID: "unit", Name: "Unit tests", Deps: []string{"build-api", "build-ui"}},
		{ID: "e2e", Name: "End-to-end tests", Deps: []string{"unit"}},
		{ID: "package", Name: "Package artifacts", Deps: []string{"unit", "lint"}},
		{ID: "publish", Name: "Publish release", Deps: []string{"package", "e2e"}},
	})
	if err != nil {
		panic(err)
	}
	return g
}

// Simulator advances a graph as if its tasks were executing.
type Simulator struct {
	graph       *Graph
	rng         *rand.Rand
	parallelism int
	failureRate float64
}

// SimulatorOption configures a Simulator.
type SimulatorOption func(*Simulator)

// WithParallelism caps how many tasks run at once.
func WithParallelism(n int) SimulatorOption {
	return func(s *Simulator) {
		if n > 0 {
			s.parallelism = n
		}
	}
}

// WithFailureRate sets the chance that a finishing task fails.
func WithFailureRate(p float64) SimulatorOption {
	return func(s *Simulator) {
		s.failureRate = min(max(p, 0), 1)
	}
}

// NewSimulator creates a deterministic simulator for g.
func NewSimulator(g *Graph, seed uint64, opts ...SimulatorOption) *Simulator {
	s := &Simulator{
		graph:       g,
		rng:         rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		parallelism: 3,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Graph returns the current state.
func (s *Simulator) Graph() *Graph {
	return s.graph
}

// Step advances every running task, finishes those that reach 100%, skips
// tasks whose dependencies can no longer succeed and starts ready tasks.
// It reports whether the graph has finished.
func (s *Simulator) Step() (*Graph, bool) {
	g := s.graph
	running := 0

	for _, k := range g.order {
		t := g.tasks[k]
		if t.Status != StatusRunning {
			continue
		}
		progress := t.Progress + 0.05 + s.rng.Float64()*0.2
		status := StatusRunning
		if progress >= 1 {
			progress = 1
			status = StatusDone
			if s.rng.Float64() < s.failureRate {
				status = StatusFailed
			}
		} else {
			running++
		}
		g = mustWith(g, t.ID, status, progress)
	}

	for _, k := range g.order {
		t := g.tasks[k]
		if t.Status != StatusPending {
			continue
		}
		switch {
		case g.Blocked(t.ID):
			g = mustWith(g, t.ID, StatusSkipped, 0)
		case running < s.parallelism && g.Ready(t.ID):
			g = mustWith(g, t.ID, StatusRunning, 0)
			running++
		}
	}

	s.graph = g
	return g, g.Summary().Finished()
}

// Run publishes a new state every interval until the graph finishes or
// ctx is done.
func (s *Simulator) Run(ctx context.Context, interval time.Duration, publish PublishFunc) error {
	if err := publish(s.graph); err != nil {
		return err
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		g, finished := s.Step()
		if err := publish(g); err != nil {
			return err
		}
		if finished {
			return nil
		}
	}
}

func mustWith(g *Graph, id string, status Status, progress float64) *Graph {
	next, err := g.WithTask(id, status, progress)
	if err != nil {
		panic(err)
	}
	return next
}
