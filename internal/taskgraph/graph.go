// Package taskgraph models a graph of tasks with dependencies and draws it
// as a dashboard.
//
// A Graph is immutable once built: state changes produce a new Graph, so a
// value handed to the renderer can be drawn while producers build the next
// one.
package taskgraph

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// Graph errors.
var (
	// ErrDuplicateTask indicates two tasks share an id.
	ErrDuplicateTask = errors.New("duplicate task id")

	// ErrUnknownDependency indicates a dependency names no task.
	ErrUnknownDependency = errors.New("unknown dependency")

	// ErrCycle indicates the dependencies form a cycle.
	ErrCycle = errors.New("dependency cycle")

	// ErrTaskNotFound indicates an id that is not in the graph.
	ErrTaskNotFound = errors.New("task not found")
)

// Status is the execution state of a task.
type Status int

const (
	StatusPending Status = iota
	StatusRunning
	StatusDone
	StatusFailed
	StatusSkipped
)

// String returns the status name.
func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusRunning:
		return "running"
	case StatusDone:
		return "done"
	case StatusFailed:
		return "failed"
	case StatusSkipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// Finished reports whether the task will not change state again.
func (s Status) Finished() bool {
	return s == StatusDone || s == StatusFailed || s == StatusSkipped
}

// ParseStatus parses a status name. The empty string is pending.
func ParseStatus(s string) (Status, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "pending", "todo", "waiting":
		return StatusPending, nil
	case "running", "active", "in-progress", "in_progress":
		return StatusRunning, nil
	case "done", "ok", "success", "complete", "completed":
		return StatusDone, nil
	case "failed", "fail", "error":
		return StatusFailed, nil
	case "skipped", "skip", "cancelled", "canceled":
		return StatusSkipped, nil
	default:
		return StatusPending, fmt.Errorf("unknown task status %q", s)
	}
}

// Task is one node of the graph.
type Task struct {
	ID       string
	Name     string
	Status   Status
	Progress float64 // 0..1, meaningful while running
	Deps     []string
}

// Label returns the display name, falling back to the id.
func (t Task) Label() string {
	if t.Name != "" {
		return t.Name
	}
	return t.ID
}

// ValidationError describes why a set of tasks does not form a graph.
type ValidationError struct {
	Task   string
	Detail string
	Err    error
}

func (e *ValidationError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("task %q: %v: %s", e.Task, e.Err, e.Detail)
	}
	return fmt.Sprintf("task %q: %v", e.Task, e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// Graph is a validated, topologically ordered set of tasks.
type Graph struct {
	title string
	tasks []Task       // declaration order
	index map[string]int
	order []int // topological order, ties broken by declaration order
	depth []int // longest dependency chain above each task

	palette Palette
}

// New validates tasks and builds a graph. Task slices are copied.
func New(title string, tasks []Task) (*Graph, error) {
	g := &Graph{
		title:   title,
		palette: DefaultPalette(),
		tasks:   make([]Task, len(tasks)),
		index:   make(map[string]int, len(tasks)),
	}

	for i, t := range tasks {
		if t.ID == "" {
			return nil, &ValidationError{Task: t.Name, Err: errors.New("missing task id")}
		}
		if _, dup := g.index[t.ID]; dup {
			return nil, &ValidationError{Task: t.ID, Err: ErrDuplicateTask}
		}
		t.Deps = slices.Clone(t.Deps)
		t.Progress = clampProgress(t.Progress)
		g.tasks[i] = t
		g.index[t.ID] = i
	}

	for _, t := range g.tasks {
		for _, dep := range t.Deps {
			if _, ok := g.index[dep]; !ok {
				return nil, &ValidationError{Task: t.ID, Detail: dep, Err: ErrUnknownDependency}
			}
		}
	}

	if err := g.sort(); err != nil {
		return nil, err
	}
	return g, nil
}

// sort computes order and depth with Kahn's algorithm.
func (g *Graph) sort() error {
	n := len(g.tasks)
	indegree := make([]int, n)
	dependents := make([][]int, n)
	for i, t := range g.tasks {
		for _, dep := range t.Deps {
			d := g.index[dep]
			indegree[i]++
			dependents[d] = append(dependents[d], i)
		}
	}

	g.order = make([]int, 0, n)
	g.depth = make([]int, n)

	// ready is kept sorted so output follows declaration order among peers.
	var ready []int
	for i := range n {
		if indegree[i] == 0 {
			ready = append(ready, i)
		}
	}

	for len(ready) > 0 {
		i := ready[0]
		ready = ready[1:]
		g.order = append(g.order, i)

		for _, j := range dependents[i] {
			g.depth[j] = max(g.depth[j], g.depth[i]+1)
			indegree[j]--
			if indegree[j] == 0 {
				pos, _ := slices.BinarySearch(ready, j)
				ready = slices.Insert(ready, pos, j)
			}
		}
	}

	if len(g.order) != n {
		for i := range n {
			if indegree[i] > 0 {
				return &ValidationError{Task: g.tasks[i].ID, Err: ErrCycle}
			}
		}
	}
	return nil
}

func clampProgress(p float64) float64 {
	return min(max(p, 0), 1)
}

// Title returns the graph title.
func (g *Graph) Title() string {
	return g.title
}

// Len returns the number of tasks.
func (g *Graph) Len() int {
	return len(g.tasks)
}

// Task returns the task with the given id.
func (g *Graph) Task(id string) (Task, bool) {
	i, ok := g.index[id]
	if !ok {
		return Task{}, false
	}
	return g.tasks[i], true
}

// Tasks returns the tasks in declaration order.
func (g *Graph) Tasks() []Task {
	return slices.Clone(g.tasks)
}

// Ordered returns the tasks in topological order.
func (g *Graph) Ordered() []Task {
	out := make([]Task, len(g.order))
	for k, i := range g.order {
		out[k] = g.tasks[i]
	}
	return out
}

// Depth returns the length of the longest dependency chain above id.
func (g *Graph) Depth(id string) int {
	i, ok := g.index[id]
	if !ok {
		return 0
	}
	return g.depth[i]
}

// Ready reports whether every dependency of id is done.
func (g *Graph) Ready(id string) bool {
	t, ok := g.Task(id)
	if !ok {
		return false
	}
	for _, dep := range t.Deps {
		if d, _ := g.Task(dep); d.Status != StatusDone {
			return false
		}
	}
	return true
}

// Blocked reports whether a dependency of id failed or was skipped.
func (g *Graph) Blocked(id string) bool {
	t, ok := g.Task(id)
	if !ok {
		return false
	}
	for _, dep := range t.Deps {
		if d, _ := g.Task(dep); d.Status == StatusFailed || d.Status == StatusSkipped {
			return true
		}
	}
	return false
}

// WithTask returns a copy of the graph with the state of task id replaced.
// Structure (id, dependencies) cannot change this way.
func (g *Graph) WithTask(id string, status Status, progress float64) (*Graph, error) {
	i, ok := g.index[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTaskNotFound, id)
	}

	next := *g
	next.tasks = slices.Clone(g.tasks)
	next.tasks[i].Status = status
	next.tasks[i].Progress = clampProgress(progress)
	return &next, nil
}

// Summary counts tasks per status.
type Summary struct {
	Total   int
	Pending int
	Running int
	Done    int
	Failed  int
	Skipped int
}

// Finished reports whether no task can change state any more.
func (s Summary) Finished() bool {
	return s.Pending == 0 && s.Running == 0
}

// Summary counts the tasks per status.
func (g *Graph) Summary() Summary {
	s := Summary{Total: len(g.tasks)}
	for _, t := range g.tasks {
		switch t.Status {
		case StatusPending:
			s.Pending++
		case StatusRunning:
			s.Running++
		case StatusDone:
			s.Done++
		case StatusFailed:
			s.Failed++
		case StatusSkipped:
			s.Skipped++
		}
	}
	return s
}
