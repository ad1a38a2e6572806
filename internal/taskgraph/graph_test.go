package taskgraph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ids(tasks []Task) []string {
	out := make([]string, len(tasks))
	for i, t := range tasks {
		out[i] = t.ID
	}
	return out
}

func TestParseStatus(t *testing.T) {
	tests := []struct {
		in   string
		want Status
	}{
		{"", StatusPending},
		{"Pending", StatusPending},
		{"running", StatusRunning},
		{"in-progress", StatusRunning},
		{"done", StatusDone},
		{"OK", StatusDone},
		{"failed", StatusFailed},
		{"skipped", StatusSkipped},
		{"cancelled", StatusSkipped},
	}
	for _, tt := range tests {
		got, err := ParseStatus(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	_, err := ParseStatus("exploded")
	assert.Error(t, err)
}

func TestStatusString(t *testing.T) {
	assert.Equal(t, "pending", StatusPending.String())
	assert.Equal(t, "running", StatusRunning.String())
	assert.Equal(t, "done", StatusDone.String())
	assert.Equal(t, "failed", StatusFailed.String())
	assert.Equal(t, "skipped", StatusSkipped.String())
	assert.True(t, StatusSkipped.Finished())
	assert.False(t, StatusRunning.Finished())
}

func TestNewTopologicalOrder(t *testing.T) {
	g, err := New("t", []Task{
		{ID: "test", Deps: []string{"build"}},
		{ID: "lint"},
		{ID: "build", Deps: []string{"fetch"}},
		{ID: "fetch"},
		{ID: "ship", Deps: []string{"test", "lint"}},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"lint", "fetch", "build", "test", "ship"}, ids(g.Ordered()))
	assert.Equal(t, []string{"test", "lint", "build", "fetch", "ship"}, ids(g.Tasks()))

	assert.Equal(t, 0, g.Depth("fetch"))
	assert.Equal(t, 1, g.Depth("build"))
	assert.Equal(t, 2, g.Depth("test"))
	assert.Equal(t, 3, g.Depth("ship"))
	assert.Equal(t, 0, g.Depth("lint"))
}

func TestNewValidation(t *testing.T) {
	_, err := New("", []Task{{ID: "a"}, {ID: "a"}})
	assert.ErrorIs(t, err, ErrDuplicateTask)

	_, err = New("", []Task{{ID: "a", Deps: []string{"ghost"}}})
	assert.ErrorIs(t, err, ErrUnknownDependency)
	assert.Contains(t, err.Error(), "ghost")

	_, err = New("", []Task{
		{ID: "a", Deps: []string{"c"}},
		{ID: "b", Deps: []string{"a"}},
		{ID: "c", Deps: []string{"b"}},
		{ID: "d"},
	})
	assert.ErrorIs(t, err, ErrCycle)

	_, err = New("", []Task{{ID: "self", Deps: []string{"self"}}})
	assert.ErrorIs(t, err, ErrCycle)

	_, err = New("", []Task{{Name: "no id"}})
	assert.Error(t, err)
}

func TestNewCopiesInput(t *testing.T) {
	deps := []string{"a"}
	tasks := []Task{{ID: "a"}, {ID: "b", Deps: deps, Progress: 3}}

	g, err := New("", tasks)
	require.NoError(t, err)

	deps[0] = "mutated"
	tasks[0].Name = "mutated"

	b, _ := g.Task("b")
	assert.Equal(t, []string{"a"}, b.Deps)
	assert.Equal(t, 1.0, b.Progress, "progress is clamped")
	a, _ := g.Task("a")
	assert.Empty(t, a.Name)
}

func TestWithTaskIsCopyOnWrite(t *testing.T) {
	g, err := New("", []Task{{ID: "a"}, {ID: "b", Deps: []string{"a"}}})
	require.NoError(t, err)

	next, err := g.WithTask("a", StatusDone, 1)
	require.NoError(t, err)

	a, _ := g.Task("a")
	assert.Equal(t, StatusPending, a.Status)
	a, _ = next.Task("a")
	assert.Equal(t, StatusDone, a.Status)

	assert.False(t, g.Ready("b"))
	assert.True(t, next.Ready("b"))

	_, err = g.WithTask("nope", StatusDone, 0)
	assert.ErrorIs(t, err, ErrTaskNotFound)
}

func TestBlocked(t *testing.T) {
	g, err := New("", []Task{
		{ID: "a", Status: StatusFailed},
		{ID: "b", Deps: []string{"a"}},
		{ID: "c"},
	})
	require.NoError(t, err)

	assert.True(t, g.Blocked("b"))
	assert.False(t, g.Blocked("c"))
	assert.False(t, g.Blocked("missing"))
}

func TestSummary(t *testing.T) {
	g, err := New("", []Task{
		{ID: "a", Status: StatusDone},
		{ID: "b", Status: StatusRunning},
		{ID: "c", Status: StatusFailed},
		{ID: "d"},
		{ID: "e", Status: StatusSkipped},
	})
	require.NoError(t, err)

	s := g.Summary()
	assert.Equal(t, Summary{Total: 5, Pending: 1, Running: 1, Done: 1, Failed: 1, Skipped: 1}, s)
	assert.False(t, s.Finished())
}
