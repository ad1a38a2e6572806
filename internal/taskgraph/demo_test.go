package taskgraph

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDemoGraph(t *testing.T) {
	g := DemoGraph()

	assert.Equal(t, 9, g.Len())
	assert.Equal(t, "fetch", g.Ordered()[0].ID)
	assert.Equal(t, "publish", g.Ordered()[g.Len()-1].ID)
	assert.Equal(t, 9, g.Summary().Pending)
}

func TestSimulatorRunsToCompletion(t *testing.T) {
	sim := NewSimulator(DemoGraph(), 1, WithParallelism(2))

	var g *Graph
	finished := false
	for i := 0; i < 500 && !finished; i++ {
		g, finished = sim.Step()
		assert.LessOrEqual(t, g.Summary().Running, 2)
	}

	require.True(t, finished)
	assert.Equal(t, 9, g.Summary().Done)
	assert.Same(t, g, sim.Graph())
}

func TestSimulatorRespectsDependencies(t *testing.T) {
	sim := NewSimulator(DemoGraph(), 7)

	for i := 0; i < 500; i++ {
		g, finished := sim.Step()
		for _, task := range g.Tasks() {
			if task.Status == StatusRunning || task.Status == StatusDone {
				for _, dep := range task.Deps {
					d, _ := g.Task(dep)
					assert.Equal(t, StatusDone, d.Status, "%s started before %s finished", task.ID, dep)
				}
			}
		}
		if finished {
			return
		}
	}
	t.Fatal("simulation did not finish")
}

func TestSimulatorFailuresSkipDependents(t *testing.T) {
	sim := NewSimulator(DemoGraph(), 3, WithFailureRate(1))

	var g *Graph
	for finished := false; !finished; {
		g, finished = sim.Step()
	}

	fetch, _ := g.Task("fetch")
	assert.Equal(t, StatusFailed, fetch.Status)
	s := g.Summary()
	assert.Equal(t, 1, s.Failed)
	assert.Equal(t, 8, s.Skipped)
}

func TestSimulatorDeterministic(t *testing.T) {
	a := NewSimulator(DemoGraph(), 42, WithFailureRate(0.3))
	b := NewSimulator(DemoGraph(), 42, WithFailureRate(0.3))

	for i := 0; i < 50; i++ {
		ga, _ := a.Step()
		gb, _ := b.Step()
		assert.Equal(t, ga.Tasks(), gb.Tasks())
	}
}

func TestSimulatorRun(t *testing.T) {
	sim := NewSimulator(DemoGraph(), 5, WithParallelism(9))

	var out published
	err := sim.Run(context.Background(), time.Millisecond, out.publish)

	require.NoError(t, err)
	assert.Greater(t, out.count(), 1)
	assert.True(t, out.last().Summary().Finished())
}
