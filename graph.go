package assetgen

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/dominikbraun/graph"
	"github.com/rotisserie/eris"
	"go.uber.org/multierr"
)

// TaskFunc is the body of a task.
type TaskFunc func(ctx context.Context) error

// TaskState is the outcome of a task in a TaskGraph run.
type TaskState int

const (
	TaskPending TaskState = iota
	TaskSucceeded
	TaskFailed
	TaskSkipped
)

func (s TaskState) String() string {
	switch s {
	case TaskSucceeded:
		return "succeeded"
	case TaskFailed:
		return "failed"
	case TaskSkipped:
		return "skipped"
	default:
		return "pending"
	}
}

// TaskGraph is a set of named tasks with "runs after" edges between them.
// A task starts as soon as every task it runs after has succeeded, so tasks
// without a path between them run concurrently.  When a task fails, the
// tasks depending on it are skipped; tasks already running are left to
// finish.
type TaskGraph struct {
	Hooks *HookRegistry

	g     graph.Graph[string, string]
	funcs map[string]TaskFunc

	mu    sync.Mutex
	state map[string]TaskState
}

// NewTaskGraph creates an empty task graph.
func NewTaskGraph() *TaskGraph {
	return &TaskGraph{
		g:     graph.New(graph.StringHash, graph.Directed(), graph.PreventCycles()),
		funcs: make(map[string]TaskFunc),
		state: make(map[string]TaskState),
	}
}

// Add registers a task that runs after the given tasks, which must already
// be registered.
func (t *TaskGraph) Add(name string, fn TaskFunc, after ...string) error {
	if err := t.g.AddVertex(name); err != nil {
		if errors.Is(err, graph.ErrVertexAlreadyExists) {
			return eris.Errorf("task %s is already defined", name)
		}
		return eris.Wrapf(err, "failed to add task %s", name)
	}
	t.funcs[name] = fn
	for _, dep := range after {
		if err := t.g.AddEdge(dep, name); err != nil {
			switch {
			case errors.Is(err, graph.ErrVertexNotFound):
				return eris.Wrapf(ErrUnknownTask, "%s runs after %s", name, dep)
			case errors.Is(err, graph.ErrEdgeCreatesCycle):
				return eris.Wrapf(ErrDependencyCycle, "%s runs after %s", name, dep)
			case errors.Is(err, graph.ErrEdgeAlreadyExists):
			default:
				return eris.Wrapf(err, "failed to order %s after %s", name, dep)
			}
		}
	}
	return nil
}

// Order returns the tasks in a valid execution order, ties broken by name.
func (t *TaskGraph) Order() ([]string, error) {
	order, err := graph.StableTopologicalSort(t.g, func(a, b string) bool { return a < b })
	if err != nil {
		return nil, eris.Wrap(err, "failed to order tasks")
	}
	return order, nil
}

// State returns the outcome of a task in the last run.
func (t *TaskGraph) State(name string) TaskState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state[name]
}

func (t *TaskGraph) setState(name string, s TaskState) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state[name] = s
}

// Run executes every task and returns the failures combined, in execution
// order.
func (t *TaskGraph) Run(ctx context.Context) error {
	order, err := t.Order()
	if err != nil {
		return err
	}
	preds, err := t.g.PredecessorMap()
	if err != nil {
		return eris.Wrap(err, "failed to read task graph")
	}

	done := make(map[string]chan struct{}, len(order))
	errs := make(map[string]error, len(order))
	t.mu.Lock()
	for _, name := range order {
		done[name] = make(chan struct{})
		t.state[name] = TaskPending
	}
	t.mu.Unlock()

	var wg sync.WaitGroup
	var errMu sync.Mutex
	for _, name := range order {
		wg.Add(1)
		go func(name string) {
			defer wg.Done()
			defer close(done[name])

			for dep := range preds[name] {
				<-done[dep]
			}
			for dep := range preds[name] {
				if t.State(dep) != TaskSucceeded {
					Logger(ctx).Warn().Str("task", name).Str("after", dep).Msg("skipped")
					t.setState(name, TaskSkipped)
					t.Hooks.emitTaskEnd(RunInfo{Task: name, Skipped: true})
					return
				}
			}

			if err := t.funcs[name](ctx); err != nil {
				errMu.Lock()
				errs[name] = err
				errMu.Unlock()
				t.setState(name, TaskFailed)
				return
			}
			t.setState(name, TaskSucceeded)
		}(name)
	}
	wg.Wait()

	var result error
	for _, name := range order {
		result = multierr.Append(result, errs[name])
	}
	return result
}

// timed runs fn and reports how long it took.
func timed(fn func() error) (time.Duration, error) {
	start := time.Now()
	err := fn()
	return time.Since(start), err
}
