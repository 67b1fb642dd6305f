package assetgen

import (
	"sync"
	"time"
)

// RunInfo describes one run of a task.
type RunInfo struct {
	Task string
	Mode Mode

	// Assets written by a pipeline run.  Empty for clean and composite tasks.
	Outputs Stream

	// Set on the end event when the task failed.
	Err error

	// True when the task was not started because a prerequisite failed.
	Skipped bool

	Started  time.Time
	Duration time.Duration
}

// HookRegistry holds callbacks that observe task runs.  Tasks run
// concurrently so callbacks may be invoked from several goroutines at once.
type HookRegistry struct {
	mu          sync.RWMutex
	onTaskStart []func(RunInfo)
	onTaskEnd   []func(RunInfo)
}

// NewHookRegistry creates an empty hook registry.
func NewHookRegistry() *HookRegistry {
	return &HookRegistry{}
}

// OnTaskStart registers a callback to run when a task starts.
func (h *HookRegistry) OnTaskStart(fn func(RunInfo)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onTaskStart = append(h.onTaskStart, fn)
}

// OnTaskEnd registers a callback to run when a task finishes, fails or is
// skipped.
func (h *HookRegistry) OnTaskEnd(fn func(RunInfo)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onTaskEnd = append(h.onTaskEnd, fn)
}

func (h *HookRegistry) emitTaskStart(info RunInfo) {
	if h == nil {
		return
	}
	h.mu.RLock()
	fns := h.onTaskStart
	h.mu.RUnlock()
	for _, fn := range fns {
		fn(info)
	}
}

func (h *HookRegistry) emitTaskEnd(info RunInfo) {
	if h == nil {
		return
	}
	h.mu.RLock()
	fns := h.onTaskEnd
	h.mu.RUnlock()
	for _, fn := range fns {
		fn(info)
	}
}
