package tram

import "sync"

// ProgressFunc receives progress updates during long-running phases of a
// fit. stage names the phase; done out of total units are complete.
// A nil ProgressFunc disables reporting. Reporting never changes numeric
// results. The callback may be invoked from multiple goroutines, but calls
// are serialized by the library.
type ProgressFunc func(stage string, done, total int)

// Progress stage names.
const (
	StageSelfKernel  = "self-kernel"
	StageCrossKernel = "cross-kernel"
	StageVoronoi     = "voronoi"
	StageEmbed       = "embed"
	StageL2Distance  = "l2-distance"
)

// progressTracker serializes progress callbacks from parallel workers.
// The zero-value-like nil tracker (from a nil ProgressFunc) is a no-op.
type progressTracker struct {
	mu    sync.Mutex
	fn    ProgressFunc
	stage string
	done  int
	total int
}

func newProgressTracker(fn ProgressFunc, stage string, total int) *progressTracker {
	if fn == nil {
		return nil
	}
	t := &progressTracker{fn: fn, stage: stage, total: total}
	fn(stage, 0, total)
	return t
}

// add records k completed units and reports the new count.
func (t *progressTracker) add(k int) {
	if t == nil {
		return
	}
	t.mu.Lock()
	t.done += k
	t.fn(t.stage, t.done, t.total)
	t.mu.Unlock()
}
