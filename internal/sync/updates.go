package sync

import "fmt"

// Phase tracks where a pass is in its lifecycle.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseScanning
	PhaseReconciling
	PhaseWriting
	PhaseCommitted
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseScanning:
		return "scanning"
	case PhaseReconciling:
		return "reconciling"
	case PhaseWriting:
		return "writing"
	case PhaseCommitted:
		return "committed"
	case PhaseFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// ProgressUpdate is a point-in-time snapshot of a running pass, sent over an
// optional channel supplied by the caller.
type ProgressUpdate struct {
	Phase   Phase
	Current int
	Total   int
	Message string
}

// Percent is the fraction of tracks processed, in whole percentage points.
func (u ProgressUpdate) Percent() int {
	if u.Total <= 0 {
		return 0
	}
	return u.Current * 100 / u.Total
}

func trackUpdate(phase Phase, current, total int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   phase,
		Current: current,
		Total:   total,
		Message: fmt.Sprintf("%d/%d tracks", current, total),
	}
}

func phaseUpdate(phase Phase, total int, message string) ProgressUpdate {
	return ProgressUpdate{Phase: phase, Current: total, Total: total, Message: message}
}

// progressStride spaces per-track updates so a pass emits roughly one per
// percentage point. Tiny libraries report every track.
func progressStride(total int) int {
	stride := total / 100
	if stride < 1 {
		return 1
	}
	return stride
}

// sendProgress delivers an update without ever blocking the pass. A slow or
// absent consumer drops updates instead of stalling writes.
func sendProgress(ch chan<- ProgressUpdate, update ProgressUpdate) {
	if ch == nil {
		return
	}
	select {
	case ch <- update:
	default:
	}
}
