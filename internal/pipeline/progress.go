package pipeline

import "github.com/jonathan/cv-pipeline/internal/types"

// ProgressEvent reports a phase transition or notable step within a phase.
type ProgressEvent struct {
	Phase   types.Phase
	Message string
}

// ProgressCallback receives progress events during a run. Callbacks run on
// the orchestrator goroutine and should return quickly.
type ProgressCallback func(ProgressEvent)

func (p *Pipeline) emit(phase types.Phase, message string) {
	if p.Progress != nil {
		p.Progress(ProgressEvent{Phase: phase, Message: message})
	}
}
