package plugin

import "fmt"

// Phase is one stage of the task pipeline.
type Phase string

const (
	PhaseStart    Phase = "start"
	PhasePrepare  Phase = "prepare"
	PhaseInput    Phase = "input"
	PhaseMetainfo Phase = "metainfo"
	PhaseFilter   Phase = "filter"
	PhaseDownload Phase = "download"
	PhaseOutput   Phase = "output"
	PhaseLearn    Phase = "learn"
	PhaseExit     Phase = "exit"

	// PhaseAbort runs out of band when a task aborts.
	PhaseAbort Phase = "abort"
)

// DefaultPriority is used for phases registered without an explicit priority.
const DefaultPriority = 128

var phaseOrder = []Phase{
	PhaseStart,
	PhasePrepare,
	PhaseInput,
	PhaseMetainfo,
	PhaseFilter,
	PhaseDownload,
	PhaseOutput,
	PhaseLearn,
	PhaseExit,
}

// Phases returns the ordered pipeline phases, excluding abort.
func Phases() []Phase {
	return append([]Phase(nil), phaseOrder...)
}

// ReplayPhases returns the phases run again on a rerun pass: input through
// learn.
func ReplayPhases() []Phase {
	return append([]Phase(nil), phaseOrder[2:len(phaseOrder)-1]...)
}

// ParsePhase validates a phase name.
func ParsePhase(name string) (Phase, error) {
	for _, p := range phaseOrder {
		if string(p) == name {
			return p, nil
		}
	}
	if name == string(PhaseAbort) {
		return PhaseAbort, nil
	}
	return "", fmt.Errorf("unknown phase %q", name)
}

func (p Phase) String() string { return string(p) }
