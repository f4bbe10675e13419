package models

import "fmt"

// Phase is a Job's position in the conversion state machine.
type Phase string

const (
	PhaseStarting   Phase = "starting"
	PhaseDownloaded Phase = "downloaded"
	PhaseUploaded   Phase = "uploaded"
	PhaseFailed     Phase = "failed"

	// PhasePending is never stored; it is reported for filenames with no job row.
	PhasePending Phase = "pending"
)

var transitions = map[Phase][]Phase{
	PhaseStarting:   {PhaseDownloaded, PhaseFailed},
	PhaseDownloaded: {PhaseUploaded, PhaseFailed},
}

func (p Phase) String() string {
	return string(p)
}

// IsTerminal reports whether no transition leaves p.
func (p Phase) IsTerminal() bool {
	return p == PhaseUploaded || p == PhaseFailed
}

// Valid reports whether p can be stored on a Job.
func (p Phase) Valid() bool {
	switch p {
	case PhaseStarting, PhaseDownloaded, PhaseUploaded, PhaseFailed:
		return true
	default:
		return false
	}
}

// CanTransition reports whether the state machine allows from → to.
func CanTransition(from, to Phase) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ParsePhase converts a stored phase string, rejecting unknown values.
func ParsePhase(s string) (Phase, error) {
	p := Phase(s)
	if !p.Valid() {
		return "", fmt.Errorf("unknown phase %q", s)
	}
	return p, nil
}
