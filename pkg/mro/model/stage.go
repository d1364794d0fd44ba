package model

// Stage is a named unit of work with its typed contract.
type Stage struct {
	Name    string
	Inputs  []Field
	Outputs []Field
	// Splits holds the "split using" fields. An empty list means the stage has no split phase.
	Splits []Field
	// Source is the directory holding the implementation, resolved against the MRO file directory.
	Source string
	// SourcePath is the src path as written in the MRO file.
	SourcePath string
	// Lang is the src language token, e.g. "py".
	Lang string
	// File is the MRO file the stage was declared in.
	File string
}

// HasSplit reports whether the stage runs split and join phases.
func (s *Stage) HasSplit() bool {
	return len(s.Splits) > 0
}

// Phases lists the phases the stage exposes.
func (s *Stage) Phases() []Phase {
	if s.HasSplit() {
		return []Phase{PhaseSplit, PhaseMain, PhaseJoin}
	}
	return []Phase{PhaseMain}
}

// Supports reports whether phase can be requested for the stage.
func (s *Stage) Supports(phase Phase) bool {
	for _, p := range s.Phases() {
		if p == phase {
			return true
		}
	}
	return false
}
