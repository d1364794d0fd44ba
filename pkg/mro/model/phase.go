package model

import "github.com/pkg/errors"

// Phase is one step of the split/main/join execution model.
type Phase string

const (
	PhaseSplit Phase = "split"
	PhaseMain  Phase = "main"
	PhaseJoin  Phase = "join"
)

// Join phase binding prefixes.
const (
	InPrefix    = "in."
	SplitPrefix = "split."
	OutPrefix   = "out."
)

// ParsePhase validates a phase name.
func ParsePhase(name string) (Phase, error) {
	switch Phase(name) {
	case PhaseSplit, PhaseMain, PhaseJoin:
		return Phase(name), nil
	}
	return "", errors.Wrapf(ErrUnsupportedPhase, "%q", name)
}
