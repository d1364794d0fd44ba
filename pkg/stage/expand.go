package stage

import (
	"strings"

	"github.com/askiada/go-martian/pkg/mro/model"
)

// Expand returns the fields a caller must bind for phase, in order:
//   - split: inputs,
//   - main: inputs then splits,
//   - join: inputs, splits and outputs renamed with the "in.", "split." and "out." prefixes.
func Expand(stage *model.Stage, phase model.Phase) ([]model.Field, error) {
	if !stage.Supports(phase) {
		return nil, &model.LookupError{Err: model.ErrUnsupportedPhase, Stage: stage.Name, Phase: phase}
	}

	switch phase {
	case model.PhaseSplit:
		return append([]model.Field(nil), stage.Inputs...), nil
	case model.PhaseMain:
		fields := make([]model.Field, 0, len(stage.Inputs)+len(stage.Splits))
		fields = append(fields, stage.Inputs...)
		return append(fields, stage.Splits...), nil
	default:
		fields := make([]model.Field, 0, len(stage.Inputs)+len(stage.Splits)+len(stage.Outputs))
		fields = appendPrefixed(fields, model.InPrefix, stage.Inputs)
		fields = appendPrefixed(fields, model.SplitPrefix, stage.Splits)
		return appendPrefixed(fields, model.OutPrefix, stage.Outputs), nil
	}
}

func appendPrefixed(dst []model.Field, prefix string, fields []model.Field) []model.Field {
	for _, f := range fields {
		dst = append(dst, f.Renamed(prefix+f.Name))
	}
	return dst
}

// PerChunk reports whether an expanded join field carries one value per chunk.
func PerChunk(phase model.Phase, name string) bool {
	if phase != model.PhaseJoin {
		return false
	}
	return strings.HasPrefix(name, model.SplitPrefix) || strings.HasPrefix(name, model.OutPrefix)
}
