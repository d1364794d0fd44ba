package model

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

var (
	ErrUnknownType      = errors.New("unknown type")
	ErrUnknownStage     = errors.New("unknown stage")
	ErrUnknownPipeline  = errors.New("unknown pipeline")
	ErrUnsupportedPhase = errors.New("unsupported phase")
	ErrMissingValue     = errors.New("missing value")
	ErrInvalidValue     = errors.New("invalid value")
	ErrChunkMismatch    = errors.New("chunk count mismatch")
)

// LookupError reports a stage, pipeline or phase that does not exist.
type LookupError struct {
	Err         error
	Stage       string
	Phase       Phase
	Suggestions []string
}

func (e *LookupError) Error() string {
	var msg string
	switch {
	case errors.Is(e.Err, ErrUnsupportedPhase):
		msg = fmt.Sprintf("stage %s has no %s phase", e.Stage, e.Phase)
	default:
		msg = fmt.Sprintf("%s %q", e.Err, e.Stage)
	}
	if len(e.Suggestions) > 0 {
		msg += fmt.Sprintf(" (did you mean %s?)", strings.Join(e.Suggestions, ", "))
	}
	return msg
}

func (e *LookupError) Unwrap() error { return e.Err }

// BindingError reports a field whose supplied value is missing or unusable.
type BindingError struct {
	Err   error
	Field string
	Type  Type
}

func (e *BindingError) Error() string {
	typ := "?"
	if e.Type != nil {
		typ = e.Type.String()
	}
	return fmt.Sprintf("field %s (%s): %v", e.Field, typ, e.Err)
}

func (e *BindingError) Unwrap() error { return e.Err }
