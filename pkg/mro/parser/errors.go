package parser

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/askiada/go-martian/pkg/mro/model"
)

var (
	ErrUnexpectedToken   = errors.New("unexpected token")
	ErrUnterminated      = errors.New("unterminated literal")
	ErrUnknownType       = model.ErrUnknownType
	ErrUnknownFileType   = errors.New("unknown file type")
	ErrMissingSource     = errors.New("missing src entry")
	ErrDuplicateSource   = errors.New("more than one src entry")
	ErrDuplicateField    = errors.New("duplicate field")
	ErrDuplicatePipeline = errors.New("more than one pipeline")
	ErrMalformedEntry    = errors.New("malformed entry")
)

// ParseError is a syntax or structure error located in an MRO file.
type ParseError struct {
	Err    error
	File   string
	Msg    string
	Line   int
	Column int
}

func newError(file string, pos Pos, err error, format string, args ...any) *ParseError {
	return &ParseError{
		Err:    err,
		File:   file,
		Msg:    fmt.Sprintf(format, args...),
		Line:   pos.Line,
		Column: pos.Column,
	}
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s:%d:%d: %s", e.File, e.Line, e.Column, e.Msg)
}

func (e *ParseError) Unwrap() error { return e.Err }
