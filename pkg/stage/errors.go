package stage

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/askiada/go-martian/pkg/mro/model"
)

var (
	ErrNoImplementation  = errors.New("no implementation found")
	ErrMissingEntryPoint = errors.New("implementation has no entry point for phase")
	ErrInvalidChunks     = errors.New("split returned invalid chunks")
	ErrStageMustBeSet    = errors.New("stage must be set")
	ErrLoaderMustBeSet   = errors.New("loader must be set")
)

// ExecutionError carries an error returned by a stage implementation. Unwrap returns the
// implementation's error untouched.
type ExecutionError struct {
	Stage string
	Phase model.Phase
	Err   error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("stage %s %s: %v", e.Stage, e.Phase, e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }

// PersistenceError reports an output that could not be written or published.
type PersistenceError struct {
	Path string
	Err  error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("unable to persist %s: %v", e.Path, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
