package stage

import (
	"context"

	"github.com/pkg/errors"

	"github.com/askiada/go-martian/pkg/mro/model"
)

// Implementation is the code behind a stage. Main and Join fill outs in place.
type Implementation interface {
	Split(ctx context.Context, md Metadata, args Args) ([]Args, error)
	Main(ctx context.Context, md Metadata, args Args, outs Outs) error
	Join(ctx context.Context, md Metadata, args Args, outs Outs, chunkDefs []Args, chunkOuts []Outs) error
}

type (
	SplitFunc func(ctx context.Context, md Metadata, args Args) ([]Args, error)
	MainFunc  func(ctx context.Context, md Metadata, args Args, outs Outs) error
	JoinFunc  func(ctx context.Context, md Metadata, args Args, outs Outs, chunkDefs []Args, chunkOuts []Outs) error
)

// Funcs adapts plain functions to an Implementation. A nil function makes its phase fail with
// ErrMissingEntryPoint.
type Funcs struct {
	SplitFn SplitFunc
	MainFn  MainFunc
	JoinFn  JoinFunc
}

func (f Funcs) Split(ctx context.Context, md Metadata, args Args) ([]Args, error) {
	if f.SplitFn == nil {
		return nil, errors.Wrap(ErrMissingEntryPoint, string(model.PhaseSplit))
	}
	return f.SplitFn(ctx, md, args)
}

func (f Funcs) Main(ctx context.Context, md Metadata, args Args, outs Outs) error {
	if f.MainFn == nil {
		return errors.Wrap(ErrMissingEntryPoint, string(model.PhaseMain))
	}
	return f.MainFn(ctx, md, args, outs)
}

func (f Funcs) Join(ctx context.Context, md Metadata, args Args, outs Outs, chunkDefs []Args, chunkOuts []Outs) error {
	if f.JoinFn == nil {
		return errors.Wrap(ErrMissingEntryPoint, string(model.PhaseJoin))
	}
	return f.JoinFn(ctx, md, args, outs, chunkDefs, chunkOuts)
}

// Loader resolves the implementation of a stage. It returns an error wrapping
// ErrNoImplementation when it does not know the stage.
type Loader interface {
	Load(stage *model.Stage) (Implementation, error)
}

// Builtins serves implementations compiled into the binary, keyed by stage name.
type Builtins map[string]Implementation

func (b Builtins) Load(stage *model.Stage) (Implementation, error) {
	impl, ok := b[stage.Name]
	if !ok {
		return nil, errors.Wrapf(ErrNoImplementation, "no builtin for stage %s", stage.Name)
	}
	return impl, nil
}

// ChainLoader asks each loader in turn and returns the first implementation found.
type ChainLoader []Loader

func (c ChainLoader) Load(stage *model.Stage) (Implementation, error) {
	for _, loader := range c {
		impl, err := loader.Load(stage)
		if err == nil {
			return impl, nil
		}
		if !errors.Is(err, ErrNoImplementation) {
			return nil, err
		}
	}
	return nil, errors.Wrapf(ErrNoImplementation, "stage %s at %s", stage.Name, stage.Source)
}
