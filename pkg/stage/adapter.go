package stage

import (
	"context"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/askiada/go-martian/pkg/mro/model"
)

// Publisher copies an output file somewhere else once it has been written.
type Publisher interface {
	Publish(ctx context.Context, md Metadata, path string) error
}

// Request is one phase invocation.
type Request struct {
	Stage    *model.Stage
	Phase    model.Phase
	Bindings Bindings
	// RunID identifies the invocation in logs and published paths. A random one is used when empty.
	RunID string
	// FilesDir overrides the adapter files directory.
	FilesDir string
	// Chunk names the chunk of a main phase run as part of a split.
	Chunk string
}

// Result is what a phase hands back: the chunks of a split, or the final outs of a main or join.
type Result struct {
	RunID  string
	Phase  model.Phase
	Chunks []Args
	Outs   Outs
	// Files lists the output files present after the phase.
	Files []string
}

// Adapter runs single stage phases.
type Adapter struct {
	loader    Loader
	logger    *zap.Logger
	filesDir  string
	publisher Publisher
}

// AdapterOption configures an Adapter.
type AdapterOption func(a *Adapter)

func WithLogger(logger *zap.Logger) AdapterOption {
	return func(a *Adapter) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// WithFilesDir sets the directory outputs are written to. It defaults to the working directory.
func WithFilesDir(dir string) AdapterOption {
	return func(a *Adapter) {
		a.filesDir = dir
	}
}

// WithPublisher publishes every output file after the outputs have been written.
func WithPublisher(p Publisher) AdapterOption {
	return func(a *Adapter) {
		a.publisher = p
	}
}

// NewAdapter returns an Adapter resolving implementations with loader.
func NewAdapter(loader Loader, opts ...AdapterOption) (*Adapter, error) {
	if loader == nil {
		return nil, ErrLoaderMustBeSet
	}

	a := &Adapter{loader: loader, logger: zap.NewNop(), filesDir: "."}
	for _, opt := range opts {
		opt(a)
	}

	return a, nil
}

// Run invokes one phase of req.Stage.
func (a *Adapter) Run(ctx context.Context, req Request) (*Result, error) {
	if req.Stage == nil {
		return nil, ErrStageMustBeSet
	}
	stage := req.Stage
	if !stage.Supports(req.Phase) {
		return nil, &model.LookupError{Err: model.ErrUnsupportedPhase, Stage: stage.Name, Phase: req.Phase}
	}

	md := Metadata{
		RunID:    req.RunID,
		Stage:    stage.Name,
		Phase:    req.Phase,
		Source:   stage.Source,
		FilesDir: req.FilesDir,
		Chunk:    req.Chunk,
	}
	if md.RunID == "" {
		md.RunID = uuid.NewString()
	}
	if md.FilesDir == "" {
		md.FilesDir = a.filesDir
	}
	logger := a.logger.With(
		zap.String("run_id", md.RunID),
		zap.String("stage", md.Stage),
		zap.String("phase", string(md.Phase)),
	)

	impl, err := a.loader.Load(stage)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to load implementation of stage %s", stage.Name)
	}

	start := time.Now()
	logger.Debug("phase started")

	var res *Result
	switch req.Phase {
	case model.PhaseSplit:
		res, err = a.split(ctx, impl, md, stage, req.Bindings)
	case model.PhaseMain:
		res, err = a.main(ctx, impl, md, stage, req.Bindings)
	default:
		res, err = a.join(ctx, impl, md, stage, req.Bindings)
	}
	if err != nil {
		logger.Error("phase failed", zap.Duration("duration", time.Since(start)), zap.Error(err))
		return nil, err
	}

	res.RunID = md.RunID
	res.Phase = req.Phase
	logger.Info("phase finished", zap.Duration("duration", time.Since(start)), zap.Int("chunks", len(res.Chunks)))

	return res, nil
}

func (a *Adapter) split(ctx context.Context, impl Implementation, md Metadata, stage *model.Stage, bindings Bindings) (*Result, error) {
	args := Args{}
	if err := bindArgs(args, stage.Inputs, "", bindings); err != nil {
		return nil, err
	}

	chunks, err := impl.Split(ctx, md, args)
	if err != nil {
		return nil, &ExecutionError{Stage: stage.Name, Phase: md.Phase, Err: err}
	}
	if chunks == nil {
		chunks = []Args{}
	}

	return &Result{Chunks: chunks}, nil
}

func (a *Adapter) main(ctx context.Context, impl Implementation, md Metadata, stage *model.Stage, bindings Bindings) (*Result, error) {
	args := Args{}
	if err := bindArgs(args, stage.Inputs, "", bindings); err != nil {
		return nil, err
	}
	// split values win over inputs of the same name
	if err := bindArgs(args, stage.Splits, "", bindings); err != nil {
		return nil, err
	}

	outs := BuildOuts(stage.Outputs)
	if err := prepareDir(md.FilesDir); err != nil {
		return nil, err
	}
	if err := impl.Main(ctx, md, args, outs); err != nil {
		return nil, &ExecutionError{Stage: stage.Name, Phase: md.Phase, Err: err}
	}

	return a.persist(ctx, md, stage, outs)
}

func (a *Adapter) join(ctx context.Context, impl Implementation, md Metadata, stage *model.Stage, bindings Bindings) (*Result, error) {
	args := Args{}
	if err := bindArgs(args, stage.Inputs, model.InPrefix, bindings); err != nil {
		return nil, err
	}

	defs, count, err := bindChunks(stage.Splits, model.SplitPrefix, bindings, -1)
	if err != nil {
		return nil, err
	}
	chunkOutMaps, _, err := bindChunks(stage.Outputs, model.OutPrefix, bindings, count)
	if err != nil {
		return nil, err
	}

	chunkDefs := make([]Args, len(defs))
	for i, d := range defs {
		chunkDefs[i] = d
	}
	chunkOuts := make([]Outs, len(chunkOutMaps))
	for i, o := range chunkOutMaps {
		chunkOuts[i] = o
	}

	outs := BuildOuts(stage.Outputs)
	if err := prepareDir(md.FilesDir); err != nil {
		return nil, err
	}
	if err := impl.Join(ctx, md, args, outs, chunkDefs, chunkOuts); err != nil {
		return nil, &ExecutionError{Stage: stage.Name, Phase: md.Phase, Err: err}
	}

	return a.persist(ctx, md, stage, outs)
}

// persist runs the outs writer then hands every output file to the publisher.
func (a *Adapter) persist(ctx context.Context, md Metadata, stage *model.Stage, outs Outs) (*Result, error) {
	if _, err := WriteOuts(md.FilesDir, stage.Outputs, outs); err != nil {
		return nil, err
	}

	files := OutputFiles(md.FilesDir, stage.Outputs, outs)
	if a.publisher != nil {
		for _, path := range files {
			if err := a.publisher.Publish(ctx, md, path); err != nil {
				return nil, &PersistenceError{Path: path, Err: err}
			}
		}
	}

	return &Result{Outs: outs, Files: files}, nil
}

func prepareDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil { //nolint:gosec // files directory is shared with downstream stages
		return &PersistenceError{Path: dir, Err: err}
	}
	return nil
}
