// Package localrun drives a whole stage in-process: split, one main per chunk, then join.
// It stands in for an external scheduler during development; there is no retry and no
// distribution across hosts.
package localrun

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/askiada/go-martian/pkg/localrun/hook"
	"github.com/askiada/go-martian/pkg/mro/model"
	"github.com/askiada/go-martian/pkg/stage"
)

var (
	ErrAdapterMustBeSet = errors.New("adapter must be set")
	ErrStageMustBeSet   = errors.New("stage must be set")
)

// Runner runs every phase of a stage through an adapter.
//
// Hooks keep state across calls, so a Runner built with hooks is meant for a single run.
type Runner struct {
	adapter     *stage.Adapter
	logger      *zap.Logger
	filesDir    string
	concurrency int
	opts        []hook.RunOption
}

// Result gathers the outcome of every phase.
type Result struct {
	RunID     string
	Chunks    []stage.Args
	ChunkOuts []stage.Outs
	Outs      stage.Outs
	Files     []string
}

// New creates a runner and initialises its hooks.
func New(adapter *stage.Adapter, opts ...RunnerOption) (*Runner, error) {
	if adapter == nil {
		return nil, ErrAdapterMustBeSet
	}

	r := &Runner{
		adapter:     adapter,
		logger:      zap.NewNop(),
		filesDir:    ".",
		concurrency: 1,
	}
	for _, opt := range opts {
		opt(r)
	}

	for _, opt := range r.opts {
		err := opt.New()
		if err != nil {
			return nil, errors.Wrap(err, "unable to apply run option")
		}
	}

	return r, nil
}

// Run executes st with bindings keyed by input name. Split stages fan their chunks out to at
// most the configured concurrency; each chunk writes to its own "chnk<i>" directory and the join
// writes to the files directory itself.
func (r *Runner) Run(ctx context.Context, st *model.Stage, bindings stage.Bindings) (*Result, error) {
	if st == nil {
		return nil, ErrStageMustBeSet
	}

	runID := uuid.NewString()
	logger := r.logger.With(zap.String("run_id", runID), zap.String("stage", st.Name))
	start := time.Now()

	var (
		res  *Result
		last *hook.PhaseInfo
		err  error
	)
	if st.HasSplit() {
		res, last, err = r.runSplit(ctx, runID, st, bindings)
	} else {
		res, last, err = r.runMain(ctx, runID, st, bindings)
	}
	if err != nil {
		logger.Error("run failed", zap.Duration("duration", time.Since(start)), zap.Error(err))
		return nil, err
	}

	total := time.Since(start)
	for _, opt := range r.opts {
		if err := opt.AfterRun(last, total); err != nil {
			return nil, errors.Wrap(err, "unable to run after run function")
		}
	}
	if err := r.finish(); err != nil {
		return nil, err
	}

	res.RunID = runID
	logger.Info("run finished", zap.Duration("duration", total), zap.Int("chunks", len(res.Chunks)))

	return res, nil
}

func (r *Runner) finish() error {
	for _, opt := range r.opts {
		err := opt.Finish()
		if err != nil {
			return errors.Wrap(err, "unable to finish run option")
		}
	}

	return nil
}

func (r *Runner) runMain(ctx context.Context, runID string, st *model.Stage, bindings stage.Bindings) (*Result, *hook.PhaseInfo, error) {
	info := &hook.PhaseInfo{Kind: hook.MainKind, Name: string(model.PhaseMain), Phase: model.PhaseMain, Chunk: -1, Concurrent: 1, FilesDir: r.filesDir}
	for _, opt := range r.opts {
		if err := opt.PrepareMain(hook.Start, info); err != nil {
			return nil, nil, errors.Wrap(err, "unable to run before main function")
		}
	}

	startFn := time.Now()
	out, err := r.adapter.Run(ctx, stage.Request{Stage: st, Phase: model.PhaseMain, Bindings: bindings, RunID: runID, FilesDir: r.filesDir})
	if err != nil {
		return nil, nil, err
	}
	for _, opt := range r.opts {
		if err := opt.OnMainOutput(hook.Start, info, 0, time.Since(startFn)); err != nil {
			return nil, nil, errors.Wrap(err, "unable to run main output function")
		}
	}

	return &Result{Outs: out.Outs, Files: out.Files}, info, nil
}

func (r *Runner) runSplit(ctx context.Context, runID string, st *model.Stage, bindings stage.Bindings) (*Result, *hook.PhaseInfo, error) {
	splitInfo := &hook.PhaseInfo{Kind: hook.SplitKind, Name: string(model.PhaseSplit), Phase: model.PhaseSplit, Chunk: -1, Concurrent: 1, FilesDir: r.filesDir}
	for _, opt := range r.opts {
		if err := opt.PrepareSplit(hook.Start, splitInfo); err != nil {
			return nil, nil, errors.Wrap(err, "unable to run before split function")
		}
	}

	startFn := time.Now()
	split, err := r.adapter.Run(ctx, stage.Request{Stage: st, Phase: model.PhaseSplit, Bindings: bindings, RunID: runID, FilesDir: r.filesDir})
	if err != nil {
		return nil, nil, err
	}
	splitEnd := time.Now()
	for _, opt := range r.opts {
		if err := opt.OnSplitOutput(hook.Start, splitInfo, len(split.Chunks), 0, splitEnd.Sub(startFn)); err != nil {
			return nil, nil, errors.Wrap(err, "unable to run split output function")
		}
	}

	chunkInfos := make([]*hook.PhaseInfo, len(split.Chunks))
	for i := range split.Chunks {
		chunkInfos[i] = &hook.PhaseInfo{
			Kind:       hook.MainKind,
			Name:       hook.ChunkName(i),
			Phase:      model.PhaseMain,
			Chunk:      i,
			Concurrent: r.concurrency,
			FilesDir:   filepath.Join(r.filesDir, hook.ChunkName(i)),
		}
		for _, opt := range r.opts {
			if err := opt.PrepareMain(splitInfo, chunkInfos[i]); err != nil {
				return nil, nil, errors.Wrap(err, "unable to run before main function")
			}
		}
	}

	chunkOuts, lastChunk, err := r.runChunks(ctx, runID, st, bindings, split.Chunks, splitInfo, chunkInfos, splitEnd)
	if err != nil {
		return nil, nil, err
	}

	joinInfo := &hook.PhaseInfo{Kind: hook.JoinKind, Name: string(model.PhaseJoin), Phase: model.PhaseJoin, Chunk: -1, Concurrent: 1, FilesDir: r.filesDir}
	parents := chunkInfos
	if len(parents) == 0 {
		parents = []*hook.PhaseInfo{splitInfo}
	}
	for _, opt := range r.opts {
		if err := opt.PrepareJoin(parents, joinInfo); err != nil {
			return nil, nil, errors.Wrap(err, "unable to run before join function")
		}
	}

	parent := splitInfo
	if lastChunk >= 0 {
		parent = chunkInfos[lastChunk]
	}
	chunksEnd := time.Now()
	joined, err := r.adapter.Run(ctx, stage.Request{
		Stage:    st,
		Phase:    model.PhaseJoin,
		Bindings: JoinBindings(st, bindings, split.Chunks, chunkOuts),
		RunID:    runID,
		FilesDir: r.filesDir,
	})
	if err != nil {
		return nil, nil, err
	}
	for _, opt := range r.opts {
		if err := opt.OnJoinOutput(parent, joinInfo, 0, time.Since(chunksEnd)); err != nil {
			return nil, nil, errors.Wrap(err, "unable to run join output function")
		}
	}

	return &Result{Chunks: split.Chunks, ChunkOuts: chunkOuts, Outs: joined.Outs, Files: joined.Files}, joinInfo, nil
}

// runChunks runs one main per chunk and returns the chunk outs in chunk order along with the
// index of the chunk that finished last. File names in the chunk outs are resolved against the
// chunk directory so the join can open them.
func (r *Runner) runChunks(
	ctx context.Context,
	runID string,
	st *model.Stage,
	bindings stage.Bindings,
	chunks []stage.Args,
	splitInfo *hook.PhaseInfo,
	infos []*hook.PhaseInfo,
	splitEnd time.Time,
) ([]stage.Outs, int, error) {
	outs := make([]stage.Outs, len(chunks))

	var mu sync.Mutex
	lastChunk := -1

	errGrp, dCtx := errgroup.WithContext(ctx)
	errGrp.SetLimit(r.concurrency)
	for i, chunk := range chunks {
		errGrp.Go(func() error {
			waited := time.Since(splitEnd)
			startFn := time.Now()
			res, err := r.adapter.Run(dCtx, stage.Request{
				Stage:    st,
				Phase:    model.PhaseMain,
				Bindings: ChunkBindings(bindings, chunk),
				RunID:    runID,
				FilesDir: infos[i].FilesDir,
				Chunk:    infos[i].Name,
			})
			if err != nil {
				return errors.Wrapf(err, "chunk %d", i)
			}
			computed := time.Since(startFn)
			outs[i] = stage.ResolveFiles(infos[i].FilesDir, st.Outputs, res.Outs)

			mu.Lock()
			defer mu.Unlock()
			lastChunk = i
			for _, opt := range r.opts {
				if err := opt.OnMainOutput(splitInfo, infos[i], waited, computed); err != nil {
					return errors.Wrap(err, "unable to run main output function")
				}
			}
			return nil
		})
	}
	if err := errGrp.Wait(); err != nil {
		return nil, -1, err
	}

	return outs, lastChunk, nil
}

// ChunkBindings overlays the values of one chunk definition on the stage inputs.
func ChunkBindings(bindings stage.Bindings, chunk stage.Args) stage.Bindings {
	merged := make(stage.Bindings, len(bindings)+len(chunk))
	for k, v := range bindings {
		merged[k] = v
	}
	for k, v := range chunk {
		merged[k] = v
	}
	return merged
}

// JoinBindings builds the prefixed join bindings from the stage inputs, the chunk definitions and
// the outs of every chunk. A value missing from a chunk binds null.
func JoinBindings(st *model.Stage, bindings stage.Bindings, chunks []stage.Args, chunkOuts []stage.Outs) stage.Bindings {
	joined := make(stage.Bindings, len(st.Inputs)+len(st.Splits)+len(st.Outputs))
	for _, f := range st.Inputs {
		if v, ok := bindings[f.Name]; ok {
			joined[model.InPrefix+f.Name] = v
		}
	}
	for _, f := range st.Splits {
		values := make([]any, len(chunks))
		for i, chunk := range chunks {
			values[i] = chunk[f.Name]
		}
		joined[model.SplitPrefix+f.Name] = values
	}
	for _, f := range st.Outputs {
		values := make([]any, len(chunkOuts))
		for i, outs := range chunkOuts {
			values[i] = outs[f.Name]
		}
		joined[model.OutPrefix+f.Name] = values
	}
	return joined
}
