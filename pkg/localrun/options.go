package localrun

import (
	"go.uber.org/zap"

	"github.com/askiada/go-martian/pkg/localrun/hook"
)

type RunnerOption func(r *Runner)

func WithLogger(logger *zap.Logger) RunnerOption {
	return func(r *Runner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithConcurrency bounds the number of chunks running at the same time. Values below one are ignored.
func WithConcurrency(concurrent int) RunnerOption {
	return func(r *Runner) {
		if concurrent > 0 {
			r.concurrency = concurrent
		}
	}
}

// WithFilesDir sets the root directory of the run. Chunks write to "chnk<i>" under it.
func WithFilesDir(dir string) RunnerOption {
	return func(r *Runner) {
		r.filesDir = dir
	}
}

// WithRunOptions registers hooks called around every phase, in order.
func WithRunOptions(opts ...hook.RunOption) RunnerOption {
	return func(r *Runner) {
		r.opts = append(r.opts, opts...)
	}
}
