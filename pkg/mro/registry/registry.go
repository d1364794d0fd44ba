// Package registry loads every MRO file found on a search path into an immutable, name-keyed
// snapshot of stages and pipelines.
package registry

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/askiada/go-martian/pkg/mro/model"
	"github.com/askiada/go-martian/pkg/mro/parser"
)

// Extension is the suffix of MRO source files.
const Extension = ".mro"

const maxSuggestions = 3

var ErrEmptySearchPath = errors.New("search path must contain at least one directory")

// Registry is a snapshot of one load. It is never mutated after Load returns.
type Registry struct {
	dirs      []string
	files     []string
	stages    map[string]*model.Stage
	pipelines map[string]*model.Pipeline
}

type options struct {
	logger      *zap.Logger
	skipInvalid bool
	parallelism int
}

// Option configures Load.
type Option func(o *options)

// WithLogger sets the logger used for load diagnostics.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithSkipInvalid makes Load drop files that fail to parse instead of aborting.
func WithSkipInvalid(skip bool) Option {
	return func(o *options) {
		o.skipInvalid = skip
	}
}

// WithParallelism bounds the number of files parsed concurrently.
func WithParallelism(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.parallelism = n
		}
	}
}

func newOptions(opts []Option) *options {
	o := &options{logger: zap.NewNop(), parallelism: 1}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// SplitPath splits an MROPATH-style list on the OS path-list separator, dropping empty items.
func SplitPath(list string) []string {
	var dirs []string
	for _, dir := range filepath.SplitList(list) {
		if dir = strings.TrimSpace(dir); dir != "" {
			dirs = append(dirs, dir)
		}
	}
	return dirs
}

// Files lists the MRO files of dirs in merge order: directories in search-path order, the files
// of each directory sorted by name. Missing directories are skipped.
func Files(dirs []string, logger *zap.Logger) ([]string, error) {
	var files []string
	for _, dir := range dirs {
		entries, err := os.ReadDir(dir)
		if errors.Is(err, os.ErrNotExist) {
			logger.Warn("search path directory does not exist", zap.String("dir", dir))
			continue
		}
		if err != nil {
			return nil, errors.Wrapf(err, "unable to list %s", dir)
		}

		// os.ReadDir already sorts by name; keep the order explicit since merge depends on it.
		sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })
		for _, entry := range entries {
			if entry.IsDir() || !strings.HasSuffix(entry.Name(), Extension) {
				continue
			}
			files = append(files, filepath.Join(dir, entry.Name()))
		}
	}
	return files, nil
}

// Load parses every MRO file on the search path and merges the results. A stage or pipeline
// name seen again replaces the earlier definition, so the last file in merge order wins.
//
// Unless WithSkipInvalid is set, the first parse error in merge order aborts the load.
func Load(ctx context.Context, dirs []string, opts ...Option) (*Registry, error) {
	if len(dirs) == 0 {
		return nil, ErrEmptySearchPath
	}
	o := newOptions(opts)

	files, err := Files(dirs, o.logger)
	if err != nil {
		return nil, err
	}

	results := make([]*parser.Result, len(files))
	parseErrs := make([]error, len(files))

	grp, gctx := errgroup.WithContext(ctx)
	grp.SetLimit(o.parallelism)
	for i, file := range files {
		i, file := i, file
		grp.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i], parseErrs[i] = parser.ParseFile(file)
			return nil
		})
	}
	if err := grp.Wait(); err != nil {
		return nil, errors.Wrap(err, "registry load interrupted")
	}

	reg := &Registry{
		dirs:      dirs,
		stages:    map[string]*model.Stage{},
		pipelines: map[string]*model.Pipeline{},
	}
	for i, res := range results {
		if parseErrs[i] != nil {
			if !o.skipInvalid {
				return nil, parseErrs[i]
			}
			o.logger.Warn("skipping invalid MRO file", zap.String("file", files[i]), zap.Error(parseErrs[i]))
			continue
		}
		reg.merge(res, o.logger)
	}

	o.logger.Debug("registry loaded",
		zap.Int("files", len(reg.files)),
		zap.Int("stages", len(reg.stages)),
		zap.Int("pipelines", len(reg.pipelines)),
	)

	return reg, nil
}

func (r *Registry) merge(res *parser.Result, logger *zap.Logger) {
	r.files = append(r.files, res.File)

	for _, stage := range res.Stages {
		if prev, ok := r.stages[stage.Name]; ok {
			logger.Debug("stage redefined",
				zap.String("stage", stage.Name),
				zap.String("previous", prev.File),
				zap.String("file", stage.File),
			)
		}
		r.stages[stage.Name] = stage
	}
	if res.Pipeline != nil {
		r.pipelines[res.Pipeline.Name] = res.Pipeline
	}

	for _, inc := range res.Includes {
		if !r.includeExists(res.File, inc) {
			logger.Warn("included file not found", zap.String("file", res.File), zap.String("include", inc))
		}
	}
}

// includeExists looks for an include next to the including file, then on the search path.
func (r *Registry) includeExists(file, include string) bool {
	candidates := []string{include}
	if !filepath.IsAbs(include) {
		candidates = []string{filepath.Join(filepath.Dir(file), include)}
		for _, dir := range r.dirs {
			candidates = append(candidates, filepath.Join(dir, include))
		}
	}
	for _, path := range candidates {
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return true
		}
	}
	return false
}

// Dirs returns the search path the snapshot was loaded from.
func (r *Registry) Dirs() []string {
	return append([]string(nil), r.dirs...)
}

// Files returns the files that were merged, in merge order.
func (r *Registry) Files() []string {
	return append([]string(nil), r.files...)
}

// Names returns the stage names in lexicographic order.
func (r *Registry) Names() []string {
	return sortedKeys(r.stages)
}

// Stages returns the stages ordered by name.
func (r *Registry) Stages() []*model.Stage {
	names := r.Names()
	stages := make([]*model.Stage, len(names))
	for i, name := range names {
		stages[i] = r.stages[name]
	}
	return stages
}

// Stage looks a stage up by name.
func (r *Registry) Stage(name string) (*model.Stage, error) {
	stage, ok := r.stages[name]
	if !ok {
		return nil, &model.LookupError{Err: model.ErrUnknownStage, Stage: name, Suggestions: suggest(name, r.Names())}
	}
	return stage, nil
}

// Pipelines returns the pipeline names in lexicographic order.
func (r *Registry) Pipelines() []string {
	return sortedKeys(r.pipelines)
}

// Pipeline looks a pipeline up by name.
func (r *Registry) Pipeline(name string) (*model.Pipeline, error) {
	pipe, ok := r.pipelines[name]
	if !ok {
		return nil, &model.LookupError{Err: model.ErrUnknownPipeline, Stage: name, Suggestions: suggest(name, r.Pipelines())}
	}
	return pipe, nil
}

// suggest ranks known names close to a mistyped one. Subsequence matches come first, then names
// within a small edit distance.
func suggest(name string, known []string) []string {
	ranks := fuzzy.RankFindFold(name, known)
	sort.Sort(ranks)

	seen := map[string]bool{}
	var out []string
	for _, rank := range ranks {
		if len(out) == maxSuggestions {
			return out
		}
		seen[rank.Target] = true
		out = append(out, rank.Target)
	}

	maxDist := len(name)/3 + 1
	for _, candidate := range known {
		if len(out) == maxSuggestions {
			break
		}
		if seen[candidate] {
			continue
		}
		if fuzzy.LevenshteinDistance(strings.ToLower(name), strings.ToLower(candidate)) <= maxDist {
			out = append(out, candidate)
		}
	}
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
