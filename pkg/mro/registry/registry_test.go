package registry_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/askiada/go-martian/pkg/mro/model"
	"github.com/askiada/go-martian/pkg/mro/parser"
	"github.com/askiada/go-martian/pkg/mro/registry"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadMergeLastWriteWins(t *testing.T) {
	t.Parallel()

	first := t.TempDir()
	second := t.TempDir()
	writeFile(t, first, "aligner.mro", `stage ALIGNER(in int a, src py "first")`)
	writeFile(t, first, "other.mro", `stage OTHER(src py "other")`)
	writeFile(t, second, "aligner.mro", `stage ALIGNER(in int b, src py "second")`)

	reg, err := registry.Load(context.Background(), []string{first, second}, registry.WithParallelism(4))
	require.NoError(t, err)

	assert.Equal(t, []string{"ALIGNER", "OTHER"}, reg.Names())
	stage, err := reg.Stage("ALIGNER")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(second, "second"), stage.Source)
	assert.Equal(t, []string{"b"}, model.Names(stage.Inputs))
}

func TestLoadSortedWithinDirectory(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, dir, "b.mro", `stage S(src py "b")`)
	writeFile(t, dir, "a.mro", `stage S(src py "a")`)
	writeFile(t, dir, "notes.txt", `stage S(src py "txt")`)
	writeFile(t, dir, "sub/c.mro", `stage S(src py "sub")`)

	reg, err := registry.Load(context.Background(), []string{dir})
	require.NoError(t, err)

	stage, err := reg.Stage("S")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "b"), stage.Source)
	assert.Equal(t, []string{filepath.Join(dir, "a.mro"), filepath.Join(dir, "b.mro")}, reg.Files())
}

func TestLoadParseErrorAborts(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, dir, "good.mro", `stage GOOD(src py "g")`)
	writeFile(t, dir, "bad.mro", `stage BAD(in intt x, src py "b")`)

	_, err := registry.Load(context.Background(), []string{dir})
	require.Error(t, err)

	var perr *parser.ParseError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, filepath.Join(dir, "bad.mro"), perr.File)
	assert.ErrorIs(t, err, parser.ErrUnknownType)
}

func TestLoadSkipInvalid(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, dir, "good.mro", `stage GOOD(src py "g")`)
	writeFile(t, dir, "bad.mro", `stage BAD(in int x)`)

	core, logs := observer.New(zap.WarnLevel)
	reg, err := registry.Load(context.Background(), []string{dir},
		registry.WithSkipInvalid(true),
		registry.WithLogger(zap.New(core)),
	)
	require.NoError(t, err)

	assert.Equal(t, []string{"GOOD"}, reg.Names())
	assert.Equal(t, 1, logs.FilterMessage("skipping invalid MRO file").Len())
}

func TestLoadMissingDirectory(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, dir, "a.mro", `stage A(src py "a")`)

	reg, err := registry.Load(context.Background(), []string{filepath.Join(dir, "missing"), dir})
	require.NoError(t, err)
	assert.Equal(t, []string{"A"}, reg.Names())

	_, err = registry.Load(context.Background(), nil)
	require.ErrorIs(t, err, registry.ErrEmptySearchPath)
}

func TestLoadIncludeWarnings(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	lib := t.TempDir()
	writeFile(t, dir, "_common.mro", `filetype bam;`)
	writeFile(t, lib, "_lib.mro", `filetype csv;`)
	writeFile(t, dir, "main.mro", `
@include "_common.mro"
@include "_lib.mro"
@include "_missing.mro"
stage MAIN(src py "m")
`)

	core, logs := observer.New(zap.WarnLevel)
	_, err := registry.Load(context.Background(), []string{dir, lib}, registry.WithLogger(zap.New(core)))
	require.NoError(t, err)

	warned := logs.FilterMessage("included file not found").All()
	require.Len(t, warned, 1)
	assert.Equal(t, "_missing.mro", warned[0].ContextMap()["include"])
}

func TestStageLookupError(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, dir, "a.mro", `
stage ALIGNER(src py "a")
stage SORT_BY_BC(src py "s")
`)
	reg, err := registry.Load(context.Background(), []string{dir})
	require.NoError(t, err)

	_, err = reg.Stage("ALIGNR")
	require.ErrorIs(t, err, model.ErrUnknownStage)

	var lerr *model.LookupError
	require.ErrorAs(t, err, &lerr)
	assert.Equal(t, "ALIGNR", lerr.Stage)
	assert.Equal(t, []string{"ALIGNER"}, lerr.Suggestions)
	assert.Equal(t, `unknown stage "ALIGNR" (did you mean ALIGNER?)`, err.Error())

	_, err = reg.Stage("NOTHING_LIKE_IT")
	require.ErrorAs(t, err, &lerr)
	assert.Empty(t, lerr.Suggestions)
}

func TestPipelines(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, dir, "p.mro", `
stage A(src py "a")
pipeline PROCESS(in int x) {
    call A()
    return ()
}
`)
	reg, err := registry.Load(context.Background(), []string{dir})
	require.NoError(t, err)

	assert.Equal(t, []string{"PROCESS"}, reg.Pipelines())
	pipe, err := reg.Pipeline("PROCESS")
	require.NoError(t, err)
	assert.Equal(t, "A", pipe.Calls[0].Name)

	_, err = reg.Pipeline("PROCES")
	require.ErrorIs(t, err, model.ErrUnknownPipeline)
}

func TestSplitPath(t *testing.T) {
	t.Parallel()

	list := strings.Join([]string{"/a", "", " /b "}, string(os.PathListSeparator))
	assert.Equal(t, []string{"/a", "/b"}, registry.SplitPath(list))
	assert.Empty(t, registry.SplitPath(""))
}

func TestWatcherReloads(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, dir, "a.mro", `stage A(src py "a")`)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	w, err := registry.NewWatcher(ctx, []string{dir})
	require.NoError(t, err)
	defer w.Close()
	assert.Equal(t, []string{"A"}, w.Current().Names())

	reloaded := make(chan *registry.Registry, 8)
	go func() {
		_ = w.Run(ctx, func(reg *registry.Registry, err error) {
			if err == nil {
				reloaded <- reg
			}
		})
	}()

	writeFile(t, dir, "b.mro", `stage B(src py "b")`)

	select {
	case reg := <-reloaded:
		assert.Equal(t, []string{"A", "B"}, reg.Names())
		assert.Equal(t, []string{"A", "B"}, w.Current().Names())
	case <-time.After(5 * time.Second):
		t.Fatal("registry was not reloaded")
	}
}
