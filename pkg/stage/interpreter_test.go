package stage_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/askiada/go-martian/pkg/mro/model"
	"github.com/askiada/go-martian/pkg/stage"
)

const scriptMain = `package main

import "fmt"

func Split(meta map[string]string, args map[string]interface{}) (map[string]interface{}, error) {
	n := args["n"].(int64)
	chunks := []interface{}{}
	for i := int64(0); i < n; i++ {
		chunks = append(chunks, map[string]interface{}{"index": i})
	}
	return map[string]interface{}{"chunks": chunks}, nil
}

func Main(meta map[string]string, args, outs map[string]interface{}) error {
	if meta["phase"] != "main" {
		return fmt.Errorf("unexpected phase %s", meta["phase"])
	}
	outs["count"] = scale(args["n"].(int64))
	return nil
}
`

const scriptHelper = `package main

func scale(n int64) int64 {
	return n * 10
}

func Join(meta map[string]string, args, outs map[string]interface{}, chunkDefs, chunkOuts []map[string]interface{}) error {
	var total int64
	for _, o := range chunkOuts {
		total += o["count"].(int64)
	}
	outs["count"] = total + int64(len(chunkDefs))
	return nil
}
`

const scriptStage = `
stage SCRIPTED(
    in  int n,
    out int count,
    src py  "impl",
) split using (
    in  int index,
)
`

func writeScripts(t *testing.T, dir string, files map[string]string) {
	t.Helper()

	require.NoError(t, os.MkdirAll(dir, 0o755))
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600))
	}
}

func TestInterpreterPhases(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeScripts(t, filepath.Join(dir, "impl"), map[string]string{
		"main.go":      scriptMain,
		"helper.go":    scriptHelper,
		"main_test.go": "this is not Go",
		"README":       "ignored",
	})
	st := mustStage(t, dir, scriptStage)

	adapter, err := stage.NewAdapter(stage.NewInterpreter(), stage.WithFilesDir(filepath.Join(dir, "out")))
	require.NoError(t, err)
	ctx := context.Background()

	split, err := adapter.Run(ctx, stage.Request{Stage: st, Phase: model.PhaseSplit, Bindings: stage.Bindings{"n": 2}})
	require.NoError(t, err)
	assert.Equal(t, []stage.Args{{"index": int64(0)}, {"index": int64(1)}}, split.Chunks)

	mainRes, err := adapter.Run(ctx, stage.Request{Stage: st, Phase: model.PhaseMain, Bindings: stage.Bindings{"n": 3, "index": 0}})
	require.NoError(t, err)
	assert.Equal(t, int64(30), mainRes.Outs["count"])
	assert.Equal(t, "30", readFile(t, filepath.Join(dir, "out", "count")))

	join, err := adapter.Run(ctx, stage.Request{Stage: st, Phase: model.PhaseJoin, Bindings: stage.Bindings{
		"in.n":        3,
		"split.index": []any{0, 1},
		"out.count":   []any{10, 20},
	}})
	require.NoError(t, err)
	assert.Equal(t, int64(32), join.Outs["count"])
}

func TestInterpreterNoSources(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeScripts(t, filepath.Join(dir, "impl"), map[string]string{"run.py": "print('hi')"})
	st := mustStage(t, dir, scriptStage)

	_, err := stage.NewInterpreter().Load(st)
	require.ErrorIs(t, err, stage.ErrNoImplementation)

	missing := mustStage(t, filepath.Join(dir, "elsewhere"), scriptStage)
	_, err = stage.NewInterpreter().Load(missing)
	require.ErrorIs(t, err, stage.ErrNoImplementation)
}

func TestInterpreterBadSignature(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeScripts(t, filepath.Join(dir, "impl"), map[string]string{
		"main.go": "package main\n\nfunc Main(n int) int { return n }\n",
	})
	st := mustStage(t, dir, scriptStage)

	_, err := stage.NewInterpreter().Load(st)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "signature")
	assert.NotErrorIs(t, err, stage.ErrNoImplementation)
}

func TestInterpreterMissingEntryPoint(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeScripts(t, filepath.Join(dir, "impl"), map[string]string{
		"main.go": "package main\n\nfunc Main(meta map[string]string, args, outs map[string]interface{}) error { return nil }\n",
	})
	st := mustStage(t, dir, scriptStage)

	impl, err := stage.NewInterpreter().Load(st)
	require.NoError(t, err)

	err = impl.Join(context.Background(), stage.Metadata{}, stage.Args{}, stage.Outs{}, nil, nil)
	require.ErrorIs(t, err, stage.ErrMissingEntryPoint)
}
