package drawer_test

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/askiada/go-martian/pkg/localrun/drawer"
	"github.com/askiada/go-martian/pkg/localrun/hook"
	"github.com/askiada/go-martian/pkg/localrun/measure"
	"github.com/askiada/go-martian/pkg/mro/parser"
)

func TestDOTDrawerWrite(t *testing.T) {
	t.Parallel()

	d := drawer.NewDOTDrawer("unused.dot")
	for _, name := range []string{"start", "end", "main"} {
		require.NoError(t, d.AddStep(name))
	}
	require.NoError(t, d.AddLink("start", "main"))
	require.NoError(t, d.AddLink("main", "end"))
	require.Error(t, d.AddStep("main"))
	require.Error(t, d.AddLink("main", "missing"))

	var buf bytes.Buffer
	require.NoError(t, d.Write(&buf))

	want := "strict digraph {\n" +
		"\t\"end\" [ weight=0 ];\n" +
		"\t\"main\" [ weight=0 ];\n" +
		"\t\"start\" [ weight=0 ];\n" +
		"\t\"main\" -> \"end\" [ weight=0 ];\n" +
		"\t\"start\" -> \"main\" [ weight=0 ];\n" +
		"}\n"
	assert.Equal(t, want, buf.String())
}

func TestRunDrawerWithMeasure(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "run.dot")
	msr := measure.NewDefaultMeasure()
	opts := []hook.RunOption{measure.RunMeasure(msr), drawer.RunDrawer(drawer.NewDOTDrawer(path), msr)}

	split := &hook.PhaseInfo{Kind: hook.SplitKind, Name: "split", Chunk: -1, Concurrent: 1}
	chunks := []*hook.PhaseInfo{
		{Kind: hook.MainKind, Name: hook.ChunkName(0), Chunk: 0, Concurrent: 2},
		{Kind: hook.MainKind, Name: hook.ChunkName(1), Chunk: 1, Concurrent: 2},
	}
	join := &hook.PhaseInfo{Kind: hook.JoinKind, Name: "join", Chunk: -1, Concurrent: 1}

	for _, opt := range opts {
		require.NoError(t, opt.New())
		require.NoError(t, opt.PrepareSplit(hook.Start, split))
		require.NoError(t, opt.OnSplitOutput(hook.Start, split, 2, 0, time.Millisecond))
		for i, chunk := range chunks {
			require.NoError(t, opt.PrepareMain(split, chunk))
			require.NoError(t, opt.OnMainOutput(split, chunk, time.Duration(i+1)*10*time.Millisecond, 5*time.Millisecond))
		}
		require.NoError(t, opt.PrepareJoin(chunks, join))
		require.NoError(t, opt.OnJoinOutput(chunks[1], join, 0, 2*time.Millisecond))
		require.NoError(t, opt.AfterRun(join, 50*time.Millisecond))
	}
	for _, opt := range opts {
		require.NoError(t, opt.Finish())
	}

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	out := string(data)

	assert.Regexp(t, `"split" -> "chnk0" \[ color="#[0-9a-fA-F]+", fontcolor="blue", label="5ms", weight=0 \];`, out)
	assert.Regexp(t, `"split" -> "chnk1" \[ color="#[0-9a-fA-F]+", fontcolor="blue", label="10ms", weight=0 \];`, out)
	assert.Contains(t, out, `"chnk1" -> "join" [ weight=0 ];`)
	assert.Contains(t, out, `"join" -> "end" [ weight=0 ];`)
	assert.Contains(t, out, `"chnk0" [ label=<chnk0 <BR /> <FONT POINT-SIZE="12">5ms</FONT>>, weight=0 ];`)
	assert.Contains(t, out, `"end" [ label=<end <BR /> <FONT POINT-SIZE="12">end: 50ms</FONT>>, weight=0 ];`)
}

func TestPipelineGraph(t *testing.T) {
	t.Parallel()

	ast, err := parser.Parse("/mro/p.mro", []byte(`
pipeline PROCESS(in fastq reads, out bam result) {
    call local ALIGN(reads = self.reads, lanes = [1, 2])
    call SORT(input = ALIGN.aligned, log = ALIGN.log, extra = MISSING.x)
    return (result = SORT.sorted)
}
`))
	require.NoError(t, err)
	res, err := parser.Build(ast)
	require.NoError(t, err)

	gra, err := drawer.PipelineGraph(res.Pipeline)
	require.NoError(t, err)

	adj, err := gra.AdjacencyMap()
	require.NoError(t, err)
	assert.Len(t, adj, 5)

	edge, err := gra.Edge("self", "ALIGN")
	require.NoError(t, err)
	assert.Equal(t, "reads", edge.Properties.Attributes["label"])

	edge, err = gra.Edge("ALIGN", "SORT")
	require.NoError(t, err)
	assert.Equal(t, `aligned\nlog`, edge.Properties.Attributes["label"])

	_, err = gra.Edge("SORT", drawer.ReturnVertex)
	require.NoError(t, err)

	_, props, err := gra.VertexWithProperties("MISSING")
	require.NoError(t, err)
	assert.Equal(t, "dashed", props.Attributes["style"])

	_, props, err = gra.VertexWithProperties("ALIGN")
	require.NoError(t, err)
	assert.Equal(t, "local", props.Attributes["xlabel"])

	var buf bytes.Buffer
	require.NoError(t, drawer.DrawPipeline(&buf, res.Pipeline))
	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "strict digraph {\n\trankdir=\"LR\";\n"), out)
	assert.Contains(t, out, `"ALIGN" -> "SORT" [ label="aligned\nlog", weight=0 ];`)
	assert.Contains(t, out, `"self" [ label=<self <BR /> <FONT POINT-SIZE="12">PROCESS</FONT>>, shape="box", weight=0 ];`)
}
