package stage_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/askiada/go-martian/pkg/mro/model"
	"github.com/askiada/go-martian/pkg/mro/parser"
)

const sortStage = `
stage SORT_BY_BC(
    in  bam      input,
    in  int      lanes,
    out bam      sorted,
    out bam[]    parts,
    out int      count,
    out map      stats,
    src py       "sort",
) split using (
    in  string   chunk_start,
    in  int      lanes,
)
`

const countStage = `stage COUNT(in int n, out int count, out json summary, src py "count")`

func mustStage(t *testing.T, dir, src string) *model.Stage {
	t.Helper()

	ast, err := parser.Parse(filepath.Join(dir, "test.mro"), []byte(src))
	require.NoError(t, err)
	res, err := parser.Build(ast)
	require.NoError(t, err)
	require.Len(t, res.Stages, 1)

	return res.Stages[0]
}

func readFile(t *testing.T, path string) string {
	t.Helper()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}
