package measure_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/askiada/go-martian/pkg/localrun/hook"
	"github.com/askiada/go-martian/pkg/localrun/measure"
)

func TestDefaultMetric(t *testing.T) {
	t.Parallel()

	msr := measure.NewDefaultMeasure()
	mt := msr.AddMetric("chnk0", 2)
	assert.Same(t, mt, msr.AddMetric("chnk0", 5))

	mt.AddDuration(2 * time.Second)
	mt.AddDuration(4 * time.Second)
	mt.AddWaitDuration("split", 4*time.Millisecond)
	mt.SetTotalDuration(time.Minute)

	assert.Equal(t, int64(2), mt.Count())
	assert.Equal(t, 3*time.Second, mt.AVGDuration())
	assert.Equal(t, map[string]time.Duration{"split": 2 * time.Millisecond}, mt.AVGWaitDuration())
	assert.Equal(t, time.Minute, mt.GetTotalDuration())

	assert.Equal(t, time.Duration(0), msr.AddMetric("idle", 0).AVGDuration())
}

func TestRunMeasure(t *testing.T) {
	t.Parallel()

	msr := measure.NewDefaultMeasure()
	opt := measure.RunMeasure(msr)
	require.NoError(t, opt.New())

	split := &hook.PhaseInfo{Kind: hook.SplitKind, Name: "split", Chunk: -1, Concurrent: 1}
	chunk := &hook.PhaseInfo{Kind: hook.MainKind, Name: hook.ChunkName(0), Concurrent: 1}
	join := &hook.PhaseInfo{Kind: hook.JoinKind, Name: "join", Chunk: -1, Concurrent: 1}

	require.NoError(t, opt.PrepareSplit(hook.Start, split))
	require.NoError(t, opt.OnSplitOutput(hook.Start, split, 1, time.Millisecond, 5*time.Millisecond))
	require.NoError(t, opt.PrepareMain(split, chunk))
	require.NoError(t, opt.OnMainOutput(split, chunk, 2*time.Millisecond, 10*time.Millisecond))
	require.NoError(t, opt.PrepareJoin([]*hook.PhaseInfo{chunk}, join))
	require.NoError(t, opt.OnJoinOutput(chunk, join, 3*time.Millisecond, 7*time.Millisecond))
	require.NoError(t, opt.AfterRun(join, 30*time.Millisecond))
	require.NoError(t, opt.Finish())

	rows := measure.Report(msr)
	names := make([]string, len(rows))
	for i, row := range rows {
		names[i] = row.Name
	}
	assert.Equal(t, []string{"chnk0", "end", "join", "split", "start"}, names)

	assert.Equal(t, measure.Row{
		Name:    "chnk0",
		Count:   1,
		Average: 10 * time.Millisecond,
		Waits:   map[string]time.Duration{"split": 2 * time.Millisecond},
	}, rows[0])
	assert.Equal(t, 30*time.Millisecond, rows[1].Total)
	assert.Equal(t, map[string]time.Duration{"chnk0": 3 * time.Millisecond}, rows[2].Waits)
}
