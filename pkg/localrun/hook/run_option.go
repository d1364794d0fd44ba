package hook

import "time"

// RunOption observes a local run. Wait durations measure how long a phase waited after its
// parent finished; computation durations cover the phase itself.
type RunOption interface {
	// New initialises the run option.
	New() error

	runSplitOption
	runMainOption
	runJoinOption

	// AfterRun runs once the last phase finished.
	AfterRun(last *PhaseInfo, totalDuration time.Duration) error
	// Finish runs after the run is finished.
	Finish() error
}

// runSplitOption defines the split phase hooks.
type runSplitOption interface {
	// PrepareSplit runs before the split phase is executed.
	PrepareSplit(parent, split *PhaseInfo) error
	// OnSplitOutput runs once split returned its chunks.
	OnSplitOutput(parent, split *PhaseInfo, chunks int, waitDuration, computationDuration time.Duration) error
}

// runMainOption defines the main phase hooks, called once per chunk.
type runMainOption interface {
	// PrepareMain runs before any main phase is scheduled.
	PrepareMain(parent, main *PhaseInfo) error
	// OnMainOutput runs every time a main phase finishes.
	OnMainOutput(parent, main *PhaseInfo, waitDuration, computationDuration time.Duration) error
}

// runJoinOption defines the join phase hooks.
type runJoinOption interface {
	// PrepareJoin runs before the join phase is executed.
	PrepareJoin(parents []*PhaseInfo, join *PhaseInfo) error
	// OnJoinOutput runs once join finished. last is the chunk that finished last.
	OnJoinOutput(last, join *PhaseInfo, waitDuration, computationDuration time.Duration) error
}
