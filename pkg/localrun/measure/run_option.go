package measure

import (
	"time"

	"github.com/askiada/go-martian/pkg/localrun/hook"
)

type runMeasure struct {
	Measure
}

func (rm *runMeasure) New() error {
	rm.AddMetric(hook.Start.Name, 1)
	rm.AddMetric(hook.End.Name, 1)
	return nil
}

func (rm *runMeasure) PrepareSplit(_, split *hook.PhaseInfo) error {
	rm.AddMetric(split.Name, split.Concurrent)
	return nil
}

func (rm *runMeasure) OnSplitOutput(parent, split *hook.PhaseInfo, _ int, waitDuration, computationDuration time.Duration) error {
	rm.record(parent, split, waitDuration, computationDuration)
	return nil
}

func (rm *runMeasure) PrepareMain(_, main *hook.PhaseInfo) error {
	rm.AddMetric(main.Name, main.Concurrent)
	return nil
}

func (rm *runMeasure) OnMainOutput(parent, main *hook.PhaseInfo, waitDuration, computationDuration time.Duration) error {
	rm.record(parent, main, waitDuration, computationDuration)
	return nil
}

func (rm *runMeasure) PrepareJoin(_ []*hook.PhaseInfo, join *hook.PhaseInfo) error {
	rm.AddMetric(join.Name, join.Concurrent)
	return nil
}

func (rm *runMeasure) OnJoinOutput(last, join *hook.PhaseInfo, waitDuration, computationDuration time.Duration) error {
	rm.record(last, join, waitDuration, computationDuration)
	return nil
}

func (rm *runMeasure) AfterRun(_ *hook.PhaseInfo, totalDuration time.Duration) error {
	rm.GetMetric(hook.End.Name).SetTotalDuration(totalDuration)
	return nil
}

func (rm *runMeasure) Finish() error {
	return nil
}

func (rm *runMeasure) record(parent, phase *hook.PhaseInfo, waitDuration, computationDuration time.Duration) {
	mt := rm.GetMetric(phase.Name)
	mt.AddDuration(computationDuration)
	mt.AddWaitDuration(parent.Name, waitDuration)
}

// RunMeasure records the durations of every phase of a run into measure.
func RunMeasure(measure Measure) hook.RunOption {
	return &runMeasure{measure}
}
