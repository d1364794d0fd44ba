package drawer

import (
	"time"

	"github.com/pkg/errors"

	"github.com/askiada/go-martian/pkg/localrun/hook"
	"github.com/askiada/go-martian/pkg/localrun/measure"
)

type runDrawer struct {
	Drawer
	m         measure.Measure
	startTime time.Time
}

func (rd *runDrawer) New() error {
	err := rd.AddStep(hook.Start.Name)
	if err != nil {
		return errors.Wrap(err, "unable to add start step to drawer")
	}
	err = rd.AddStep(hook.End.Name)
	if err != nil {
		return errors.Wrap(err, "unable to add end step to drawer")
	}

	return nil
}

func (rd *runDrawer) addChild(parentName, name string) error {
	err := rd.AddStep(name)
	if err != nil {
		return err
	}
	return rd.AddLink(parentName, name)
}

func (rd *runDrawer) PrepareSplit(parent, split *hook.PhaseInfo) error {
	rd.startTime = time.Now()
	return rd.addChild(parent.Name, split.Name)
}

func (rd *runDrawer) PrepareMain(parent, main *hook.PhaseInfo) error {
	if parent.Kind == hook.StartKind {
		rd.startTime = time.Now()
	}
	return rd.addChild(parent.Name, main.Name)
}

func (rd *runDrawer) PrepareJoin(parents []*hook.PhaseInfo, join *hook.PhaseInfo) error {
	err := rd.AddStep(join.Name)
	if err != nil {
		return err
	}

	for _, parent := range parents {
		err := rd.AddLink(parent.Name, join.Name)
		if err != nil {
			return err
		}
	}
	return nil
}

func (rd *runDrawer) AfterRun(last *hook.PhaseInfo, _ time.Duration) error {
	return rd.AddLink(last.Name, hook.End.Name)
}

func (rd *runDrawer) Finish() error {
	if rd.m != nil {
		err := rd.SetTotalTime(hook.End.Name, rd.startTime)
		if err != nil {
			return errors.Wrap(err, "unable to set total time")
		}
		err = rd.AddMeasure(rd.m)
		if err != nil {
			return errors.Wrap(err, "unable to add measure")
		}
	}

	err := rd.Draw()
	if err != nil {
		return errors.Wrap(err, "unable to draw run")
	}

	return nil
}

func (rd *runDrawer) OnSplitOutput(_, _ *hook.PhaseInfo, _ int, _, _ time.Duration) error {
	return nil
}

func (rd *runDrawer) OnMainOutput(_, _ *hook.PhaseInfo, _, _ time.Duration) error {
	return nil
}

func (rd *runDrawer) OnJoinOutput(_, _ *hook.PhaseInfo, _, _ time.Duration) error {
	return nil
}

// RunDrawer draws the run graph once the run finishes. When msr is set, vertices and edges are
// labelled with its durations; the measure option must then be registered before this one.
func RunDrawer(drawer Drawer, msr measure.Measure) hook.RunOption {
	return &runDrawer{drawer, msr, time.Now()}
}
