package drawer

import (
	"time"

	"github.com/askiada/go-martian/pkg/localrun/measure"
)

// Drawer is an interface that defines the methods for drawing a run.
type Drawer interface {
	// AddStep adds a phase vertex to the graph.
	AddStep(name string) error
	// AddLink adds a link between a parent and a child phase.
	AddLink(parentName, childName string) error
	// Draw writes the graph.
	Draw() error
	// SetTotalTime labels a phase with the time elapsed since startTime.
	SetTotalTime(name string, startTime time.Time) error
	// AddMeasure labels vertices and edges with the durations of msr.
	AddMeasure(msr measure.Measure) error
}
