package measure

import "time"

// Measure collects one Metric per run phase.
type Measure interface {
	AddMetric(name string, concurrent int) Metric
	GetMetric(name string) Metric
	AllMetrics() map[string]Metric
}

// Metric aggregates the durations of one phase.
type Metric interface {
	AddDuration(elapsed time.Duration)
	AddWaitDuration(parentName string, elapsed time.Duration)
	AVGDuration() time.Duration
	AVGWaitDuration() map[string]time.Duration
	SetTotalDuration(endDuration time.Duration)
	GetTotalDuration() time.Duration
	Count() int64
}
