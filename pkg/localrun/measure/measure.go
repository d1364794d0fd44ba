package measure

import (
	"sort"
	"sync"
	"time"
)

type DefaultMeasure struct {
	mu    sync.RWMutex
	Steps map[string]Metric
}

func NewDefaultMeasure() *DefaultMeasure {
	return &DefaultMeasure{
		Steps: make(map[string]Metric),
	}
}

// AddMetric registers a metric for name. Registering a name twice keeps the first metric.
func (m *DefaultMeasure) AddMetric(name string, concurrent int) Metric {
	m.mu.Lock()
	defer m.mu.Unlock()

	if mt, ok := m.Steps[name]; ok {
		return mt
	}
	if concurrent < 1 {
		concurrent = 1
	}
	mt := &DefaultMetric{
		waits:      make(map[string]*waitInfo),
		concurrent: concurrent,
	}
	m.Steps[name] = mt

	return mt
}

func (m *DefaultMeasure) GetMetric(name string) Metric {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.Steps[name]
}

func (m *DefaultMeasure) AllMetrics() map[string]Metric {
	m.mu.RLock()
	defer m.mu.RUnlock()

	all := make(map[string]Metric, len(m.Steps))
	for name, mt := range m.Steps {
		all[name] = mt
	}
	return all
}

// Row is one line of a Report.
type Row struct {
	Name    string
	Count   int64
	Average time.Duration
	Total   time.Duration
	Waits   map[string]time.Duration
}

// Report flattens msr into rows ordered by phase name.
func Report(msr Measure) []Row {
	all := msr.AllMetrics()
	rows := make([]Row, 0, len(all))
	for name, mt := range all {
		rows = append(rows, Row{
			Name:    name,
			Count:   mt.Count(),
			Average: mt.AVGDuration(),
			Total:   mt.GetTotalDuration(),
			Waits:   mt.AVGWaitDuration(),
		})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Name < rows[j].Name })

	return rows
}

var _ Measure = (*DefaultMeasure)(nil)
