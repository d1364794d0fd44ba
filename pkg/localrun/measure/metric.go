package measure

import (
	"sync"
	"time"
)

type waitInfo struct {
	elapsed time.Duration
	total   int64
}

type DefaultMetric struct {
	mu          sync.Mutex
	waits       map[string]*waitInfo
	endDuration time.Duration
	elapsed     time.Duration
	total       int64
	concurrent  int
}

func (mt *DefaultMetric) AddDuration(elapsed time.Duration) {
	mt.mu.Lock()
	defer mt.mu.Unlock()
	mt.total++
	mt.elapsed += elapsed
}

func (mt *DefaultMetric) SetTotalDuration(endDuration time.Duration) {
	mt.mu.Lock()
	defer mt.mu.Unlock()
	mt.endDuration = endDuration
}

func (mt *DefaultMetric) GetTotalDuration() time.Duration {
	mt.mu.Lock()
	defer mt.mu.Unlock()

	return mt.endDuration
}

func (mt *DefaultMetric) Count() int64 {
	mt.mu.Lock()
	defer mt.mu.Unlock()

	return mt.total
}

func (mt *DefaultMetric) AddWaitDuration(parentName string, elapsed time.Duration) {
	mt.mu.Lock()
	defer mt.mu.Unlock()
	if mt.waits[parentName] == nil {
		mt.waits[parentName] = &waitInfo{}
	}
	w := mt.waits[parentName]
	w.elapsed += elapsed
	w.total++
}

func (mt *DefaultMetric) AVGDuration() time.Duration {
	mt.mu.Lock()
	defer mt.mu.Unlock()
	if mt.total == 0 {
		return time.Duration(0)
	}

	return round(time.Duration(float64(mt.elapsed) / float64(mt.total)))
}

// AVGWaitDuration averages the wait per parent phase, spread over the phase concurrency.
func (mt *DefaultMetric) AVGWaitDuration() map[string]time.Duration {
	mt.mu.Lock()
	defer mt.mu.Unlock()

	avg := make(map[string]time.Duration, len(mt.waits))
	for name, w := range mt.waits {
		if w.total == 0 {
			continue
		}
		avg[name] = round(time.Duration(float64(w.elapsed) / float64(w.total) / float64(mt.concurrent)))
	}

	return avg
}

func round(d time.Duration) time.Duration {
	switch {
	case d > time.Hour:
		d = d.Round(time.Minute)
	case d > time.Second:
		d = d.Round(time.Millisecond)
	case d > time.Millisecond:
		d = d.Round(time.Microsecond)
	}

	return d
}
