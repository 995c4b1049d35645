// Package measure collects step timings while a flow runs.
package measure

import (
	"sync"
)

// DefaultMeasure keeps metrics in memory.
type DefaultMeasure struct {
	mu    sync.RWMutex
	Steps map[string]Metric
}

// NewDefaultMeasure creates an empty measure.
func NewDefaultMeasure() *DefaultMeasure {
	return &DefaultMeasure{
		Steps: make(map[string]Metric),
	}
}

// AddMetric creates the metric of a step, replacing any previous one.
func (m *DefaultMeasure) AddMetric(name string, concurrent int) Metric {
	if concurrent < 1 {
		concurrent = 1
	}
	mt := &DefaultMetric{
		allTransports: make(map[string]*TransportInfo),
		concurrent:    concurrent,
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Steps[name] = mt

	return mt
}

// GetMetric returns the metric of a step, or nil.
func (m *DefaultMeasure) GetMetric(name string) Metric {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.Steps[name]
}

// AllMetrics returns a copy of the metrics by step name.
func (m *DefaultMeasure) AllMetrics() map[string]Metric {
	m.mu.RLock()
	defer m.mu.RUnlock()

	all := make(map[string]Metric, len(m.Steps))
	for name, mt := range m.Steps {
		all[name] = mt
	}

	return all
}

var _ Measure = (*DefaultMeasure)(nil)
