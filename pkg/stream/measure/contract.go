package measure

import "time"

// Measure holds one Metric per step.
type Measure interface {
	AddMetric(name string, concurrent int) Metric
	GetMetric(name string) Metric
	AllMetrics() map[string]Metric
}

// Metric accumulates the durations of one step.
type Metric interface {
	// AddDuration records the time spent computing one item.
	AddDuration(elapsed time.Duration)
	// AddTransportDuration records the time spent waiting for one item from inputStepName.
	AddTransportDuration(inputStepName string, elapsed time.Duration)
	// Count is the number of items computed.
	Count() int64
	AVGDuration() time.Duration
	// TotalDuration is the sum of the computation durations.
	TotalDuration() time.Duration
	AVGTransportDuration() map[string]time.Duration
	SetEndDuration(endDuration time.Duration)
	// EndDuration is the time between the start of the flow and the end of the step, when known.
	EndDuration() time.Duration
}
