package measure

import (
	"sync"
	"time"
)

// TransportInfo accumulates the waiting time on one input.
type TransportInfo struct {
	Elapsed time.Duration
	total   int64
}

// DefaultMetric is the in-memory Metric.
type DefaultMetric struct {
	mu            sync.Mutex
	allTransports map[string]*TransportInfo
	endDuration   time.Duration
	stepElapsed   time.Duration
	total         int64
	concurrent    int
}

func (mt *DefaultMetric) AddDuration(elapsed time.Duration) {
	mt.mu.Lock()
	defer mt.mu.Unlock()
	mt.total++
	mt.stepElapsed += elapsed
}

func (mt *DefaultMetric) SetEndDuration(endDuration time.Duration) {
	mt.mu.Lock()
	defer mt.mu.Unlock()
	mt.endDuration = endDuration
}

func (mt *DefaultMetric) EndDuration() time.Duration {
	mt.mu.Lock()
	defer mt.mu.Unlock()

	return mt.endDuration
}

func (mt *DefaultMetric) AddTransportDuration(inputStepName string, elapsed time.Duration) {
	mt.mu.Lock()
	defer mt.mu.Unlock()
	if mt.allTransports[inputStepName] == nil {
		mt.allTransports[inputStepName] = &TransportInfo{}
	}
	ch := mt.allTransports[inputStepName]
	ch.Elapsed += elapsed
	ch.total++
}

func (mt *DefaultMetric) Count() int64 {
	mt.mu.Lock()
	defer mt.mu.Unlock()

	return mt.total
}

func (mt *DefaultMetric) AVGDuration() time.Duration {
	mt.mu.Lock()
	defer mt.mu.Unlock()
	if mt.total == 0 {
		return time.Duration(0)
	}

	return round(time.Duration(float64(mt.stepElapsed) / float64(mt.total)))
}

func (mt *DefaultMetric) TotalDuration() time.Duration {
	mt.mu.Lock()
	defer mt.mu.Unlock()

	return round(mt.stepElapsed)
}

// AVGTransportDuration returns the average waiting time per input, divided by the step concurrency.
func (mt *DefaultMetric) AVGTransportDuration() map[string]time.Duration {
	mt.mu.Lock()
	defer mt.mu.Unlock()

	avg := make(map[string]time.Duration, len(mt.allTransports))
	for name, ch := range mt.allTransports {
		if ch.total == 0 {
			continue
		}
		avg[name] = round(time.Duration(float64(ch.Elapsed) / float64(ch.total) / float64(mt.concurrent)))
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

var _ Metric = (*DefaultMetric)(nil)
