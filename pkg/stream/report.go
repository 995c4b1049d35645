package stream

import (
	"strings"
	"time"

	"github.com/dominikbraun/graph"
	"github.com/pkg/errors"

	"github.com/ufal/udpipe/pkg/stream/measure"
	"github.com/ufal/udpipe/pkg/stream/model"
)

// StepReport summarises the measurements of one step.
type StepReport struct {
	Name    string
	Type    model.StepType
	Items   int64
	Average time.Duration
	Total   time.Duration
	// Waiting is the average time spent waiting on the previous steps.
	Waiting time.Duration
}

// Report lists the steps in flow order with the measurements collected by msr.
// Steps without a metric are reported with zero values.
func (f *Flow) Report(msr measure.Measure) ([]StepReport, error) {
	order, err := graph.StableTopologicalSort(f.graph, func(a, b string) bool {
		return strings.Compare(a, b) < 0
	})
	if err != nil {
		return nil, errors.Wrap(err, "unable to order steps")
	}

	metrics := map[string]measure.Metric{}
	if msr != nil {
		metrics = msr.AllMetrics()
	}

	reports := make([]StepReport, 0, len(order))
	for _, name := range order {
		if name == model.StartStep.Name || name == model.EndStep.Name {
			continue
		}
		info, err := f.graph.Vertex(name)
		if err != nil {
			return nil, errors.Wrapf(err, "unable to get step %q", name)
		}
		report := StepReport{Name: name, Type: info.Type}
		if mt, ok := metrics[name]; ok {
			report.Items = mt.Count()
			report.Average = mt.AVGDuration()
			report.Total = mt.TotalDuration()
			report.Waiting = averageWaiting(mt.AVGTransportDuration())
		}
		reports = append(reports, report)
	}

	return reports, nil
}

func averageWaiting(transports map[string]time.Duration) time.Duration {
	if len(transports) == 0 {
		return 0
	}
	var sum time.Duration
	for _, elapsed := range transports {
		sum += elapsed
	}

	return sum / time.Duration(len(transports))
}

// Bottleneck returns the stage or sink that spent the most time processing items, the one to speed up or scale
// first. It returns false when no step processed anything.
func Bottleneck(reports []StepReport) (StepReport, bool) {
	var slowest StepReport
	found := false
	for _, report := range reports {
		if report.Type == model.SourceStepType || report.Items == 0 {
			continue
		}
		if !found || report.Total > slowest.Total {
			slowest = report
			found = true
		}
	}

	return slowest, found
}
