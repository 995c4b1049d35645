// Package drawer renders a flow as a Graphviz DOT graph annotated with its measurements.
package drawer

import (
	"time"

	"github.com/ufal/udpipe/pkg/stream/measure"
)

// Drawer is an interface that defines the methods for drawing a flow.
type Drawer interface {
	// AddStep adds a step to the flow drawer.
	AddStep(stepName string) error
	// AddLink adds a link between parent and child steps.
	AddLink(parentStepName, childStepName string) error
	// Draw writes the flow graph.
	Draw() error
	// SetTotalTime labels the step with the time elapsed since startTime.
	SetTotalTime(stepName string, startTime time.Time) error
	// AddMeasure labels steps and links with the measurements.
	AddMeasure(measure measure.Measure) error
}
