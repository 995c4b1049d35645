package measure

import (
	"time"

	"github.com/ufal/udpipe/pkg/stream/model"
)

type flowMeasure struct {
	Measure
}

func (fm *flowMeasure) New() error {
	fm.AddMetric(model.StartStep.Name, 1)
	fm.AddMetric(model.EndStep.Name, 1)

	return nil
}

func (fm *flowMeasure) PrepareStep(_, step *model.StepInfo) error {
	fm.AddMetric(step.Name, step.Concurrent)

	return nil
}

func (fm *flowMeasure) PrepareTee(_, teeStep *model.StepInfo) error {
	fm.AddMetric(teeStep.Name, teeStep.Concurrent)

	return nil
}

func (fm *flowMeasure) PrepareSink(_, step *model.StepInfo) error {
	fm.AddMetric(step.Name, step.Concurrent)

	return nil
}

func (fm *flowMeasure) Finish() error {
	return nil
}

func (fm *flowMeasure) record(parentStep, step *model.StepInfo, iterationDuration, computationDuration time.Duration) {
	mt := fm.GetMetric(step.Name)
	if mt == nil {
		return
	}
	mt.AddDuration(computationDuration)
	mt.AddTransportDuration(parentStep.Name, iterationDuration)
}

func (fm *flowMeasure) OnStepOutput(parentStep, step *model.StepInfo, iterationDuration, computationDuration time.Duration) error {
	fm.record(parentStep, step, iterationDuration, computationDuration)

	return nil
}

func (fm *flowMeasure) OnTeeOutput(parentStep, teeStep *model.StepInfo, iterationDuration, computationDuration time.Duration) error {
	fm.record(parentStep, teeStep, iterationDuration, computationDuration)

	return nil
}

func (fm *flowMeasure) OnSinkOutput(parentStep, step *model.StepInfo, iterationDuration, computationDuration time.Duration) error {
	fm.record(parentStep, step, iterationDuration, computationDuration)

	return nil
}

func (fm *flowMeasure) AfterSink(step *model.StepInfo, totalDuration time.Duration) error {
	if mt := fm.GetMetric(step.Name); mt != nil {
		mt.SetEndDuration(totalDuration)
	}
	if mt := fm.GetMetric(model.EndStep.Name); mt != nil && totalDuration > mt.EndDuration() {
		mt.SetEndDuration(totalDuration)
	}

	return nil
}

// FlowMeasure returns a flow option recording the timings of every step in measure.
func FlowMeasure(measure Measure) model.FlowOption {
	return &flowMeasure{measure}
}
