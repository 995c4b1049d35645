package model

import "time"

// FlowOption defines the interface for flow options.
type FlowOption interface {
	// New initialises the flow option.
	New() error

	flowStepOption
	flowTeeOption
	flowSinkOption

	// Finish runs after the flow is finished.
	Finish() error
}

// flowStepOption defines the interface for source and stage options at the flow level.
type flowStepOption interface {
	// PrepareStep runs when the step is added.
	PrepareStep(parentStep, step *StepInfo) error
	// OnStepOutput runs everytime something is pushed to the output of the step.
	OnStepOutput(parentStep, step *StepInfo, iterationDuration, computationDuration time.Duration) error
}

// flowTeeOption defines the interface for tee options at the flow level.
type flowTeeOption interface {
	// PrepareTee runs when the tee is added.
	PrepareTee(parentStep, teeStep *StepInfo) error
	// OnTeeOutput runs everytime an item has been handed to every branch of the tee.
	OnTeeOutput(parentStep, teeStep *StepInfo, iterationDuration, computationDuration time.Duration) error
}

// flowSinkOption defines the interface for sink options at the flow level.
type flowSinkOption interface {
	// PrepareSink runs when the sink is added.
	PrepareSink(parentStep, step *StepInfo) error
	// OnSinkOutput runs everytime the sink consumed an item.
	OnSinkOutput(parentStep, step *StepInfo, iterationDuration, computationDuration time.Duration) error
	// AfterSink runs once the sink input is exhausted.
	AfterSink(step *StepInfo, totalDuration time.Duration) error
}
