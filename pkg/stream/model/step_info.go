package model

// StepType tells how a step is wired into the flow.
type StepType string

const (
	SourceStepType StepType = "source"
	StageStepType  StepType = "stage"
	TeeStepType    StepType = "tee"
	SinkStepType   StepType = "sink"
)

// StepInfo describes a step.
type StepInfo struct {
	Type       StepType
	Name       string
	Concurrent int
	BufferSize int
}

var (
	// StartStep is the virtual parent of every source.
	StartStep = &StepInfo{Name: "start"}
	// EndStep is the virtual child of every sink.
	EndStep = &StepInfo{Name: "end"}
)

// Step is a step output as seen by the next step.
type Step[O any] struct {
	Output  chan O
	Details *StepInfo
}

// Hash identifies a step in the flow graph.
func Hash(info *StepInfo) string {
	return info.Name
}
