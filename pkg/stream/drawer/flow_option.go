package drawer

import (
	"time"

	"github.com/pkg/errors"

	"github.com/ufal/udpipe/pkg/stream/measure"
	"github.com/ufal/udpipe/pkg/stream/model"
)

type flowDrawer struct {
	Drawer
	m         measure.Measure
	startTime time.Time
}

func (fd *flowDrawer) New() error {
	err := fd.AddStep(model.StartStep.Name)
	if err != nil {
		return errors.Wrap(err, "unable to add start step to drawer")
	}
	err = fd.AddStep(model.EndStep.Name)
	if err != nil {
		return errors.Wrap(err, "unable to add end step to drawer")
	}

	return nil
}

func (fd *flowDrawer) link(parentStep, step *model.StepInfo) error {
	err := fd.AddStep(step.Name)
	if err != nil {
		return err
	}

	return fd.AddLink(parentStep.Name, step.Name)
}

func (fd *flowDrawer) PrepareStep(parentStep, step *model.StepInfo) error {
	return fd.link(parentStep, step)
}

func (fd *flowDrawer) PrepareTee(parentStep, teeStep *model.StepInfo) error {
	return fd.link(parentStep, teeStep)
}

func (fd *flowDrawer) PrepareSink(parentStep, step *model.StepInfo) error {
	err := fd.link(parentStep, step)
	if err != nil {
		return err
	}

	return fd.AddLink(step.Name, model.EndStep.Name)
}

func (fd *flowDrawer) Finish() error {
	if fd.m != nil {
		err := fd.AddMeasure(fd.m)
		if err != nil {
			return errors.Wrap(err, "unable to add measure")
		}
	}
	err := fd.SetTotalTime(model.EndStep.Name, fd.startTime)
	if err != nil {
		return errors.Wrap(err, "unable to set total time")
	}

	err = fd.Draw()
	if err != nil {
		return errors.Wrap(err, "unable to draw flow")
	}

	return nil
}

func (fd *flowDrawer) OnStepOutput(_, _ *model.StepInfo, _, _ time.Duration) error {
	return nil
}

func (fd *flowDrawer) OnTeeOutput(_, _ *model.StepInfo, _, _ time.Duration) error {
	return nil
}

func (fd *flowDrawer) OnSinkOutput(_, _ *model.StepInfo, _, _ time.Duration) error {
	return nil
}

func (fd *flowDrawer) AfterSink(_ *model.StepInfo, _ time.Duration) error {
	return nil
}

// FlowDrawer returns a flow option drawing the flow once it finished. When measure is not nil, steps and links are
// labelled with its measurements, so FlowDrawer must come after measure.FlowMeasure in the flow options.
func FlowDrawer(drawer Drawer, measure measure.Measure) model.FlowOption {
	return &flowDrawer{drawer, measure, time.Now()}
}
