// Package runner feeds standard input to a udpipe pipeline and writes the results to standard output.
package runner

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/ufal/udpipe/internal/config"
	"github.com/ufal/udpipe/internal/framing"
	"github.com/ufal/udpipe/pkg/stream"
	"github.com/ufal/udpipe/pkg/stream/drawer"
	"github.com/ufal/udpipe/pkg/stream/measure"
	"github.com/ufal/udpipe/pkg/stream/model"
	"github.com/ufal/udpipe/pkg/udpipe"
)

// Mode selects how standard input is cut into texts.
type Mode int

const (
	// Whole submits all of standard input at once.
	Whole Mode = iota
	// Blocks submits every blank line delimited block as soon as it is read.
	Blocks
)

func (m Mode) String() string {
	if m == Blocks {
		return "blocks"
	}

	return "whole"
}

var ErrUsage = errors.New("missing arguments")

// Usage writes the usage line of program to w and returns ErrUsage.
func Usage(w io.Writer, program string) error {
	fmt.Fprintf(w, "Usage: %s input_format output_format model_file\n", program)

	return ErrUsage
}

// Step names of the flow.
const (
	StepStdin   = "stdin"
	StepProcess = "process"
	StepTee     = "tee"
	StepStdout  = "stdout"
	StepTeeFile = "tee file"
)

// Runner runs one pipeline over standard input.
type Runner struct {
	// Program is the name used in diagnostics.
	Program string
	Mode    Mode
	Backend udpipe.Backend
	Config  config.Config
	Stdin   io.Reader
	Stdout  io.Writer
	// Stderr receives the progress line and the diagnostics.
	Stderr io.Writer
	Log    logrus.FieldLogger
}

type flusher interface {
	Flush() error
}

// Run processes standard input with the model and formats given in args: input format, output format and model
// location. Every failure is reported on Stderr before being returned.
func (r *Runner) Run(ctx context.Context, args []string) error {
	if r.Log == nil {
		r.Log = logrus.StandardLogger()
	}
	if len(args) < 3 {
		return Usage(r.Stderr, r.Program)
	}
	input, output, path := args[0], args[1], args[2]

	fmt.Fprint(r.Stderr, "Loading model: ")
	mdl, err := r.Backend.Load(ctx, path)
	if err != nil {
		var loadErr *udpipe.LoadError
		if !errors.As(err, &loadErr) {
			loadErr = &udpipe.LoadError{Path: path, Err: err}
		}
		fmt.Fprintf(r.Stderr, "Cannot load model from file '%s'", loadErr.Path)
		if loadErr.Err != nil {
			fmt.Fprintf(r.Stderr, ": %v", loadErr.Err)
		}
		fmt.Fprintln(r.Stderr)

		return loadErr
	}
	defer r.release("model", mdl)
	fmt.Fprintln(r.Stderr, "done")

	cfg := r.Config.Pipeline(input, output)
	r.Log.WithFields(logrus.Fields{
		"input":  cfg.Input,
		"tagger": cfg.Tagger.String(),
		"parser": cfg.Parser.String(),
		"output": cfg.Output,
		"mode":   r.Mode.String(),
	}).Info("model loaded")

	pipe, err := mdl.NewPipeline(cfg)
	if err != nil {
		return r.fail(errors.Wrap(err, "unable to create pipeline"))
	}
	defer r.release("pipeline", pipe)

	return r.fail(r.process(ctx, pipe))
}

// fail reports err as a processing error.
func (r *Runner) fail(err error) error {
	if err == nil {
		return nil
	}
	message := err.Error()
	var procErr *udpipe.ProcessingError
	if errors.As(err, &procErr) {
		message = procErr.Message
	}
	fmt.Fprintf(r.Stderr, "An error occurred in %s: %s\n", r.Program, message)

	return err
}

func (r *Runner) release(name string, c io.Closer) {
	err := c.Close()
	if err != nil {
		r.Log.WithError(err).Warnf("unable to release %s", name)
	}
}

func (r *Runner) framer() framing.Framer {
	if r.Mode == Blocks {
		return framing.NewBlocks(r.Stdin, framing.KeepEmpty(r.Config.KeepEmpty))
	}

	return framing.NewWhole(r.Stdin)
}

func (r *Runner) flowOptions() ([]model.FlowOption, measure.Measure) {
	if !r.Config.Stats && r.Config.Graph == "" {
		return nil, nil
	}
	msr := measure.NewDefaultMeasure()
	opts := []model.FlowOption{measure.FlowMeasure(msr)}
	if r.Config.Graph != "" {
		opts = append(opts, drawer.FlowDrawer(drawer.NewDOTDrawer(r.Config.Graph), msr))
	}

	return opts, msr
}

// process runs the flow stdin -> process -> stdout. The stdin step reads the next block only once the stdout
// step wrote the previous one, so a single block is in flight.
func (r *Runner) process(ctx context.Context, pipe udpipe.Pipeline) error {
	opts, msr := r.flowOptions()
	flow, err := stream.New(opts...)
	if err != nil {
		return errors.Wrap(err, "unable to create flow")
	}

	written := make(chan struct{})
	framer := r.framer()
	source, err := stream.AddSource(flow, StepStdin, func(ctx context.Context, output chan<- framing.Block) error {
		for {
			block, err := framer.Next()
			if errors.Is(err, io.EOF) {
				return nil
			}
			if err != nil {
				return err
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case output <- block:
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-written:
			}
		}
	})
	if err != nil {
		return err
	}

	processed, err := stream.AddStage(flow, StepProcess, source, func(ctx context.Context, block framing.Block) (framing.Block, error) {
		out, err := pipe.Process(ctx, block.Text)
		if err != nil {
			return framing.Block{}, err
		}
		r.Log.WithFields(logrus.Fields{"block": block.Index, "in": len(block.Text), "out": len(out)}).Debug("block processed")

		return framing.Block{Index: block.Index, Text: out}, nil
	})
	if err != nil {
		return err
	}

	toStdout := processed
	if r.Config.Tee != "" {
		file, err := os.Create(r.Config.Tee)
		if err != nil {
			return errors.Wrap(err, "unable to create tee file")
		}
		defer r.release("tee file", file)

		toStdout, err = r.addTee(flow, processed, file)
		if err != nil {
			return err
		}
	}

	err = stream.AddSink(flow, StepStdout, toStdout, func(ctx context.Context, block framing.Block) error {
		err := write(r.Stdout, block.Text)
		if err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case written <- struct{}{}:
		}

		return nil
	})
	if err != nil {
		return err
	}

	err = flow.Run(ctx)
	if err != nil {
		return err
	}

	if r.Config.Stats {
		return r.logStats(flow, msr)
	}

	return nil
}

// addTee copies the processed blocks to w and returns the branch meant for stdout.
func (r *Runner) addTee(flow *stream.Flow, processed *model.Step[framing.Block], w io.Writer) (*model.Step[framing.Block], error) {
	tee, err := stream.AddTee(flow, StepTee, processed, 2)
	if err != nil {
		return nil, err
	}
	toStdout, _ := tee.Get()
	toFile, _ := tee.Get()
	err = stream.AddSink(flow, StepTeeFile, toFile, func(_ context.Context, block framing.Block) error {
		return write(w, block.Text)
	})
	if err != nil {
		return nil, err
	}

	return toStdout, nil
}

func write(w io.Writer, text string) error {
	_, err := io.WriteString(w, text)
	if err != nil {
		return errors.Wrap(err, "unable to write output")
	}
	if f, ok := w.(flusher); ok {
		return errors.Wrap(f.Flush(), "unable to flush output")
	}

	return nil
}

func (r *Runner) logStats(flow *stream.Flow, msr measure.Measure) error {
	reports, err := flow.Report(msr)
	if err != nil {
		return errors.Wrap(err, "unable to compute statistics")
	}
	for _, report := range reports {
		r.Log.WithFields(logrus.Fields{
			"step":    report.Name,
			"type":    string(report.Type),
			"items":   report.Items,
			"average": report.Average.String(),
			"total":   report.Total.String(),
			"waiting": report.Waiting.String(),
		}).Info("step statistics")
	}
	if slowest, ok := stream.Bottleneck(reports); ok {
		r.Log.WithFields(logrus.Fields{"step": slowest.Name, "total": slowest.Total.String()}).Info("slowest step")
	}

	return nil
}
