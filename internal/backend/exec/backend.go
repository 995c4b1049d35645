// Package exec implements udpipe.Backend with the udpipe command line tool, run once per processed text.
package exec

import (
	"context"
	"fmt"
	"os"
	osexec "os/exec"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/ufal/udpipe/pkg/udpipe"
)

// DefaultBinary is the name of the udpipe executable looked up in PATH.
const DefaultBinary = "udpipe"

var ErrNotRegularFile = errors.New("not a regular file")

// Backend runs the udpipe binary.
type Backend struct {
	binary   string
	runner   commandRunner
	lookPath func(file string) (string, error)
	log      logrus.FieldLogger
}

// Option configures a Backend.
type Option func(b *Backend)

// WithBinary sets the udpipe executable, a name looked up in PATH or a path.
func WithBinary(binary string) Option {
	return func(b *Backend) {
		if binary != "" {
			b.binary = binary
		}
	}
}

// WithLogger sets the logger.
func WithLogger(log logrus.FieldLogger) Option {
	return func(b *Backend) {
		b.log = log
	}
}

// New creates a Backend.
func New(opts ...Option) *Backend {
	b := &Backend{
		binary:   DefaultBinary,
		runner:   &execRunner{},
		lookPath: osexec.LookPath,
		log:      logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(b)
	}

	return b
}

// Load checks that path is a regular file, that the udpipe binary can be found and
// that the binary accepts the model. The binary reads the model again on every run.
func (b *Backend) Load(ctx context.Context, path string) (udpipe.Model, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, &udpipe.LoadError{Path: path, Err: udpipe.ErrModelNotFound}
		}

		return nil, &udpipe.LoadError{Path: path, Err: errors.Wrap(err, "unable to stat model")}
	}
	if !info.Mode().IsRegular() {
		return nil, &udpipe.LoadError{Path: path, Err: ErrNotRegularFile}
	}

	binary, err := b.lookPath(b.binary)
	if err != nil {
		return nil, &udpipe.LoadError{Path: path, Err: errors.Wrapf(err, "unable to find %s", b.binary)}
	}
	if err := b.check(ctx, binary, path); err != nil {
		return nil, &udpipe.LoadError{Path: path, Err: err}
	}
	b.log.WithFields(logrus.Fields{"binary": binary, "model": path}).Debug("model loaded")

	return &Model{backend: b, binary: binary, path: path}, nil
}

// CheckArgs returns the arguments of the run Load uses to verify a model: CoNLL-U in and out, no stages.
func CheckArgs(modelPath string) []string {
	return []string{"--input=conllu", "--output=conllu", modelPath}
}

// check runs the binary once on empty input so that a model it cannot read fails at load time.
func (b *Backend) check(ctx context.Context, binary, path string) error {
	result, err := b.runner.Run(ctx, "", binary, CheckArgs(path)...)
	if err != nil {
		if ctx.Err() != nil {
			return errors.Wrap(ctx.Err(), "model check interrupted")
		}
		message := strings.TrimSpace(result.Stderr)
		if message == "" {
			message = fmt.Sprintf("%s exited with code %d", binary, result.ExitCode)
		}

		return &checkError{message: message, err: err}
	}

	return nil
}

// checkError reports the diagnostics of a failed model check.
type checkError struct {
	message string
	err     error
}

func (e *checkError) Error() string {
	return e.message
}

func (e *checkError) Unwrap() error {
	return e.err
}

// Model is a model file checked by Load.
type Model struct {
	backend *Backend
	binary  string
	path    string

	mu     sync.Mutex
	closed bool
}

// NewPipeline builds the command line matching cfg.
func (m *Model) NewPipeline(cfg udpipe.PipelineConfig) (udpipe.Pipeline, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, errors.Wrap(udpipe.ErrPipelineNotCreated, "model is closed")
	}
	if cfg.Input == "" {
		return nil, errors.Wrap(udpipe.ErrUnsupportedFormat, "empty input format")
	}
	if cfg.Output == "" {
		return nil, errors.Wrap(udpipe.ErrUnsupportedFormat, "empty output format")
	}

	args := Args(cfg, m.path)
	m.backend.log.WithField("args", strings.Join(args, " ")).Debug("pipeline built")

	return &Pipeline{
		runner: m.backend.runner,
		binary: m.binary,
		args:   args,
		log:    m.backend.log,
	}, nil
}

// Close releases the model.
func (m *Model) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true

	return nil
}

// Args returns the udpipe command line arguments for cfg, model path last.
func Args(cfg udpipe.PipelineConfig, modelPath string) []string {
	args := []string{}

	input := udpipe.ParseInput(cfg.Input)
	if input.Tokenize() {
		args = append(args, "--tokenize")
		if input.Options != "" {
			args = append(args, "--tokenizer="+input.Options)
		}
	} else {
		args = append(args, "--input="+input.String())
	}

	args = appendStage(args, "tag", "tagger", cfg.Tagger)
	args = appendStage(args, "parse", "parser", cfg.Parser)

	return append(args, "--output="+cfg.Output, modelPath)
}

func appendStage(args []string, flag, optionsFlag string, opt udpipe.Option) []string {
	if !opt.Enabled() {
		return args
	}
	args = append(args, "--"+flag)
	if !opt.IsDefault() {
		args = append(args, fmt.Sprintf("--%s=%s", optionsFlag, opt.Value()))
	}

	return args
}

// Pipeline runs the udpipe binary on every processed text.
type Pipeline struct {
	runner commandRunner
	binary string
	args   []string
	log    logrus.FieldLogger
}

// Process feeds text to a new udpipe process and returns its standard output.
func (p *Pipeline) Process(ctx context.Context, text string) (string, error) {
	result, err := p.runner.Run(ctx, text, p.binary, p.args...)
	if err != nil {
		if ctx.Err() != nil {
			return "", errors.Wrap(ctx.Err(), "udpipe interrupted")
		}
		message := strings.TrimSpace(result.Stderr)
		if message == "" {
			message = fmt.Sprintf("%s exited with code %d", p.binary, result.ExitCode)
		}

		return "", udpipe.NewProcessingError(message, err)
	}
	if result.Stderr != "" {
		p.log.Debug(strings.TrimSpace(result.Stderr))
	}

	return result.Stdout, nil
}

// Close releases the pipeline.
func (p *Pipeline) Close() error {
	return nil
}

var (
	_ udpipe.Backend  = (*Backend)(nil)
	_ udpipe.Model    = (*Model)(nil)
	_ udpipe.Pipeline = (*Pipeline)(nil)
)
