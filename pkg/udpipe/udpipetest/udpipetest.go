// Package udpipetest provides a deterministic in-memory udpipe.Backend for tests.
package udpipetest

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/pkg/errors"

	"github.com/ufal/udpipe/pkg/udpipe"
)

// Backend is a fake udpipe.Backend.
//
// Every pipeline it builds prefixes the processed text with "# block <n>" where n counts the calls to Process on
// that pipeline, starting at 0. The rest of the text is returned unchanged.
type Backend struct {
	// Paths lists the model paths that load. When nil every path loads.
	Paths []string
	// FailOn makes Process fail for every text containing it.
	FailOn string
	// OnProcess, if set, is called with the block number and text before processing.
	OnProcess func(n int, text string)

	mu     sync.Mutex
	loads  []string
	models []*Model
}

// Load implements udpipe.Backend.
func (b *Backend) Load(ctx context.Context, path string) (udpipe.Model, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.loads = append(b.loads, path)
	if b.Paths != nil && !contains(b.Paths, path) {
		return nil, &udpipe.LoadError{Path: path, Err: udpipe.ErrModelNotFound}
	}
	mdl := &Model{backend: b, path: path}
	b.models = append(b.models, mdl)

	return mdl, nil
}

// Loads returns the paths Load was called with.
func (b *Backend) Loads() []string {
	b.mu.Lock()
	defer b.mu.Unlock()

	return append([]string(nil), b.loads...)
}

// Models returns the loaded models.
func (b *Backend) Models() []*Model {
	b.mu.Lock()
	defer b.mu.Unlock()

	return append([]*Model(nil), b.models...)
}

// Model is a fake udpipe.Model.
type Model struct {
	backend   *Backend
	path      string
	mu        sync.Mutex
	closed    bool
	pipelines []*Pipeline
}

// NewPipeline implements udpipe.Model.
func (m *Model) NewPipeline(cfg udpipe.PipelineConfig) (udpipe.Pipeline, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, errors.Wrap(udpipe.ErrPipelineNotCreated, "model is closed")
	}
	pipe := &Pipeline{model: m, Config: cfg}
	m.pipelines = append(m.pipelines, pipe)

	return pipe, nil
}

// Close implements udpipe.Model.
func (m *Model) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true

	return nil
}

// Closed reports whether Close was called.
func (m *Model) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.closed
}

// Pipelines returns the pipelines built from the model.
func (m *Model) Pipelines() []*Pipeline {
	m.mu.Lock()
	defer m.mu.Unlock()

	return append([]*Pipeline(nil), m.pipelines...)
}

// Pipeline is a fake udpipe.Pipeline.
type Pipeline struct {
	Config udpipe.PipelineConfig

	model  *Model
	mu     sync.Mutex
	texts  []string
	closed bool
}

// Process implements udpipe.Pipeline.
func (p *Pipeline) Process(ctx context.Context, text string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	p.mu.Lock()
	n := len(p.texts)
	p.texts = append(p.texts, text)
	p.mu.Unlock()

	if hook := p.model.backend.OnProcess; hook != nil {
		hook(n, text)
	}
	if failOn := p.model.backend.FailOn; failOn != "" && strings.Contains(text, failOn) {
		return "", udpipe.NewProcessingError(fmt.Sprintf("cannot process block %d", n), nil)
	}

	return Tag(n, text), nil
}

// Close implements udpipe.Pipeline.
func (p *Pipeline) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true

	return nil
}

// Closed reports whether Close was called.
func (p *Pipeline) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.closed
}

// Texts returns every text passed to Process, in order.
func (p *Pipeline) Texts() []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	return append([]string(nil), p.texts...)
}

// Tag returns what the fake pipeline produces for the n-th text.
func Tag(n int, text string) string {
	return fmt.Sprintf("# block %d\n%s", n, text)
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}

	return false
}
