package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"sync"

	"github.com/pkg/errors"

	"github.com/ufal/udpipe/pkg/udpipe"
)

// Model is a model served by a UDPipe 2 service.
type Model struct {
	backend *Backend
	service string
	name    string

	mu     sync.Mutex
	closed bool
}

// NewPipeline checks cfg and returns a pipeline sending it along with every text.
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

	return &Pipeline{model: m, fields: Fields(cfg, m.name)}, nil
}

// Close releases the model.
func (m *Model) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true

	return nil
}

// Field is a form field of a process request.
type Field struct {
	Name  string
	Value string
}

// Fields returns the form fields describing cfg, without the data. The service enables the tagger and the parser
// when their field is present, even empty.
func Fields(cfg udpipe.PipelineConfig, model string) []Field {
	fields := []Field{}

	input := udpipe.ParseInput(cfg.Input)
	if input.Tokenize() {
		fields = append(fields, Field{Name: "tokenizer", Value: input.Options})
	} else {
		fields = append(fields, Field{Name: "input", Value: input.String()})
	}
	if cfg.Tagger.Enabled() {
		fields = append(fields, Field{Name: "tagger", Value: cfg.Tagger.Value()})
	}
	if cfg.Parser.Enabled() {
		fields = append(fields, Field{Name: "parser", Value: cfg.Parser.Value()})
	}
	fields = append(fields, Field{Name: "output", Value: cfg.Output})
	if model != "" {
		fields = append(fields, Field{Name: "model", Value: model})
	}

	return fields
}

type processResponse struct {
	Model            string   `json:"model"`
	Acknowledgements []string `json:"acknowledgements"`
	Result           *string  `json:"result"`
}

// Pipeline posts every text to the service.
type Pipeline struct {
	model    *Model
	fields   []Field
	licensed sync.Once
}

func (p *Pipeline) body(text string) (*bytes.Buffer, string, error) {
	body := &bytes.Buffer{}
	form := multipart.NewWriter(body)
	err := form.WriteField("data", text)
	if err != nil {
		return nil, "", errors.Wrap(err, "unable to write data field")
	}
	for _, field := range p.fields {
		err := form.WriteField(field.Name, field.Value)
		if err != nil {
			return nil, "", errors.Wrapf(err, "unable to write %s field", field.Name)
		}
	}
	err = form.Close()
	if err != nil {
		return nil, "", errors.Wrap(err, "unable to close form")
	}

	return body, form.FormDataContentType(), nil
}

// Process sends text to the service and returns the result.
func (p *Pipeline) Process(ctx context.Context, text string) (string, error) {
	body, contentType, err := p.body(text)
	if err != nil {
		return "", err
	}

	var response processResponse
	err = p.model.backend.do(ctx, http.MethodPost, p.model.service+"/process", body, contentType, func(resp *http.Response) error {
		if resp.StatusCode != http.StatusOK {
			message, err := io.ReadAll(resp.Body)
			if err != nil {
				return errors.Wrap(err, "unable to read error")
			}
			if len(bytes.TrimSpace(message)) == 0 {
				return udpipe.NewProcessingError("the service returned "+resp.Status, nil)
			}

			return udpipe.NewProcessingError(strings.TrimSpace(string(message)), nil)
		}

		err := json.NewDecoder(resp.Body).Decode(&response)
		if err != nil {
			return udpipe.NewProcessingError(ErrInvalidResponse.Error(), errors.Wrap(ErrInvalidResponse, err.Error()))
		}
		if response.Result == nil {
			return udpipe.NewProcessingError(ErrInvalidResponse.Error(), ErrInvalidResponse)
		}

		return nil
	})
	if err != nil {
		var procErr *udpipe.ProcessingError
		if errors.As(err, &procErr) {
			return "", procErr
		}

		return "", errors.Wrap(err, "unable to process text")
	}

	p.licensed.Do(func() {
		log := p.model.backend.log.WithField("model", response.Model)
		log.Infof("UDPipe generated an output using the model '%s'.", response.Model)
		log.Info("Please respect the model licence (CC BY-NC-SA unless stated otherwise).")
		if len(response.Acknowledgements) > 0 {
			log.WithField("acknowledgements", response.Acknowledgements).Debug("model acknowledgements")
		}
	})

	return *response.Result, nil
}

// Close releases the pipeline.
func (p *Pipeline) Close() error {
	return nil
}

var (
	_ udpipe.Model    = (*Model)(nil)
	_ udpipe.Pipeline = (*Pipeline)(nil)
)
