// Package rest implements udpipe.Backend with the UDPipe 2 REST service.
//
// A model location is the service root URL, optionally followed by a fragment naming the model:
//
//	https://lindat.mff.cuni.cz/services/udpipe/api#english-ewt
//
// Without a fragment the service uses its default model.
package rest

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/ufal/udpipe/pkg/udpipe"
)

// DefaultService is the public UDPipe 2 service.
const DefaultService = "https://lindat.mff.cuni.cz/services/udpipe/api"

var (
	ErrNotURL          = errors.New("model location is not an http(s) URL")
	ErrInvalidResponse = errors.New("cannot parse the UDPipe response")
)

// IsURL reports whether path designates a REST service rather than a model file.
func IsURL(path string) bool {
	return strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://")
}

// ParseLocation splits a model location into the service root and the model name.
func ParseLocation(location string) (string, string, error) {
	if !IsURL(location) {
		return "", "", ErrNotURL
	}
	u, err := url.Parse(location)
	if err != nil {
		return "", "", errors.Wrap(err, "unable to parse model location")
	}
	model := u.Fragment
	u.Fragment = ""
	u.RawFragment = ""

	return strings.TrimSuffix(u.String(), "/"), model, nil
}

// Backend talks to a UDPipe 2 service.
type Backend struct {
	client  *http.Client
	timeout time.Duration
	limiter *rate.Limiter
	log     logrus.FieldLogger
}

// Option configures a Backend.
type Option func(b *Backend)

// WithHTTPClient sets the HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(b *Backend) {
		b.client = client
	}
}

// WithTimeout bounds every request. 0 means no limit.
func WithTimeout(timeout time.Duration) Option {
	return func(b *Backend) {
		b.timeout = timeout
	}
}

// WithRate limits the requests to perSecond. 0 means no limit.
func WithRate(perSecond float64) Option {
	return func(b *Backend) {
		if perSecond > 0 {
			b.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
		} else {
			b.limiter = nil
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
		client: http.DefaultClient,
		log:    logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(b)
	}

	return b
}

type modelsResponse struct {
	Models       map[string][]string `json:"models"`
	DefaultModel string              `json:"default_model"`
}

// servedName returns the served model answering to name. A served model answers to its full name and to every
// prefix of it ending before a '-'.
func (r modelsResponse) servedName(name string) (string, bool) {
	if name == "" {
		return r.DefaultModel, true
	}
	if _, ok := r.Models[name]; ok {
		return name, true
	}
	for served := range r.Models {
		if strings.HasPrefix(served, name+"-") {
			return served, true
		}
	}

	return "", false
}

// Load lists the models of the service and checks that the requested one is served.
func (b *Backend) Load(ctx context.Context, location string) (udpipe.Model, error) {
	service, name, err := ParseLocation(location)
	if err != nil {
		return nil, &udpipe.LoadError{Path: location, Err: err}
	}

	var models modelsResponse
	err = b.do(ctx, http.MethodGet, service+"/models", nil, "", func(resp *http.Response) error {
		if resp.StatusCode != http.StatusOK {
			return errors.Errorf("unexpected status %s", resp.Status)
		}

		return errors.Wrap(json.NewDecoder(resp.Body).Decode(&models), "unable to decode models")
	})
	if err != nil {
		return nil, &udpipe.LoadError{Path: location, Err: err}
	}

	served, ok := models.servedName(name)
	if !ok {
		return nil, &udpipe.LoadError{Path: location, Err: errors.Wrapf(udpipe.ErrModelNotFound, "model %q", name)}
	}
	b.log.WithFields(logrus.Fields{"service": service, "model": served}).Debug("model found")

	return &Model{backend: b, service: service, name: name}, nil
}

// do sends a request, waiting for the rate limiter, and hands the response to handle.
func (b *Backend) do(ctx context.Context, method, target string, body io.Reader, contentType string, handle func(resp *http.Response) error) error {
	if b.limiter != nil {
		err := b.limiter.Wait(ctx)
		if err != nil {
			return errors.Wrap(err, "rate limit")
		}
	}
	if b.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return errors.Wrap(err, "unable to create request")
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return errors.Wrapf(err, "unable to send request to %s", target)
	}
	defer resp.Body.Close()

	return handle(resp)
}

var _ udpipe.Backend = (*Backend)(nil)
