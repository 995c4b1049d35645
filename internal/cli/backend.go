package cli

import (
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/ufal/udpipe/internal/backend/exec"
	"github.com/ufal/udpipe/internal/backend/rest"
	"github.com/ufal/udpipe/internal/config"
	"github.com/ufal/udpipe/pkg/udpipe"
)

// BackendName returns the backend used for the model location: the configured one, or with "auto" the REST
// backend for http(s) URLs and the exec backend otherwise.
func BackendName(cfg config.Config, location string) string {
	if cfg.Backend != config.BackendAuto {
		return cfg.Backend
	}
	if rest.IsURL(location) {
		return config.BackendREST
	}

	return config.BackendExec
}

// NewBackend creates the backend serving the model location.
func NewBackend(cfg config.Config, location string, log logrus.FieldLogger) (udpipe.Backend, error) {
	name := BackendName(cfg, location)
	log = log.WithField("backend", name)

	switch name {
	case config.BackendREST:
		return rest.New(
			rest.WithTimeout(cfg.Timeout),
			rest.WithRate(cfg.Rate),
			rest.WithLogger(log),
		), nil
	case config.BackendExec:
		return exec.New(
			exec.WithBinary(cfg.Binary),
			exec.WithLogger(log),
		), nil
	default:
		return nil, errors.Wrapf(config.ErrUnknownBackend, "%q", name)
	}
}
