package app

import (
	"errors"
	"io"

	"ytrunner/internal/account"
	"ytrunner/internal/distribution/youtube"
	"ytrunner/internal/engine"
	"ytrunner/internal/progress"
	"ytrunner/pkg/config"
)

// Service bundles everything one CLI invocation needs.
type Service struct {
	cfg      *config.Config
	registry *account.Registry
	store    progress.Store
	provider *youtube.Provider
	engine   *engine.Engine
	closers  []io.Closer
}

type ServiceOptions struct {
	Config   *config.Config
	Registry *account.Registry
	Store    progress.Store
	Provider *youtube.Provider
	Engine   *engine.Engine
	Closers  []io.Closer
}

func NewService(opts ServiceOptions) *Service {
	return &Service{
		cfg:      opts.Config,
		registry: opts.Registry,
		store:    opts.Store,
		provider: opts.Provider,
		engine:   opts.Engine,
		closers:  opts.Closers,
	}
}

func (s *Service) Config() *config.Config      { return s.cfg }
func (s *Service) Registry() *account.Registry { return s.registry }
func (s *Service) Store() progress.Store       { return s.store }
func (s *Service) Provider() *youtube.Provider { return s.provider }

// Close releases the progress store and every remote source client.
func (s *Service) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
