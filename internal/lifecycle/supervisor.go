package lifecycle

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
)

// Service is a long-lived component of a clinic client: the HTTP API, the
// feed subscriber, the eviction sweeper, the metrics collector.
type Service interface {
	Name() string
	Run(ctx context.Context) error
}

// Supervisor runs every service until the context is cancelled or one of
// them fails, then stops the rest. All wiring happens at construction;
// there is no process-global service state.
type Supervisor struct {
	services []Service
}

// NewSupervisor returns a supervisor over the given services.
func NewSupervisor(services ...Service) *Supervisor {
	return &Supervisor{services: services}
}

// Run blocks until shutdown. The first service error wins and is returned
// after every other service has stopped.
func (s *Supervisor) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errs := make(chan error, len(s.services))
	var wg sync.WaitGroup

	for _, svc := range s.services {
		wg.Add(1)
		go func(svc Service) {
			defer wg.Done()
			log.Info().Str("service", svc.Name()).Msg("Service starting")
			if err := svc.Run(ctx); err != nil {
				errs <- fmt.Errorf("%s: %w", svc.Name(), err)
				return
			}
			log.Info().Str("service", svc.Name()).Msg("Service stopped")
		}(svc)
	}

	var firstErr error
	select {
	case <-ctx.Done():
		log.Info().Msg("Shutting down services")
	case firstErr = <-errs:
		log.Error().Err(firstErr).Msg("Service failed, shutting down")
		cancel()
	}

	wg.Wait()
	return firstErr
}
