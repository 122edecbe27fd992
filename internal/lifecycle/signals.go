package lifecycle

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
)

// SignalHandler cancels the root context on SIGINT or SIGTERM so every
// supervised service winds down gracefully.
type SignalHandler struct {
	sigChan chan os.Signal
}

// NewSignalHandler registers for interrupt and terminate signals.
func NewSignalHandler() *SignalHandler {
	sh := &SignalHandler{
		sigChan: make(chan os.Signal, 1),
	}
	signal.Notify(sh.sigChan, syscall.SIGINT, syscall.SIGTERM)
	return sh
}

// HandleSignals cancels the context when a shutdown signal arrives.
func (sh *SignalHandler) HandleSignals(ctx context.Context, cancel context.CancelFunc) {
	go func() {
		select {
		case sig := <-sh.sigChan:
			log.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
			cancel()
		case <-ctx.Done():
		}
	}()
}
