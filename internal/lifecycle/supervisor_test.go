package lifecycle

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type blockingService struct {
	name    string
	stopped atomic.Bool
	fail    error
}

func (s *blockingService) Name() string { return s.name }

func (s *blockingService) Run(ctx context.Context) error {
	if s.fail != nil {
		return s.fail
	}
	<-ctx.Done()
	s.stopped.Store(true)
	return nil
}

func TestSupervisorStopsAllOnCancel(t *testing.T) {
	a := &blockingService{name: "a"}
	b := &blockingService{name: "b"}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- NewSupervisor(a, b).Run(ctx) }()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("supervisor did not stop")
	}
	assert.True(t, a.stopped.Load())
	assert.True(t, b.stopped.Load())
}

func TestSupervisorFirstErrorWinsAndStopsRest(t *testing.T) {
	boom := errors.New("boom")
	failing := &blockingService{name: "failing", fail: boom}
	healthy := &blockingService{name: "healthy"}

	done := make(chan error, 1)
	go func() { done <- NewSupervisor(failing, healthy).Run(context.Background()) }()

	select {
	case err := <-done:
		require.Error(t, err)
		assert.ErrorIs(t, err, boom)
		assert.Contains(t, err.Error(), "failing")
	case <-time.After(time.Second):
		t.Fatal("supervisor did not stop after service failure")
	}
	assert.True(t, healthy.stopped.Load())
}

func TestSupervisorNoServices(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NoError(t, NewSupervisor().Run(ctx))
}
