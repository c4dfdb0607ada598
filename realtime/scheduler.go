package realtime

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

type broadcaster interface {
	Broadcast(ctx context.Context, msg any) BroadcastResult
}

// Scheduler hands broadcasts to the hub in the background so request handlers
// never wait on client I/O. Events scheduled while it is not running are dropped.
type Scheduler struct {
	hub    broadcaster
	logger *zap.Logger

	mu     sync.RWMutex
	ctx    context.Context
	cancel context.CancelFunc
	active bool
	wg     sync.WaitGroup
}

// NewScheduler creates an inactive scheduler for hub
func NewScheduler(hub broadcaster, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{hub: hub, logger: logger}
}

// Start activates the scheduler. Broadcasts run under ctx and stop with it.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active {
		return
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.active = true

	go func(ctx context.Context) {
		<-ctx.Done()
		s.mu.Lock()
		if s.ctx == ctx {
			s.active = false
		}
		s.mu.Unlock()
	}(s.ctx)
}

// Stop deactivates the scheduler and waits for in-flight broadcasts
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.active = false
	s.mu.Unlock()
	s.wg.Wait()
}

// Wait blocks until every broadcast scheduled so far has finished
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

// Active reports whether Schedule will accept events
func (s *Scheduler) Active() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active
}

// Schedule queues msgs for broadcast and returns immediately. Messages passed
// in one call are delivered one after another, in order. It reports false when
// the events were dropped.
func (s *Scheduler) Schedule(msgs ...any) bool {
	if len(msgs) == 0 {
		return true
	}
	s.mu.RLock()
	if !s.active {
		s.mu.RUnlock()
		for _, msg := range msgs {
			s.logger.Warn("broadcast scheduler inactive, dropping event", zap.String("type", messageType(msg)))
		}
		return false
	}
	ctx := s.ctx
	s.wg.Add(1)
	s.mu.RUnlock()

	go func() {
		defer s.wg.Done()
		for _, msg := range msgs {
			s.broadcast(ctx, msg)
		}
	}()
	return true
}

func (s *Scheduler) broadcast(ctx context.Context, msg any) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("broadcast panicked",
				zap.String("type", messageType(msg)),
				zap.Error(fmt.Errorf("%v", r)))
		}
	}()
	result := s.hub.Broadcast(ctx, msg)
	if result.Failed > 0 {
		s.logger.Warn("broadcast partially failed",
			zap.String("type", messageType(msg)),
			zap.Int("failed", result.Failed),
			zap.Int("attempted", result.Attempted))
	}
}
