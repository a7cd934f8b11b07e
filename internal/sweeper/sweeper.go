// Package sweeper runs the periodic job that closes conversations left in
// the resolved state.
package sweeper

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Closer closes resolved conversations idle since before.
type Closer interface {
	CloseStaleResolved(ctx context.Context, before time.Time) (int64, error)
}

type Sweeper struct {
	closer   Closer
	cron     *cron.Cron
	parser   cron.Parser
	schedule string
	ttl      time.Duration
	logger   *slog.Logger
	now      func() time.Time

	mu      sync.Mutex
	entry   cron.EntryID
	running bool
}

// New validates schedule and returns a stopped sweeper. An empty schedule yields a sweeper that never runs.
func New(log *slog.Logger, closer Closer, schedule string, ttl time.Duration) (*Sweeper, error) {
	if log == nil {
		log = slog.Default()
	}
	parser := cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	schedule = strings.TrimSpace(schedule)
	if schedule != "" {
		if _, err := parser.Parse(schedule); err != nil {
			return nil, fmt.Errorf("invalid sweeper schedule: %w", err)
		}
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("sweeper ttl must be positive")
	}
	return &Sweeper{
		closer:   closer,
		cron:     cron.New(cron.WithParser(parser)),
		parser:   parser,
		schedule: schedule,
		ttl:      ttl,
		logger:   log.With(slog.String("component", "sweeper")),
		now:      time.Now,
	}, nil
}

// Start registers the job and starts the scheduler.
func (s *Sweeper) Start() error {
	if s.schedule == "" {
		s.logger.Info("sweeper disabled")
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}
	entry, err := s.cron.AddFunc(s.schedule, func() {
		_, _ = s.RunOnce(context.Background())
	})
	if err != nil {
		return err
	}
	s.entry = entry
	s.running = true
	s.cron.Start()
	s.logger.Info("sweeper started", slog.String("schedule", s.schedule), slog.Duration("resolved_ttl", s.ttl))
	return nil
}

// Stop stops the scheduler and waits for a running job, or for ctx.
func (s *Sweeper) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.cron.Remove(s.entry)
	s.running = false
	s.mu.Unlock()

	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunOnce closes every resolved conversation idle longer than the ttl.
func (s *Sweeper) RunOnce(ctx context.Context) (int64, error) {
	cutoff := s.now().Add(-s.ttl)
	n, err := s.closer.CloseStaleResolved(ctx, cutoff)
	if err != nil {
		s.logger.Error("close stale conversations failed", slog.Any("error", err))
		return 0, err
	}
	if n > 0 {
		s.logger.Info("closed stale conversations", slog.Int64("count", n), slog.Time("cutoff", cutoff))
	}
	return n, nil
}
