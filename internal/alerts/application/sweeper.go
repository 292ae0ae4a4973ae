package application

import (
	"context"
	"errors"
	"log"
	"time"
)

// Sweeper periodically runs the offline sweep. Equipment that stops
// reporting never produces a reading event, so offline detection has to
// be driven by a schedule instead.
type Sweeper struct {
	service  *Service
	interval time.Duration
	clock    Clock
	logger   *log.Logger
}

// NewSweeper constructs a sweeper.
func NewSweeper(service *Service, interval time.Duration, logger *log.Logger, opts ...SweeperOption) (*Sweeper, error) {
	if service == nil {
		return nil, errors.New("sweeper: nil service")
	}
	if interval <= 0 {
		interval = time.Minute
	}
	if logger == nil {
		logger = log.Default()
	}
	sweeper := &Sweeper{
		service:  service,
		interval: interval,
		clock:    systemClock{},
		logger:   logger,
	}
	for _, opt := range opts {
		opt(sweeper)
	}
	return sweeper, nil
}

// SweeperOption customizes the sweeper.
type SweeperOption func(*Sweeper)

// WithSweeperClock overrides the sweeper clock.
func WithSweeperClock(clock Clock) SweeperOption {
	return func(s *Sweeper) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// Run blocks until the context is cancelled, sweeping at the configured
// interval.
func (s *Sweeper) Run(ctx context.Context) {
	if s == nil || s.service == nil {
		return
	}
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.service.SweepOffline(ctx, s.clock.Now()); err != nil {
				s.logger.Printf("sweeper: offline sweep: %v", err)
			}
		}
	}
}
