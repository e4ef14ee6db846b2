package scheduler

import (
	"errors"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/lstrojny/prometheus-weather-exporter/internal/cache"
)

// DefaultInterval is how often expired cache entries are swept.
const DefaultInterval = time.Minute

var errNothingToSweep = errors.New("scheduler: no caches to sweep")

// Purger is implemented by cache.Cache.
type Purger interface {
	Purge() int
	Stats() cache.Stats
}

// Sweeper periodically removes expired entries from caches. It never fills a
// cache, so sweeping causes no upstream calls.
type Sweeper struct {
	scheduler *gocron.Scheduler
	caches    map[string]Purger
	interval  time.Duration
	logger    *slog.Logger
}

// New creates a Sweeper for the named caches. interval <= 0 means
// DefaultInterval.
func New(caches map[string]Purger, interval time.Duration, logger *slog.Logger) *Sweeper {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := gocron.NewScheduler(time.UTC)
	s.SingletonModeAll()

	return &Sweeper{
		scheduler: s,
		caches:    caches,
		interval:  interval,
		logger:    logger,
	}
}

// Sweep purges every cache once and returns the number of removed entries.
func (s *Sweeper) Sweep() int {
	total := 0
	for name, c := range s.caches {
		removed := c.Purge()
		total += removed
		s.logger.Debug("Swept cache", "cache", name, "removed", removed, "stats", c.Stats().String())
	}
	return total
}

// Start schedules the sweep job and starts the underlying scheduler.
func (s *Sweeper) Start() error {
	if len(s.caches) == 0 {
		return errNothingToSweep
	}

	if _, err := s.scheduler.Every(s.interval).Do(func() { s.Sweep() }); err != nil {
		return err
	}

	s.scheduler.StartAsync()
	return nil
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Sweeper) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
