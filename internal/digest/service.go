package digest

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	logx "kursbot/pkg/logx"
)

const defaultBatchPause = time.Second

// Service is the broadcast delivery engine: it groups active subscribers by
// locale, renders the digest once per locale, and pushes it out in strictly
// sequential batches with bounded in-batch concurrency.
type Service struct {
	mu  sync.Mutex
	cfg Config

	store  SubscriberStore
	source ContentSource
	sender Sender
	log    logx.Logger

	running atomic.Bool
}

func New(cfg Config, store SubscriberStore, source ContentSource, sender Sender, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{cfg: cfg, store: store, source: source, sender: sender, log: log}
}

// Apply swaps the engine configuration; the next run picks it up.
func (s *Service) Apply(cfg Config) {
	s.mu.Lock()
	s.cfg = cfg
	s.mu.Unlock()
}

func (s *Service) config() Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg
}

// Run performs one full broadcast. Runs are single-flight: a second Run while
// one is active returns ErrRunInProgress.
//
// Cancellation is honored at batch boundaries; in-flight sends of the current
// batch are allowed to finish so reconciliation stays consistent.
func (s *Service) Run(ctx context.Context) (*RunStats, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, ErrRunInProgress
	}
	defer s.running.Store(false)

	cfg := s.config()
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	pause := cfg.BatchPause
	if pause <= 0 {
		pause = defaultBatchPause
	}

	stats := &RunStats{StartedAt: time.Now(), Locales: map[string]*LocaleStats{}}

	groups, err := s.store.ActiveGroupedByLocale(ctx)
	if err != nil {
		return nil, fmt.Errorf("load subscriber groups: %w", err)
	}
	if len(groups) == 0 {
		stats.FinishedAt = time.Now()
		stats.Duration = stats.FinishedAt.Sub(stats.StartedAt)
		s.log.Info("digest run: no active subscribers")
		return stats, nil
	}

	locales := make([]string, 0, len(groups))
	for locale := range groups {
		locales = append(locales, locale)
	}
	sort.Strings(locales)

	// Render everything up front: a content-source failure before any batch
	// starts aborts the whole run with zero deliveries attempted.
	contents := make(map[string]Content, len(locales))
	for _, locale := range locales {
		c, err := s.source.RenderDigest(ctx, locale)
		if err != nil {
			return nil, fmt.Errorf("render digest for %q: %w", locale, err)
		}
		contents[locale] = c
	}

	total := 0
	for _, ids := range groups {
		total += len(ids)
	}
	stats.Total = total
	s.log.Info("digest run started",
		logx.Int("recipients", total), logx.Int("locales", len(locales)), logx.Int("batch_size", batchSize))

	pc := newPacer(cfg)
	var runErr error

loop:
	for _, locale := range locales {
		ids := groups[locale]
		ls := stats.locale(locale)
		ls.Total = len(ids)

		batches := splitBatches(ids, batchSize)
		for i, batch := range batches {
			// Cancellation is only observed between batches.
			select {
			case <-ctx.Done():
				runErr = ctx.Err()
				break loop
			default:
			}

			br := s.runBatch(ctx, pc, batch, contents[locale])
			ls.Sent += br.Sent
			ls.Blocked += br.Blocked
			ls.Failed += br.Failed
			ls.Batches++
			stats.Sent += br.Sent
			stats.Blocked += br.Blocked
			stats.Failed += br.Failed
			stats.Batches++

			s.reconcile(ctx, br.BlockedIDs)

			s.log.Debug("digest batch done",
				logx.String("locale", locale),
				logx.Int("batch", i+1), logx.Int("batches", len(batches)),
				logx.Int("sent", br.Sent), logx.Int("blocked", br.Blocked), logx.Int("failed", br.Failed))

			if i < len(batches)-1 {
				if err := sleepCtx(ctx, pause); err != nil {
					runErr = err
					break loop
				}
			}
		}
	}

	stats.FinishedAt = time.Now()
	stats.Duration = stats.FinishedAt.Sub(stats.StartedAt)

	fields := []logx.Field{
		logx.Int("total", stats.Total),
		logx.Int("sent", stats.Sent),
		logx.Int("blocked", stats.Blocked),
		logx.Int("failed", stats.Failed),
		logx.Int("batches", stats.Batches),
		logx.Duration("took", stats.Duration),
	}
	if runErr != nil {
		s.log.Warn("digest run stopped early", append(fields, logx.Err(runErr))...)
		return stats, runErr
	}
	if stats.Failed > 0 || stats.Blocked > 0 {
		s.log.Warn("digest run finished with failures", fields...)
	} else {
		s.log.Info("digest run finished", fields...)
	}
	return stats, nil
}
