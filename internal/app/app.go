package app

import (
	"context"
	"sync"
	"time"

	"kursbot/internal/collector"
	"kursbot/internal/config"
	"kursbot/internal/digest"
	"kursbot/internal/rates"
	"kursbot/internal/scheduler"
	"kursbot/internal/storage"
	kit "kursbot/internal/transport"
	telegram "kursbot/internal/transport/telegram"
	"kursbot/internal/view"
	logx "kursbot/pkg/logx"
)

// App owns the full bot: transport, storage, the rates collector, the
// broadcast engine, the interactive view, and the cron triggers.
type App struct {
	cfgm *config.Manager

	log   logx.Logger
	logs  *logx.Service
	store storage.Store

	adapter kit.Adapter
	rates   *rates.Service
	coll    *collector.Service
	engine  *digest.Service
	view    *view.RatesView
	sched   *scheduler.Service

	owners map[int64]bool

	updates chan kit.Update
	wg      sync.WaitGroup
	cancel  context.CancelFunc
}

// subscriberStore narrows the storage repo to what the delivery engine
// needs; a blocked recipient is downgraded, never deleted.
type subscriberStore struct {
	repo storage.SubscriberRepo
}

func (s subscriberStore) ActiveGroupedByLocale(ctx context.Context) (map[string][]int64, error) {
	return s.repo.ActiveGroupedByLocale(ctx)
}

func (s subscriberStore) Unsubscribe(ctx context.Context, tgUserID int64) error {
	return s.repo.SetSubscribed(ctx, tgUserID, false)
}

func New(cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	logSvc, err := logx.NewService(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	})
	if err != nil {
		return nil, err
	}
	log := logSvc.Logger().With(logx.String("comp", "app"))
	cfgm.SetLogger(logSvc.Logger().With(logx.String("comp", "config")))

	pollTimeout, err := config.ParseDurationOrDefault("telegram.poll_timeout", cfg.Telegram.PollTimeout, 10*time.Second)
	if err != nil {
		return nil, err
	}
	ad, err := telegram.New(telegram.Config{
		Token:       cfg.Telegram.Token,
		PollTimeout: pollTimeout,
	}, logSvc.Logger().With(logx.String("comp", "telegram")))
	if err != nil {
		return nil, err
	}

	storeCfg, err := mapStorageConfig(cfg)
	if err != nil {
		return nil, err
	}
	store, err := storage.Open(storeCfg, logSvc.Logger().With(logx.String("comp", "storage")))
	if err != nil {
		return nil, err
	}
	if store == nil {
		return nil, storage.ErrDisabled
	}

	ratesSvc := rates.New(store.Rates(), logSvc.Logger().With(logx.String("comp", "rates")))

	collCfg, err := mapCollectorConfig(cfg)
	if err != nil {
		return nil, err
	}
	coll := collector.New(collCfg, store.Rates(), logSvc.Logger().With(logx.String("comp", "collector")))

	digestCfg, err := mapDigestConfig(cfg)
	if err != nil {
		return nil, err
	}
	engine := digest.New(digestCfg,
		subscriberStore{repo: store.Subscribers()},
		ratesSvc,
		ad,
		logSvc.Logger().With(logx.String("comp", "digest")))

	editor := view.NewSafeEditor(ad, store.Dashboards(), logSvc.Logger().With(logx.String("comp", "view")))
	ratesView := view.NewRatesView(ratesSvc, editor, ad, logSvc.Logger().With(logx.String("comp", "view")))

	sched := scheduler.New(scheduler.Config{
		Enabled:     cfg.Scheduler.Enabled,
		Timezone:    cfg.Scheduler.Timezone,
		DigestCron:  cfg.Scheduler.DigestCron,
		CollectCron: cfg.Scheduler.CollectCron,
	}, logSvc.Logger().With(logx.String("comp", "scheduler")))

	cfgm.SetValidator(func(_ context.Context, c *config.Config) error {
		return scheduler.ValidateConfig(scheduler.Config{
			Enabled:     c.Scheduler.Enabled,
			Timezone:    c.Scheduler.Timezone,
			DigestCron:  c.Scheduler.DigestCron,
			CollectCron: c.Scheduler.CollectCron,
		})
	})

	owners := make(map[int64]bool, len(cfg.Telegram.OwnerUserIDs))
	for _, id := range cfg.Telegram.OwnerUserIDs {
		owners[id] = true
	}

	return &App{
		cfgm:    cfgm,
		log:     log,
		logs:    logSvc,
		store:   store,
		adapter: ad,
		rates:   ratesSvc,
		coll:    coll,
		engine:  engine,
		view:    ratesView,
		sched:   sched,
		owners:  owners,
		updates: make(chan kit.Update, 256),
	}, nil
}

func (a *App) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	if err := a.adapter.Start(runCtx, a.updates); err != nil {
		cancel()
		return err
	}
	if u, ok := a.adapter.(kit.CommandMenuUpdater); ok {
		if err := u.UpdateMenuCommands(runCtx, menuCommands()); err != nil {
			a.log.Warn("command menu update failed", logx.Err(err))
		}
	}

	cfg := a.cfgm.Get()
	if err := a.sched.Register(scheduler.JobDigest, cfg.Scheduler.DigestCron, func(c context.Context) error {
		_, err := a.engine.Run(c)
		return err
	}); err != nil {
		cancel()
		return err
	}
	if err := a.sched.Register(scheduler.JobCollect, cfg.Scheduler.CollectCron, func(c context.Context) error {
		_, err := a.coll.Collect(c)
		return err
	}); err != nil {
		cancel()
		return err
	}
	if err := a.sched.Start(runCtx); err != nil {
		cancel()
		return err
	}

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.dispatchLoop(runCtx)
	}()

	sub := a.cfgm.Subscribe(8)
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		defer a.cfgm.Unsubscribe(sub)
		a.reloadLoop(runCtx, sub)
	}()

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		if err := a.cfgm.Watch(runCtx); err != nil {
			a.log.Warn("config watch exited", logx.Err(err))
		}
	}()

	a.log.Info("kursbot started")
	return nil
}

func (a *App) Stop(ctx context.Context) error {
	if a.cancel != nil {
		a.cancel()
	}

	stopCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	a.sched.Stop(stopCtx)
	if err := a.adapter.Stop(stopCtx); err != nil {
		a.log.Warn("adapter stop failed", logx.Err(err))
	}
	a.wg.Wait()

	if err := a.store.Close(); err != nil {
		a.log.Warn("store close failed", logx.Err(err))
	}
	a.log.Info("kursbot stopped")
	return a.logs.Close()
}
