package app

import (
	"context"

	"kursbot/internal/config"
	"kursbot/internal/scheduler"
	logx "kursbot/pkg/logx"
)

// reloadLoop applies committed config reloads to the running subsystems.
// Telegram token and storage driver changes need a restart; everything else
// takes effect in place.
func (a *App) reloadLoop(ctx context.Context, sub chan *config.Config) {
	for {
		select {
		case <-ctx.Done():
			return
		case cfg, ok := <-sub:
			if !ok {
				return
			}
			// Coalesce bursts: only the newest snapshot matters.
			for {
				select {
				case newer := <-sub:
					if newer != nil {
						cfg = newer
					}
				default:
					goto APPLY
				}
			}
		APPLY:
			a.applyConfig(ctx, cfg)
		}
	}
}

func (a *App) applyConfig(ctx context.Context, cfg *config.Config) {
	if err := a.logs.Apply(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	}); err != nil {
		a.log.Warn("logging reload failed", logx.Err(err))
	}

	if dcfg, err := mapDigestConfig(cfg); err != nil {
		a.log.Warn("digest reload rejected", logx.Err(err))
	} else {
		a.engine.Apply(dcfg)
	}

	if err := a.sched.Apply(ctx, scheduler.Config{
		Enabled:     cfg.Scheduler.Enabled,
		Timezone:    cfg.Scheduler.Timezone,
		DigestCron:  cfg.Scheduler.DigestCron,
		CollectCron: cfg.Scheduler.CollectCron,
	}); err != nil {
		a.log.Warn("scheduler reload failed", logx.Err(err))
	}

	a.log.Info("config applied")
}
