package main

import (
	"context"
	"log/slog"
	"time"

	"gif-api/internal/observability/metrics"
	"gif-api/internal/serverutil"
)

type sessionPurger interface {
	PurgeExpired(ctx context.Context) error
}

type purgeTicker interface {
	C() <-chan time.Time
	Stop()
}

type timeTicker struct {
	ticker *time.Ticker
}

func (t timeTicker) C() <-chan time.Time {
	return t.ticker.C
}

func (t timeTicker) Stop() {
	t.ticker.Stop()
}

type tickerFactory func(time.Duration) purgeTicker

func sessionPurgeWorker(logger *slog.Logger, sessions sessionPurger, interval time.Duration, recorder *metrics.Recorder) serverutil.Worker {
	return sessionPurgeWorkerWithTicker(logger, sessions, interval, recorder, func(d time.Duration) purgeTicker {
		return timeTicker{ticker: time.NewTicker(d)}
	})
}

// sessionPurgeWorkerWithTicker sweeps expired tokens on every tick until ctx
// is cancelled. Purge failures are logged and counted, never fatal.
func sessionPurgeWorkerWithTicker(
	logger *slog.Logger,
	sessions sessionPurger,
	interval time.Duration,
	recorder *metrics.Recorder,
	newTicker tickerFactory,
) serverutil.Worker {
	return func(ctx context.Context) error {
		if sessions == nil || interval <= 0 {
			<-ctx.Done()
			return nil
		}
		if recorder == nil {
			recorder = metrics.Default()
		}
		ticker := newTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C():
				err := sessions.PurgeExpired(ctx)
				recorder.ObserveSessionPurge(err)
				if err != nil && logger != nil && ctx.Err() == nil {
					logger.Error("failed to purge expired sessions", "error", err)
				}
			}
		}
	}
}
