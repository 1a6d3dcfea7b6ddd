package workers

import (
	"code-mentor/contract"
	"context"
	"log/slog"
	"time"
)

// StoreHealthWorker pings the remote store on a fixed interval and reports
// reachability. It never fails on an unreachable store, it only reports it.
type StoreHealthWorker struct {
	log      *slog.Logger
	store    contract.RemoteStore
	interval time.Duration
	report   func(healthy bool)
}

func NewStoreHealthWorker(log *slog.Logger, store contract.RemoteStore, interval time.Duration, report func(healthy bool)) *StoreHealthWorker {
	return &StoreHealthWorker{log: log, store: store, interval: interval, report: report}
}

func (w *StoreHealthWorker) Run(ctx context.Context) error {
	w.log.Info("Starting remote store health worker", "interval", w.interval)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	healthy := true
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, w.interval)
			err := w.store.Ping(pingCtx)
			cancel()
			if err != nil && healthy {
				w.log.Warn("Remote store unreachable", "err", err)
			}
			if err == nil && !healthy {
				w.log.Info("Remote store reachable again")
			}
			healthy = err == nil
			w.report(healthy)
		}
	}
}
