// Package funding_monitor polls the escrow account's on-chain balances on
// a fixed interval and keeps the cached funding snapshot warm.
package funding_monitor

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/escrow-service/escrow_service/internal/domain/services/funding"
)

type Worker struct {
	service  *funding.Service
	interval time.Duration
	logger   *zap.Logger
	stop     chan struct{}
	done     chan struct{}
}

func NewWorker(service *funding.Service, interval time.Duration, logger *zap.Logger) *Worker {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Worker{
		service:  service,
		interval: interval,
		logger:   logger,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

func (w *Worker) Start() {
	go w.run()
	w.logger.Info("Funding monitor started",
		zap.Duration("interval", w.interval))
}

func (w *Worker) run() {
	defer close(w.done)

	// one immediate snapshot so the cache is warm before the first tick
	w.poll()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stop:
			return
		case <-ticker.C:
			w.poll()
		}
	}
}

func (w *Worker) poll() {
	ctx, cancel := context.WithTimeout(context.Background(), w.interval)
	defer cancel()

	snapshot, err := w.service.Snapshot(ctx)
	if err != nil {
		w.logger.Error("Escrow funding poll failed", zap.Error(err))
		return
	}

	w.logger.Debug("Escrow funding poll finished",
		zap.Int("available_tokens", len(snapshot.AvailableTokens)))
}

func (w *Worker) Stop() {
	close(w.stop)
	<-w.done
	w.logger.Info("Funding monitor stopped")
}
