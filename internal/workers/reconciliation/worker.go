// Package reconciliation runs the scheduled sweep that finalizes
// settlements left in the pending state.
package reconciliation

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/escrow-service/escrow_service/internal/domain/services/settlement"
	"github.com/escrow-service/escrow_service/internal/infrastructure/config"
	"github.com/escrow-service/escrow_service/pkg/metrics"
)

type Worker struct {
	service *settlement.Service
	cfg     config.SettlementConfig
	cron    *cron.Cron
	logger  *zap.Logger
}

func NewWorker(service *settlement.Service, cfg config.SettlementConfig, logger *zap.Logger) *Worker {
	return &Worker{
		service: service,
		cfg:     cfg,
		cron:    cron.New(),
		logger:  logger,
	}
}

func (w *Worker) Start() error {
	schedule := w.cfg.ReconciliationSchedule
	if schedule == "" {
		schedule = "*/5 * * * *"
	}

	_, err := w.cron.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()

		maxAge := time.Duration(w.cfg.ReconciliationMaxAge) * time.Hour
		resolved, stuck, err := w.service.ResolvePending(ctx, maxAge)
		if err != nil {
			metrics.ReconciliationRunsTotal.WithLabelValues("error").Inc()
			w.logger.Error("Reconciliation sweep failed", zap.Error(err))
			return
		}

		metrics.ReconciliationRunsTotal.WithLabelValues("ok").Inc()
		if resolved > 0 || stuck > 0 {
			w.logger.Info("Reconciliation sweep finished",
				zap.Int("resolved", resolved),
				zap.Int("stuck", stuck))
		}
	})
	if err != nil {
		return err
	}

	w.cron.Start()
	w.logger.Info("Reconciliation worker started",
		zap.String("schedule", schedule))
	return nil
}

func (w *Worker) Stop() {
	w.cron.Stop()
	w.logger.Info("Reconciliation worker stopped")
}
