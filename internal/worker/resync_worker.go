package worker

import (
	"context"
	"time"

	"taskBoard/internal/logger"

	"go.uber.org/zap"
)

// Loader перечитывает доску из хранилища.
type Loader interface {
	Load(ctx context.Context) error
}

// ResyncWorker периодически сверяет доску с хранилищем на случай потерянных уведомлений.
type ResyncWorker struct {
	loader   Loader
	interval time.Duration
}

func NewResyncWorker(loader Loader, interval *time.Duration) *ResyncWorker {
	var intervalToSet time.Duration
	if interval == nil || *interval <= 0 {
		intervalToSet = 5 * time.Minute
	} else {
		intervalToSet = *interval
	}
	return &ResyncWorker{
		loader:   loader,
		interval: intervalToSet,
	}
}

func (w *ResyncWorker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			logger.Debug("Worker: Фоновая сверка доски", zap.Time("started_at", time.Now()))
			w.Check(ctx)
		case <-ctx.Done():
			logger.Info("Worker: Фоновая сверка останавливается")
			return
		}
	}
}

func (w *ResyncWorker) Check(ctx context.Context) {
	start := time.Now()

	if err := w.loader.Load(ctx); err != nil {
		logger.Warn("Worker: Ошибка сверки доски", zap.Error(err))
		return
	}

	logger.Debug("Worker: Завершение сверки доски", zap.Duration("ms", time.Since(start)))
}
