// Package services содержит фоновый процесс отзыва истёкших подписок.
package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/Maksim200738-droid/rockvpn/internal/lib/metrics"
	"github.com/Maksim200738-droid/rockvpn/internal/lib/sl"
	"github.com/Maksim200738-droid/rockvpn/internal/models"
)

// reasonExpired причина отзыва, передаваемая координатору.
const reasonExpired = "expired"

// Lifecycle операции координатора, нужные для отзыва.
type Lifecycle interface {
	AllActive(ctx context.Context) ([]models.Subscription, error)
	Revoke(ctx context.Context, subscriptionID int64, reason string) error
}

// SweepResult итог одного прохода.
type SweepResult struct {
	Checked int
	Expired int
	Revoked int
	Failed  int
}

// SchedulerService периодически отзывает подписки, срок которых вышел.
type SchedulerService struct {
	lifecycle Lifecycle
	interval  time.Duration
	log       *slog.Logger
	now       func() time.Time
}

// NewSchedulerService создает новый экземпляр SchedulerService.
func NewSchedulerService(lifecycle Lifecycle, interval time.Duration, log *slog.Logger) *SchedulerService {
	return &SchedulerService{
		lifecycle: lifecycle,
		interval:  interval,
		log:       log,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Run выполняет проход сразу, затем с интервалом до отмены ctx.
func (s *SchedulerService) Run(ctx context.Context) {
	s.log.Info("expiry sweeper started", slog.Duration("interval", s.interval))
	s.SweepOnce(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("expiry sweeper stopped")
			return
		case <-ticker.C:
			s.SweepOnce(ctx)
		}
	}
}

// SweepOnce отзывает все активные подписки с end_date <= now.
// Ошибка по одной подписке не прерывает проход. Курсор не хранится:
// всё, что не удалось отозвать, останется активным и попадёт в следующий проход.
func (s *SchedulerService) SweepOnce(ctx context.Context) SweepResult {
	metrics.Sweeps.Inc()

	var res SweepResult
	subs, err := s.lifecycle.AllActive(ctx)
	if err != nil {
		s.log.Error("failed to list active subscriptions", sl.Err(err))
		return res
	}
	res.Checked = len(subs)

	now := s.now()
	for i := range subs {
		sub := &subs[i]
		if !sub.IsExpiredAt(now) {
			// список отсортирован по end_date
			break
		}
		if ctx.Err() != nil {
			break
		}
		res.Expired++
		metrics.SweepExpired.Inc()

		if err := s.lifecycle.Revoke(ctx, sub.ID, reasonExpired); err != nil {
			res.Failed++
			s.log.Error("failed to revoke expired subscription",
				slog.Int64("subscription_id", sub.ID),
				slog.Int64("user_id", sub.UserID),
				sl.Err(err))
			continue
		}
		res.Revoked++
	}

	if res.Expired > 0 {
		s.log.Info("sweep finished",
			slog.Int("checked", res.Checked),
			slog.Int("expired", res.Expired),
			slog.Int("revoked", res.Revoked),
			slog.Int("failed", res.Failed))
	}
	return res
}
