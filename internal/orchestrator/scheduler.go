package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kirillm/ads-engine/internal/domain"
	"github.com/kirillm/ads-engine/pkg/utils"
)

// UserSource интерфейс для выборки пользователей, которым нужны прогоны
type UserSource interface {
	UsersWithActiveGoals() ([]int64, error)
}

// Scheduler периодически запускает прогоны для всех пользователей
// с активными целями
type Scheduler struct {
	orchestrator *Orchestrator
	users        UserSource
	logger       *utils.Logger
	interval     time.Duration

	ticker    *time.Ticker
	stopChan  chan struct{}
	isRunning bool
}

// NewScheduler создает новый планировщик
func NewScheduler(orchestrator *Orchestrator, users UserSource, logger *utils.Logger, interval time.Duration) *Scheduler {
	return &Scheduler{
		orchestrator: orchestrator,
		users:        users,
		logger:       logger,
		interval:     interval,
		stopChan:     make(chan struct{}),
	}
}

// Start запускает планировщик
func (s *Scheduler) Start(ctx context.Context) error {
	if s.isRunning {
		return fmt.Errorf("scheduler already running")
	}

	s.isRunning = true
	s.ticker = time.NewTicker(s.interval)
	s.logger.Info("🚀 Scheduler started (interval: %v)", s.interval)

	go s.run(ctx)

	return nil
}

// Stop останавливает планировщик
func (s *Scheduler) Stop() {
	if !s.isRunning {
		return
	}

	s.logger.Info("🛑 Stopping scheduler...")
	close(s.stopChan)
	s.ticker.Stop()
	s.isRunning = false
	s.logger.Info("✅ Scheduler stopped")
}

// run основной цикл планировщика
func (s *Scheduler) run(ctx context.Context) {
	for {
		select {
		case <-s.ticker.C:
			s.runBatch(ctx)

		case <-s.stopChan:
			return

		case <-ctx.Done():
			return
		}
	}
}

// runBatch выполняет прогон для каждого пользователя с активными целями.
// Пользователи обрабатываются последовательно: один рекламный аккаунт
// не должен ловить rate limit из-за соседей по батчу.
func (s *Scheduler) runBatch(ctx context.Context) {
	users, err := s.users.UsersWithActiveGoals()
	if err != nil {
		s.logger.Error("❌ Failed to list users for scheduled batch: %v", err)
		return
	}

	s.logger.Info("⏰ Scheduled batch started: %d users", len(users))

	for _, userID := range users {
		_, err := s.orchestrator.RunOrchestration(ctx, userID, false, domain.RunScheduled)
		switch {
		case errors.Is(err, domain.ErrEngineStopped):
			s.logger.Warn("⛔ Engine stopped, aborting scheduled batch")
			return
		case errors.Is(err, domain.ErrAlreadyRunning):
			s.logger.Warn("⚠️ Run already in progress for user %d, skipping", userID)
		case err != nil:
			s.logger.Error("❌ Scheduled run failed for user %d: %v", userID, err)
		}

		if ctx.Err() != nil {
			return
		}
	}
}
