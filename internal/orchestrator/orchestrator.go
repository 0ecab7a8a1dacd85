package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kirillm/ads-engine/internal/domain"
	"github.com/kirillm/ads-engine/internal/strategy"
	"github.com/kirillm/ads-engine/pkg/utils"
)

// Storage интерфейс для работы с хранилищем движка
type Storage interface {
	Goal(key string) (*domain.Goal, error)
	ActiveGoalSettings(userID int64) ([]domain.GoalSettings, error)
	ReadyCreatives(userID int64, goalKey string) ([]domain.Creative, error)
	Campaign(userID int64, goalKey, role string) (*domain.Campaign, error)
	SaveCampaign(campaign *domain.Campaign) error
	UpdateCampaignBudget(id int64, dailyBudget float64, scaledAt time.Time) error
	SaveAdSet(adSet *domain.AdSet) error
	AdSetsByCampaign(campaignID int64) ([]domain.AdSet, error)
	UpdateAdSetStatus(id int64, status string) error
	Credential(userID int64) (*domain.PlatformCredential, error)
	UserMode(userID int64) (string, error)
	StartRun(run *domain.OrchestratorRun) error
	FinishRun(run *domain.OrchestratorRun) error
	AppendAction(action *domain.Action) error
}

// Platform интерфейс клиента рекламной платформы
type Platform interface {
	CreateCampaign(ctx context.Context, cred *domain.PlatformCredential, name, objective string, dailyBudget float64) (string, error)
	CreateAdSet(ctx context.Context, cred *domain.PlatformCredential, platformCampaignID string, creative domain.Creative) (string, error)
	UpdateCampaignBudget(ctx context.Context, cred *domain.PlatformCredential, platformCampaignID string, dailyBudget float64) error
	PauseAdSet(ctx context.Context, cred *domain.PlatformCredential, platformAdSetID string) error
	FetchMetrics(ctx context.Context, cred *domain.PlatformCredential, adSetIDs []string, lookback time.Duration) ([]domain.AdSetMetric, error)
}

// Notifier интерфейс для уведомлений оператора
type Notifier interface {
	NotifyRunCompleted(run *domain.OrchestratorRun)
	NotifyRunFailed(userID int64, reason string)
}

// Options конфигурация orchestrator
type Options struct {
	Thresholds      strategy.Thresholds
	Modes           map[string]strategy.ModeSettings
	DefaultMode     string
	LookbackWindow  time.Duration
	AutoPause       bool
	LoserSpendRatio float64 // множитель min_spend для правила остановки лузеров
}

// RunResult итог одного прогона: запись журнала и все принятые решения
type RunResult struct {
	Run     domain.OrchestratorRun
	Actions []domain.Action
}

// Orchestrator ядро движка оркестрации.
// Один вызов RunOrchestration обходит все активные цели пользователя,
// принимает решения по тестированию, промоушену, масштабированию и
// остановке, и записывает каждое решение в журнал прогона.
type Orchestrator struct {
	storage    Storage
	platform   Platform
	notifier   Notifier
	killSwitch *KillSwitch
	logger     *utils.Logger
	opts       Options
	now        func() time.Time
}

// New создает новый orchestrator
func New(storage Storage, platform Platform, notifier Notifier, killSwitch *KillSwitch, logger *utils.Logger, opts Options) *Orchestrator {
	if opts.LoserSpendRatio <= 0 {
		opts.LoserSpendRatio = 2
	}
	if opts.DefaultMode == "" {
		opts.DefaultMode = domain.ModePulse
	}
	return &Orchestrator{
		storage:    storage,
		platform:   platform,
		notifier:   notifier,
		killSwitch: killSwitch,
		logger:     logger,
		opts:       opts,
		now:        time.Now,
	}
}

// runContext общее состояние одного прогона
type runContext struct {
	run      *domain.OrchestratorRun
	actions  []domain.Action
	cred     *domain.PlatformCredential
	mode     strategy.ModeSettings
	executor executor
}

// RunOrchestration выполняет один прогон для пользователя.
// Dry-run проходит тот же путь принятия решений, но не выполняет ни одной
// мутации на платформе и в таблицах кампаний, только пишет журнал.
func (o *Orchestrator) RunOrchestration(ctx context.Context, userID int64, dryRun bool, trigger string) (*RunResult, error) {
	if o.killSwitch != nil && o.killSwitch.IsStopped() {
		return nil, domain.ErrEngineStopped
	}

	runType := trigger
	if dryRun {
		runType = domain.RunDryRun
	}

	run := &domain.OrchestratorRun{
		ID:        uuid.NewString(),
		UserID:    userID,
		RunType:   runType,
		Status:    domain.RunStatusRunning,
		StartedAt: o.now(),
	}

	if err := o.storage.StartRun(run); err != nil {
		return nil, err
	}

	o.logger.Info("🚀 Run %s started for user %d (type: %s)", run.ID, userID, runType)

	rc := &runContext{run: run}
	if dryRun {
		rc.executor = &dryRunExecutor{}
	} else {
		rc.executor = &liveExecutor{storage: o.storage, platform: o.platform, now: o.now}
	}

	if err := o.prepare(rc); err != nil {
		o.finish(rc, domain.RunStatusFailed)
		if o.notifier != nil {
			o.notifier.NotifyRunFailed(userID, err.Error())
		}
		return &RunResult{Run: *run, Actions: rc.actions}, err
	}

	settings, err := o.storage.ActiveGoalSettings(userID)
	if err != nil {
		o.recordAction(rc, domain.Action{
			ActionType: domain.ActionError,
			Status:     domain.ActionFailed,
			Message:    fmt.Sprintf("failed to load goal settings: %v", err),
		})
		o.finish(rc, domain.RunStatusFailed)
		return &RunResult{Run: *run, Actions: rc.actions}, err
	}

	for _, gs := range settings {
		// Ошибка одной цели не прерывает прогон по остальным
		if err := o.processGoal(ctx, rc, gs); err != nil {
			run.ErrorsCount++
			o.logger.Error("❌ Goal %s failed for user %d: %v", gs.GoalKey, userID, err)
			o.recordAction(rc, domain.Action{
				ActionType: domain.ActionError,
				GoalKey:    gs.GoalKey,
				Status:     domain.ActionFailed,
				Message:    err.Error(),
			})
		}
	}

	status := domain.RunStatusCompleted
	if run.ErrorsCount > 0 {
		status = domain.RunStatusCompletedWithErrors
	}
	o.finish(rc, status)

	o.logger.Info("📊 Run %s finished: %s (created=%d promoted=%d scaled=%d paused=%d errors=%d)",
		run.ID, run.Status, run.CampaignsCreated, run.WinnersPromoted,
		run.BudgetsScaled, run.AdSetsPaused, run.ErrorsCount)

	if o.notifier != nil {
		o.notifier.NotifyRunCompleted(run)
	}

	return &RunResult{Run: *run, Actions: rc.actions}, nil
}

// prepare проверяет предусловия прогона: токен платформы и режим пользователя
func (o *Orchestrator) prepare(rc *runContext) error {
	cred, err := o.storage.Credential(rc.run.UserID)
	if err != nil {
		o.recordAction(rc, domain.Action{
			ActionType: domain.ActionError,
			Status:     domain.ActionFailed,
			Message:    "no usable platform credential",
			Details:    detailsJSON(map[string]interface{}{"reason": domain.ReasonNoCredential}),
		})
		return fmt.Errorf("credential check failed for user %d: %w", rc.run.UserID, err)
	}
	if !cred.ExpiresAt.IsZero() && o.now().After(cred.ExpiresAt) {
		o.recordAction(rc, domain.Action{
			ActionType: domain.ActionError,
			Status:     domain.ActionFailed,
			Message:    "platform credential expired",
			Details:    detailsJSON(map[string]interface{}{"expired_at": cred.ExpiresAt}),
		})
		return fmt.Errorf("credential check failed for user %d: %w", rc.run.UserID, domain.ErrCredentialExpired)
	}
	rc.cred = cred

	modeName, err := o.storage.UserMode(rc.run.UserID)
	if err != nil {
		// Пользователь без профиля работает в режиме по умолчанию
		modeName = o.opts.DefaultMode
	}
	mode, ok := o.opts.Modes[modeName]
	if !ok {
		return fmt.Errorf("%w: unknown operating mode %q", domain.ErrInvalidInput, modeName)
	}
	rc.mode = mode

	return nil
}

// processGoal выполняет полный цикл решений по одной цели.
// Порядок фиксирован: проверки применимости, создание тестовой кампании,
// выбор победителя, масштабирование, остановка лузеров, ротация.
func (o *Orchestrator) processGoal(ctx context.Context, rc *runContext, gs domain.GoalSettings) error {
	goal, err := o.storage.Goal(gs.GoalKey)
	if err != nil {
		return fmt.Errorf("failed to load goal %s: %w", gs.GoalKey, err)
	}

	hasScaling := true
	if _, err := o.storage.Campaign(gs.UserID, gs.GoalKey, domain.RoleScaling); err == domain.ErrNotFound {
		hasScaling = false
	} else if err != nil {
		return fmt.Errorf("failed to load scaling campaign: %w", err)
	}

	// Выключенное тестирование при живой scaling-кампании не повод
	// бросать цель: победитель уже выбран, управляем его бюджетом
	if !gs.TestingEnabled && !hasScaling {
		o.recordAction(rc, domain.Action{
			ActionType: domain.ActionSkip,
			GoalKey:    gs.GoalKey,
			Status:     domain.ActionSkipped,
			Message:    "testing disabled for this goal",
			Details:    detailsJSON(map[string]interface{}{"reason": domain.ReasonTestingDisabled}),
		})
		return nil
	}

	creatives, err := o.storage.ReadyCreatives(gs.UserID, gs.GoalKey)
	if err != nil {
		return fmt.Errorf("failed to load creatives: %w", err)
	}
	if len(creatives) == 0 {
		o.recordAction(rc, domain.Action{
			ActionType: domain.ActionSkip,
			GoalKey:    gs.GoalKey,
			Status:     domain.ActionSkipped,
			Message:    "no ready creatives for this goal",
			Details:    detailsJSON(map[string]interface{}{"reason": domain.ReasonMissingCreatives}),
		})
		return nil
	}

	testing, err := o.storage.Campaign(gs.UserID, gs.GoalKey, domain.RoleTesting)
	if err == domain.ErrNotFound {
		if gs.TestingEnabled {
			// Свежая кампания еще не набрала метрик, оценивать ее рано
			return o.createTestingCampaign(ctx, rc, gs, goal, creatives)
		}
		testing = nil
	} else if err != nil {
		return fmt.Errorf("failed to load testing campaign: %w", err)
	}

	var metrics []domain.AdSetMetric
	var adSets []domain.AdSet
	if testing != nil {
		metrics, adSets, err = o.collectMetrics(ctx, rc, testing)
		if err != nil {
			return fmt.Errorf("failed to collect metrics for goal %s: %w", gs.GoalKey, err)
		}

		if winner := strategy.Evaluate(metrics, o.opts.Thresholds); winner != nil {
			if err := o.promoteWinner(ctx, rc, gs, goal, creatives, winner); err != nil {
				return err
			}
		}
	}

	if err := o.scaleBudget(ctx, rc, gs, metrics); err != nil {
		return err
	}

	if testing != nil {
		if o.opts.AutoPause {
			if err := o.pauseLosers(ctx, rc, gs, metrics, adSets); err != nil {
				return err
			}
		}
		if gs.TestingEnabled {
			if err := o.rotateCreatives(ctx, rc, gs, testing, adSets, creatives); err != nil {
				return err
			}
		}
	}

	return nil
}

// createTestingCampaign создает тестовую кампанию с ad-set'ом на каждый
// готовый креатив
func (o *Orchestrator) createTestingCampaign(ctx context.Context, rc *runContext, gs domain.GoalSettings, goal *domain.Goal, creatives []domain.Creative) error {
	budget := strategy.TestingBudget(rc.mode, gs.BudgetHint)
	campaign := &domain.Campaign{
		UserID:      gs.UserID,
		GoalKey:     gs.GoalKey,
		Role:        domain.RoleTesting,
		DailyBudget: budget,
		Status:      domain.StatusActive,
		CreatedAt:   o.now(),
	}

	name := fmt.Sprintf("%s testing u%d", gs.GoalKey, gs.UserID)
	if err := rc.executor.CreateCampaign(ctx, rc.cred, campaign, name, goal.CoreSignal); err != nil {
		return fmt.Errorf("failed to create testing campaign: %w", err)
	}

	created := 0
	for _, creative := range creatives {
		adSet := &domain.AdSet{
			CampaignID: campaign.ID,
			CreativeID: creative.ID,
			Status:     domain.StatusActive,
			CreatedAt:  o.now(),
		}
		if err := rc.executor.CreateAdSet(ctx, rc.cred, adSet, creative, campaign.PlatformCampaignID); err != nil {
			return fmt.Errorf("failed to create ad-set for creative %d: %w", creative.ID, err)
		}
		created++
	}

	rc.run.CampaignsCreated++
	o.recordAction(rc, domain.Action{
		ActionType: domain.ActionCreateTestingCampaign,
		GoalKey:    gs.GoalKey,
		Status:     domain.ActionSuccess,
		Message:    fmt.Sprintf("testing campaign created with %d ad-sets", created),
		Details: detailsJSON(map[string]interface{}{
			"campaign_id":  campaign.PlatformCampaignID,
			"daily_budget": budget,
			"ad_sets":      created,
		}),
	})
	o.logger.Info("✅ Testing campaign for goal %s created (%d ad-sets, budget %.2f)", gs.GoalKey, created, budget)
	return nil
}

// collectMetrics запрашивает метрики активных ad-set'ов кампании
// и проставляет им креативы по локальному реестру
func (o *Orchestrator) collectMetrics(ctx context.Context, rc *runContext, campaign *domain.Campaign) ([]domain.AdSetMetric, []domain.AdSet, error) {
	adSets, err := o.storage.AdSetsByCampaign(campaign.ID)
	if err != nil {
		return nil, nil, err
	}

	creativeByAdSet := make(map[string]int64, len(adSets))
	var ids []string
	for _, as := range adSets {
		if as.Status != domain.StatusActive {
			continue
		}
		ids = append(ids, as.PlatformAdSetID)
		creativeByAdSet[as.PlatformAdSetID] = as.CreativeID
	}

	metrics, err := o.platform.FetchMetrics(ctx, rc.cred, ids, o.opts.LookbackWindow)
	if err != nil {
		return nil, nil, err
	}

	for i := range metrics {
		metrics[i].CreativeID = creativeByAdSet[metrics[i].AdSetID]
	}
	return metrics, adSets, nil
}

// promoteWinner создает scaling-кампанию для креатива-победителя
func (o *Orchestrator) promoteWinner(ctx context.Context, rc *runContext, gs domain.GoalSettings, goal *domain.Goal, creatives []domain.Creative, winner *strategy.WinnerVerdict) error {
	if !gs.ScalingEnabled || !gs.AutoScale {
		return nil
	}

	// Уже промоутили: на пару (цель, роль) существует не больше одной кампании
	if _, err := o.storage.Campaign(gs.UserID, gs.GoalKey, domain.RoleScaling); err == nil {
		return nil
	} else if err != domain.ErrNotFound {
		return fmt.Errorf("failed to load scaling campaign: %w", err)
	}

	var creative *domain.Creative
	for i := range creatives {
		if creatives[i].ID == winner.CreativeID {
			creative = &creatives[i]
			break
		}
	}
	if creative == nil {
		return fmt.Errorf("winner creative %d is no longer available", winner.CreativeID)
	}

	budget := strategy.ScalingBudget(rc.mode)
	campaign := &domain.Campaign{
		UserID:      gs.UserID,
		GoalKey:     gs.GoalKey,
		Role:        domain.RoleScaling,
		DailyBudget: budget,
		Status:      domain.StatusActive,
		CreatedAt:   o.now(),
	}

	name := fmt.Sprintf("%s scaling u%d", gs.GoalKey, gs.UserID)
	if err := rc.executor.CreateCampaign(ctx, rc.cred, campaign, name, goal.CoreSignal); err != nil {
		return fmt.Errorf("failed to create scaling campaign: %w", err)
	}

	adSet := &domain.AdSet{
		CampaignID: campaign.ID,
		CreativeID: creative.ID,
		Status:     domain.StatusActive,
		CreatedAt:  o.now(),
	}
	if err := rc.executor.CreateAdSet(ctx, rc.cred, adSet, *creative, campaign.PlatformCampaignID); err != nil {
		return fmt.Errorf("failed to create scaling ad-set: %w", err)
	}

	rc.run.WinnersPromoted++
	o.recordAction(rc, domain.Action{
		ActionType: domain.ActionPromoteWinner,
		GoalKey:    gs.GoalKey,
		Status:     domain.ActionSuccess,
		Message:    fmt.Sprintf("creative %d promoted to scaling", creative.ID),
		Details: detailsJSON(map[string]interface{}{
			"creative_id":  creative.ID,
			"rate":         winner.Rate,
			"median_rate":  winner.MedianRate,
			"daily_budget": budget,
		}),
	})
	o.logger.Info("🏆 Winner promoted for goal %s: creative %d (rate %.4f vs median %.4f)",
		gs.GoalKey, creative.ID, winner.Rate, winner.MedianRate)
	return nil
}

// scaleBudget решает, поднимать ли бюджет scaling-кампании
func (o *Orchestrator) scaleBudget(ctx context.Context, rc *runContext, gs domain.GoalSettings, testingMetrics []domain.AdSetMetric) error {
	if !gs.ScalingEnabled || !gs.AutoScale {
		return nil
	}

	campaign, err := o.storage.Campaign(gs.UserID, gs.GoalKey, domain.RoleScaling)
	if err == domain.ErrNotFound {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load scaling campaign: %w", err)
	}
	if campaign.Status != domain.StatusActive {
		return nil
	}

	scalingMetrics, _, err := o.collectMetrics(ctx, rc, campaign)
	if err != nil {
		return fmt.Errorf("failed to collect scaling metrics: %w", err)
	}

	currentRate, ok := aggregateRate(scalingMetrics)
	if !ok {
		return nil
	}
	baseline, ok := strategy.Baseline(testingMetrics, o.opts.Thresholds)
	if !ok {
		return nil
	}

	verdict := strategy.Decide(campaign, currentRate, baseline, o.opts.Thresholds, rc.mode, o.now())
	switch verdict.Kind {
	case strategy.VerdictScale:
		if err := rc.executor.UpdateBudget(ctx, rc.cred, campaign, verdict.NewBudget); err != nil {
			return fmt.Errorf("failed to scale budget: %w", err)
		}
		rc.run.BudgetsScaled++
		o.recordAction(rc, domain.Action{
			ActionType: domain.ActionScaleBudget,
			GoalKey:    gs.GoalKey,
			Status:     domain.ActionSuccess,
			Message:    fmt.Sprintf("daily budget raised to %.2f", verdict.NewBudget),
			Details: detailsJSON(map[string]interface{}{
				"campaign_id":  campaign.PlatformCampaignID,
				"new_budget":   verdict.NewBudget,
				"current_rate": currentRate,
				"baseline":     baseline,
			}),
		})
		o.logger.Info("📈 Budget scaled for goal %s: %.2f", gs.GoalKey, verdict.NewBudget)
	case strategy.VerdictBlocked:
		o.recordAction(rc, domain.Action{
			ActionType: domain.ActionScaleBudget,
			GoalKey:    gs.GoalKey,
			Status:     domain.ActionSkipped,
			Message:    fmt.Sprintf("scaling blocked: %s", verdict.Reason),
			Details:    detailsJSON(map[string]interface{}{"reason": verdict.Reason}),
		})
	}
	return nil
}

// pauseLosers останавливает ad-set'ы, потратившие бюджет без единого сигнала
func (o *Orchestrator) pauseLosers(ctx context.Context, rc *runContext, gs domain.GoalSettings, metrics []domain.AdSetMetric, adSets []domain.AdSet) error {
	minLoserSpend := o.opts.Thresholds.MinSpend * o.opts.LoserSpendRatio

	adSetByPlatformID := make(map[string]domain.AdSet, len(adSets))
	for _, as := range adSets {
		adSetByPlatformID[as.PlatformAdSetID] = as
	}

	for _, m := range metrics {
		if m.CoreSignalCount != 0 || m.Spend < minLoserSpend {
			continue
		}
		adSet, ok := adSetByPlatformID[m.AdSetID]
		if !ok || adSet.Status != domain.StatusActive {
			continue
		}

		if err := rc.executor.PauseAdSet(ctx, rc.cred, &adSet); err != nil {
			return fmt.Errorf("failed to pause ad-set %s: %w", m.AdSetID, err)
		}
		rc.run.AdSetsPaused++
		o.recordAction(rc, domain.Action{
			ActionType: domain.ActionPauseAdSet,
			GoalKey:    gs.GoalKey,
			Status:     domain.ActionSuccess,
			Message:    fmt.Sprintf("ad-set %s paused: spent %.2f with zero signals", m.AdSetID, m.Spend),
			Details: detailsJSON(map[string]interface{}{
				"adset_id":    m.AdSetID,
				"creative_id": m.CreativeID,
				"spend":       m.Spend,
			}),
		})
		o.logger.Info("⏸ Ad-set %s paused for goal %s (spend %.2f, 0 signals)", m.AdSetID, gs.GoalKey, m.Spend)
	}
	return nil
}

// rotateCreatives добавляет в старую тестовую кампанию еще не испытанные
// креативы. Работает только в режимах с периодом ротации.
func (o *Orchestrator) rotateCreatives(ctx context.Context, rc *runContext, gs domain.GoalSettings, campaign *domain.Campaign, adSets []domain.AdSet, creatives []domain.Creative) error {
	period, ok := strategy.RotationPeriod(rc.mode)
	if !ok {
		return nil
	}
	if o.now().Sub(campaign.CreatedAt) < period {
		return nil
	}

	tested := make(map[int64]bool, len(adSets))
	for _, as := range adSets {
		tested[as.CreativeID] = true
	}

	added := 0
	for _, creative := range creatives {
		if tested[creative.ID] {
			continue
		}
		adSet := &domain.AdSet{
			CampaignID: campaign.ID,
			CreativeID: creative.ID,
			Status:     domain.StatusActive,
			CreatedAt:  o.now(),
		}
		if err := rc.executor.CreateAdSet(ctx, rc.cred, adSet, creative, campaign.PlatformCampaignID); err != nil {
			return fmt.Errorf("failed to rotate in creative %d: %w", creative.ID, err)
		}
		added++
	}

	if added > 0 {
		o.recordAction(rc, domain.Action{
			ActionType: domain.ActionRotateCreatives,
			GoalKey:    gs.GoalKey,
			Status:     domain.ActionSuccess,
			Message:    fmt.Sprintf("%d fresh creatives rotated into testing", added),
			Details:    detailsJSON(map[string]interface{}{"added": added}),
		})
		o.logger.Info("🔄 Rotated %d creatives into testing for goal %s", added, gs.GoalKey)
	}
	return nil
}

// recordAction пишет решение в журнал и в локальный список результата прогона
func (o *Orchestrator) recordAction(rc *runContext, action domain.Action) {
	action.RunID = rc.run.ID
	action.CreatedAt = o.now()
	if err := o.storage.AppendAction(&action); err != nil {
		o.logger.Error("⚠️ Failed to append action to run %s: %v", rc.run.ID, err)
	}
	rc.actions = append(rc.actions, action)
}

// finish закрывает прогон в журнале
func (o *Orchestrator) finish(rc *runContext, status string) {
	rc.run.Status = status
	rc.run.CompletedAt = o.now()
	if err := o.storage.FinishRun(rc.run); err != nil {
		o.logger.Error("⚠️ Failed to finish run %s: %v", rc.run.ID, err)
	}
}

// aggregateRate считает суммарный rate по набору метрик
func aggregateRate(metrics []domain.AdSetMetric) (float64, bool) {
	var spend float64
	var signals int64
	for _, m := range metrics {
		spend += m.Spend
		signals += m.CoreSignalCount
	}
	if spend <= 0 {
		return 0, false
	}
	return float64(signals) / spend, true
}

func detailsJSON(v map[string]interface{}) string {
	data, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(data)
}
