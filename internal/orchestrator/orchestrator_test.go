package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/kirillm/ads-engine/internal/domain"
	"github.com/kirillm/ads-engine/internal/strategy"
	"github.com/kirillm/ads-engine/pkg/utils"
)

// ==================== FAKES ====================

type fakeStorage struct {
	goals     map[string]domain.Goal
	settings  []domain.GoalSettings
	creatives map[string][]domain.Creative
	campaigns map[string]*domain.Campaign
	adSets    map[int64][]domain.AdSet
	cred      *domain.PlatformCredential
	mode      string
	runs      map[string]*domain.OrchestratorRun
	actions   []domain.Action
	running   map[int64]bool
	nextID    int64
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{
		goals:     map[string]domain.Goal{},
		creatives: map[string][]domain.Creative{},
		campaigns: map[string]*domain.Campaign{},
		adSets:    map[int64][]domain.AdSet{},
		runs:      map[string]*domain.OrchestratorRun{},
		running:   map[int64]bool{},
		mode:      domain.ModeMomentum,
	}
}

func campaignKey(userID int64, goalKey, role string) string {
	return fmt.Sprintf("%d/%s/%s", userID, goalKey, role)
}

func (s *fakeStorage) Goal(key string) (*domain.Goal, error) {
	goal, ok := s.goals[key]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &goal, nil
}

func (s *fakeStorage) ActiveGoalSettings(userID int64) ([]domain.GoalSettings, error) {
	var active []domain.GoalSettings
	for _, gs := range s.settings {
		if gs.UserID == userID && gs.IsActive {
			active = append(active, gs)
		}
	}
	return active, nil
}

func (s *fakeStorage) ReadyCreatives(userID int64, goalKey string) ([]domain.Creative, error) {
	return s.creatives[goalKey], nil
}

func (s *fakeStorage) Campaign(userID int64, goalKey, role string) (*domain.Campaign, error) {
	c, ok := s.campaigns[campaignKey(userID, goalKey, role)]
	if !ok {
		return nil, domain.ErrNotFound
	}
	copied := *c
	return &copied, nil
}

func (s *fakeStorage) SaveCampaign(campaign *domain.Campaign) error {
	s.nextID++
	campaign.ID = s.nextID
	copied := *campaign
	s.campaigns[campaignKey(campaign.UserID, campaign.GoalKey, campaign.Role)] = &copied
	return nil
}

func (s *fakeStorage) UpdateCampaignBudget(id int64, dailyBudget float64, scaledAt time.Time) error {
	for _, c := range s.campaigns {
		if c.ID == id {
			c.DailyBudget = dailyBudget
			c.LastScaledAt = scaledAt
			return nil
		}
	}
	return domain.ErrNotFound
}

func (s *fakeStorage) SaveAdSet(adSet *domain.AdSet) error {
	s.nextID++
	adSet.ID = s.nextID
	s.adSets[adSet.CampaignID] = append(s.adSets[adSet.CampaignID], *adSet)
	return nil
}

func (s *fakeStorage) AdSetsByCampaign(campaignID int64) ([]domain.AdSet, error) {
	return s.adSets[campaignID], nil
}

func (s *fakeStorage) UpdateAdSetStatus(id int64, status string) error {
	for campaignID, adSets := range s.adSets {
		for i := range adSets {
			if adSets[i].ID == id {
				s.adSets[campaignID][i].Status = status
				return nil
			}
		}
	}
	return domain.ErrNotFound
}

func (s *fakeStorage) Credential(userID int64) (*domain.PlatformCredential, error) {
	if s.cred == nil {
		return nil, domain.ErrNoCredential
	}
	return s.cred, nil
}

func (s *fakeStorage) UserMode(userID int64) (string, error) {
	if s.mode == "" {
		return "", domain.ErrNotFound
	}
	return s.mode, nil
}

func (s *fakeStorage) StartRun(run *domain.OrchestratorRun) error {
	if s.running[run.UserID] {
		return domain.ErrAlreadyRunning
	}
	s.running[run.UserID] = true
	copied := *run
	s.runs[run.ID] = &copied
	return nil
}

func (s *fakeStorage) FinishRun(run *domain.OrchestratorRun) error {
	s.running[run.UserID] = false
	copied := *run
	s.runs[run.ID] = &copied
	return nil
}

func (s *fakeStorage) AppendAction(action *domain.Action) error {
	s.nextID++
	action.ID = s.nextID
	s.actions = append(s.actions, *action)
	return nil
}

type fakePlatform struct {
	metrics          map[string]domain.AdSetMetric
	createdCampaigns int
	createdAdSets    int
	budgetUpdates    map[string]float64
	paused           []string
	failCreate       bool
}

func newFakePlatform() *fakePlatform {
	return &fakePlatform{
		metrics:       map[string]domain.AdSetMetric{},
		budgetUpdates: map[string]float64{},
	}
}

func (p *fakePlatform) CreateCampaign(ctx context.Context, cred *domain.PlatformCredential, name, objective string, dailyBudget float64) (string, error) {
	if p.failCreate {
		return "", domain.ErrPlatformAPI
	}
	p.createdCampaigns++
	return fmt.Sprintf("pc-%d", p.createdCampaigns), nil
}

func (p *fakePlatform) CreateAdSet(ctx context.Context, cred *domain.PlatformCredential, platformCampaignID string, creative domain.Creative) (string, error) {
	p.createdAdSets++
	return fmt.Sprintf("pa-%d", p.createdAdSets), nil
}

func (p *fakePlatform) UpdateCampaignBudget(ctx context.Context, cred *domain.PlatformCredential, platformCampaignID string, dailyBudget float64) error {
	p.budgetUpdates[platformCampaignID] = dailyBudget
	return nil
}

func (p *fakePlatform) PauseAdSet(ctx context.Context, cred *domain.PlatformCredential, platformAdSetID string) error {
	p.paused = append(p.paused, platformAdSetID)
	return nil
}

func (p *fakePlatform) FetchMetrics(ctx context.Context, cred *domain.PlatformCredential, adSetIDs []string, lookback time.Duration) ([]domain.AdSetMetric, error) {
	var metrics []domain.AdSetMetric
	for _, id := range adSetIDs {
		if m, ok := p.metrics[id]; ok {
			metrics = append(metrics, m)
		}
	}
	return metrics, nil
}

// ==================== SETUP ====================

func testEngine(storage *fakeStorage, platform *fakePlatform) *Orchestrator {
	return New(storage, platform, nil, NewKillSwitch(), utils.NewLogger("error"), Options{
		Thresholds: strategy.Thresholds{
			MinSpend:       10,
			MinImpressions: 1000,
			ImprovementPct: 15,
		},
		Modes:          strategy.DefaultModes(),
		DefaultMode:    domain.ModePulse,
		LookbackWindow: 168 * time.Hour,
		AutoPause:      true,
	})
}

func seedUser(s *fakeStorage, goalKey string, creatives int) {
	s.goals[goalKey] = domain.Goal{Key: goalKey, Title: goalKey, CoreSignal: "signal_" + goalKey}
	s.settings = append(s.settings, domain.GoalSettings{
		UserID:         7,
		GoalKey:        goalKey,
		IsActive:       true,
		Priority:       3,
		AutoScale:      true,
		TestingEnabled: true,
		ScalingEnabled: true,
	})
	for i := 0; i < creatives; i++ {
		s.nextID++
		s.creatives[goalKey] = append(s.creatives[goalKey], domain.Creative{
			ID:      s.nextID,
			UserID:  7,
			GoalKey: goalKey,
			Type:    domain.CreativeVideo,
			URL:     fmt.Sprintf("https://cdn/%s/%d.mp4", goalKey, s.nextID),
			Status:  domain.CreativeReady,
		})
	}
	if s.cred == nil {
		s.cred = &domain.PlatformCredential{
			UserID:      7,
			AccountID:   "act_7",
			AccessToken: "tok",
			ExpiresAt:   time.Now().Add(24 * time.Hour),
		}
	}
}

// seedTestingCampaign создает тестовую кампанию с ad-set'ами и метриками
func seedTestingCampaign(s *fakeStorage, p *fakePlatform, goalKey string, spends []float64, signals []int64) {
	s.nextID++
	campaign := &domain.Campaign{
		ID:                 s.nextID,
		UserID:             7,
		GoalKey:            goalKey,
		Role:               domain.RoleTesting,
		PlatformCampaignID: "pc-testing-" + goalKey,
		DailyBudget:        20,
		Status:             domain.StatusActive,
		CreatedAt:          time.Now().Add(-72 * time.Hour),
	}
	s.campaigns[campaignKey(7, goalKey, domain.RoleTesting)] = campaign

	for i := range spends {
		creative := s.creatives[goalKey][i]
		s.nextID++
		platformID := fmt.Sprintf("pa-%s-%d", goalKey, i)
		s.adSets[campaign.ID] = append(s.adSets[campaign.ID], domain.AdSet{
			ID:              s.nextID,
			CampaignID:      campaign.ID,
			CreativeID:      creative.ID,
			PlatformAdSetID: platformID,
			Status:          domain.StatusActive,
		})
		p.metrics[platformID] = domain.AdSetMetric{
			AdSetID:         platformID,
			Spend:           spends[i],
			Impressions:     2000,
			CoreSignalCount: signals[i],
		}
	}
}

// ==================== TESTS ====================

func TestRunOrchestration_CreatesTestingCampaign(t *testing.T) {
	storage := newFakeStorage()
	platform := newFakePlatform()
	seedUser(storage, "streams", 3)

	result, err := testEngine(storage, platform).RunOrchestration(context.Background(), 7, false, domain.RunManual)
	if err != nil {
		t.Fatalf("RunOrchestration() error: %v", err)
	}

	if result.Run.CampaignsCreated != 1 {
		t.Errorf("campaigns created = %d, want 1", result.Run.CampaignsCreated)
	}
	if platform.createdAdSets != 3 {
		t.Errorf("ad-sets created on platform = %d, want 3", platform.createdAdSets)
	}
	campaign, err := storage.Campaign(7, "streams", domain.RoleTesting)
	if err != nil {
		t.Fatalf("testing campaign not persisted: %v", err)
	}
	if len(storage.adSets[campaign.ID]) != 3 {
		t.Errorf("ad-sets persisted = %d, want 3", len(storage.adSets[campaign.ID]))
	}
	if result.Run.Status != domain.RunStatusCompleted {
		t.Errorf("run status = %s, want completed", result.Run.Status)
	}
}

func TestRunOrchestration_SkipReasons(t *testing.T) {
	tests := []struct {
		name       string
		setup      func(s *fakeStorage)
		wantReason string
	}{
		{
			name:       "no ready creatives",
			setup:      func(s *fakeStorage) { seedUser(s, "streams", 0) },
			wantReason: domain.ReasonMissingCreatives,
		},
		{
			name: "testing disabled",
			setup: func(s *fakeStorage) {
				seedUser(s, "streams", 3)
				s.settings[0].TestingEnabled = false
			},
			wantReason: domain.ReasonTestingDisabled,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			storage := newFakeStorage()
			platform := newFakePlatform()
			tt.setup(storage)

			result, err := testEngine(storage, platform).RunOrchestration(context.Background(), 7, false, domain.RunManual)
			if err != nil {
				t.Fatalf("RunOrchestration() error: %v", err)
			}

			if result.Run.CampaignsCreated != 0 {
				t.Errorf("campaigns created = %d, want 0", result.Run.CampaignsCreated)
			}
			if len(result.Actions) != 1 {
				t.Fatalf("actions = %d, want 1 skip", len(result.Actions))
			}
			action := result.Actions[0]
			if action.ActionType != domain.ActionSkip || action.Status != domain.ActionSkipped {
				t.Errorf("action = %+v, want skip", action)
			}
			if !containsSubstring(action.Details, tt.wantReason) {
				t.Errorf("details %q missing reason %q", action.Details, tt.wantReason)
			}
		})
	}
}

func TestRunOrchestration_PromotesWinner(t *testing.T) {
	storage := newFakeStorage()
	platform := newFakePlatform()
	seedUser(storage, "streams", 3)
	seedTestingCampaign(storage, platform, "streams", []float64{12, 15, 11}, []int64{1, 9, 2})

	result, err := testEngine(storage, platform).RunOrchestration(context.Background(), 7, false, domain.RunManual)
	if err != nil {
		t.Fatalf("RunOrchestration() error: %v", err)
	}

	if result.Run.WinnersPromoted != 1 {
		t.Fatalf("winners promoted = %d, want 1", result.Run.WinnersPromoted)
	}
	scaling, err := storage.Campaign(7, "streams", domain.RoleScaling)
	if err != nil {
		t.Fatalf("scaling campaign not created: %v", err)
	}
	winnerID := storage.creatives["streams"][1].ID
	adSets := storage.adSets[scaling.ID]
	if len(adSets) != 1 || adSets[0].CreativeID != winnerID {
		t.Errorf("scaling ad-sets = %+v, want one for creative %d", adSets, winnerID)
	}
}

func TestRunOrchestration_NoWinnerNoPromotion(t *testing.T) {
	storage := newFakeStorage()
	platform := newFakePlatform()
	seedUser(storage, "streams", 2)
	// Лучший не превосходит медиану на 15%
	seedTestingCampaign(storage, platform, "streams", []float64{12, 12}, []int64{5, 5})

	result, err := testEngine(storage, platform).RunOrchestration(context.Background(), 7, false, domain.RunManual)
	if err != nil {
		t.Fatalf("RunOrchestration() error: %v", err)
	}

	if result.Run.WinnersPromoted != 0 {
		t.Errorf("winners promoted = %d, want 0", result.Run.WinnersPromoted)
	}
	if _, err := storage.Campaign(7, "streams", domain.RoleScaling); err != domain.ErrNotFound {
		t.Error("scaling campaign should not exist")
	}
}

func TestRunOrchestration_ScalesBudget(t *testing.T) {
	storage := newFakeStorage()
	platform := newFakePlatform()
	seedUser(storage, "streams", 2)
	// Медиана базовой линии 0.18: оба квалифицируются
	seedTestingCampaign(storage, platform, "streams", []float64{50, 50}, []int64{9, 9})

	storage.nextID++
	scaling := &domain.Campaign{
		ID:                 storage.nextID,
		UserID:             7,
		GoalKey:            "streams",
		Role:               domain.RoleScaling,
		PlatformCampaignID: "pc-scaling",
		DailyBudget:        100,
		Status:             domain.StatusActive,
		CreatedAt:          time.Now().Add(-240 * time.Hour),
	}
	storage.campaigns[campaignKey(7, "streams", domain.RoleScaling)] = scaling
	storage.nextID++
	storage.adSets[scaling.ID] = []domain.AdSet{{
		ID:              storage.nextID,
		CampaignID:      scaling.ID,
		CreativeID:      storage.creatives["streams"][0].ID,
		PlatformAdSetID: "pa-scaling",
		Status:          domain.StatusActive,
	}}
	// Rate 0.6 существенно выше базовой линии 0.18
	platform.metrics["pa-scaling"] = domain.AdSetMetric{AdSetID: "pa-scaling", Spend: 15, Impressions: 3000, CoreSignalCount: 9}

	result, err := testEngine(storage, platform).RunOrchestration(context.Background(), 7, false, domain.RunManual)
	if err != nil {
		t.Fatalf("RunOrchestration() error: %v", err)
	}

	if result.Run.BudgetsScaled != 1 {
		t.Fatalf("budgets scaled = %d, want 1", result.Run.BudgetsScaled)
	}
	// Momentum: шаг 30%
	if got := platform.budgetUpdates["pc-scaling"]; got != 130 {
		t.Errorf("platform budget = %v, want 130", got)
	}
	updated, _ := storage.Campaign(7, "streams", domain.RoleScaling)
	if updated.DailyBudget != 130 || updated.LastScaledAt.IsZero() {
		t.Errorf("persisted campaign = %+v, want budget 130 with last_scaled_at set", updated)
	}
}

func TestRunOrchestration_TestingDisabledStillScales(t *testing.T) {
	storage := newFakeStorage()
	platform := newFakePlatform()
	seedUser(storage, "streams", 2)
	seedTestingCampaign(storage, platform, "streams", []float64{50, 50}, []int64{9, 9})
	storage.settings[0].TestingEnabled = false

	storage.nextID++
	scaling := &domain.Campaign{
		ID:                 storage.nextID,
		UserID:             7,
		GoalKey:            "streams",
		Role:               domain.RoleScaling,
		PlatformCampaignID: "pc-scaling",
		DailyBudget:        100,
		Status:             domain.StatusActive,
		CreatedAt:          time.Now().Add(-240 * time.Hour),
	}
	storage.campaigns[campaignKey(7, "streams", domain.RoleScaling)] = scaling
	storage.nextID++
	storage.adSets[scaling.ID] = []domain.AdSet{{
		ID:              storage.nextID,
		CampaignID:      scaling.ID,
		CreativeID:      storage.creatives["streams"][0].ID,
		PlatformAdSetID: "pa-scaling",
		Status:          domain.StatusActive,
	}}
	platform.metrics["pa-scaling"] = domain.AdSetMetric{AdSetID: "pa-scaling", Spend: 15, Impressions: 3000, CoreSignalCount: 9}

	result, err := testEngine(storage, platform).RunOrchestration(context.Background(), 7, false, domain.RunManual)
	if err != nil {
		t.Fatalf("RunOrchestration() error: %v", err)
	}

	// Цель с выключенным тестированием, но живой scaling-кампанией
	// продолжает управляться, а не пропускается
	if result.Run.BudgetsScaled != 1 {
		t.Fatalf("budgets scaled = %d, want 1", result.Run.BudgetsScaled)
	}
	for _, a := range result.Actions {
		if a.ActionType == domain.ActionSkip {
			t.Errorf("unexpected skip action: %+v", a)
		}
	}
	if platform.createdCampaigns != 0 {
		t.Errorf("campaigns created on platform = %d, want 0 with testing disabled", platform.createdCampaigns)
	}
}

func TestRunOrchestration_CooldownBlocksScaling(t *testing.T) {
	storage := newFakeStorage()
	platform := newFakePlatform()
	seedUser(storage, "streams", 2)
	seedTestingCampaign(storage, platform, "streams", []float64{50, 50}, []int64{9, 9})

	storage.nextID++
	scaling := &domain.Campaign{
		ID:                 storage.nextID,
		UserID:             7,
		GoalKey:            "streams",
		Role:               domain.RoleScaling,
		PlatformCampaignID: "pc-scaling",
		DailyBudget:        100,
		Status:             domain.StatusActive,
		LastScaledAt:       time.Now().Add(-2 * time.Hour),
	}
	storage.campaigns[campaignKey(7, "streams", domain.RoleScaling)] = scaling
	storage.nextID++
	storage.adSets[scaling.ID] = []domain.AdSet{{
		ID:              storage.nextID,
		CampaignID:      scaling.ID,
		CreativeID:      storage.creatives["streams"][0].ID,
		PlatformAdSetID: "pa-scaling",
		Status:          domain.StatusActive,
	}}
	platform.metrics["pa-scaling"] = domain.AdSetMetric{AdSetID: "pa-scaling", Spend: 15, Impressions: 3000, CoreSignalCount: 9}

	result, err := testEngine(storage, platform).RunOrchestration(context.Background(), 7, false, domain.RunManual)
	if err != nil {
		t.Fatalf("RunOrchestration() error: %v", err)
	}

	if result.Run.BudgetsScaled != 0 {
		t.Errorf("budgets scaled = %d, want 0 during cooldown", result.Run.BudgetsScaled)
	}
	if len(platform.budgetUpdates) != 0 {
		t.Errorf("platform budget updates = %v, want none", platform.budgetUpdates)
	}
	found := false
	for _, a := range result.Actions {
		if a.ActionType == domain.ActionScaleBudget && a.Status == domain.ActionSkipped {
			found = true
			if !containsSubstring(a.Details, domain.ReasonCooldown) {
				t.Errorf("blocked action details = %q, want cooldown reason", a.Details)
			}
		}
	}
	if !found {
		t.Error("blocked scaling decision should be recorded")
	}
}

func TestRunOrchestration_PausesLosers(t *testing.T) {
	storage := newFakeStorage()
	platform := newFakePlatform()
	seedUser(storage, "streams", 3)
	// Третий ad-set потратил 25 (>= 2*min_spend) без единого сигнала
	seedTestingCampaign(storage, platform, "streams", []float64{12, 15, 25}, []int64{1, 9, 0})

	result, err := testEngine(storage, platform).RunOrchestration(context.Background(), 7, false, domain.RunManual)
	if err != nil {
		t.Fatalf("RunOrchestration() error: %v", err)
	}

	if result.Run.AdSetsPaused != 1 {
		t.Fatalf("ad-sets paused = %d, want 1", result.Run.AdSetsPaused)
	}
	if len(platform.paused) != 1 || platform.paused[0] != "pa-streams-2" {
		t.Errorf("platform paused = %v, want [pa-streams-2]", platform.paused)
	}

	campaign, _ := storage.Campaign(7, "streams", domain.RoleTesting)
	for _, as := range storage.adSets[campaign.ID] {
		if as.PlatformAdSetID == "pa-streams-2" && as.Status != domain.StatusPaused {
			t.Errorf("ad-set status = %s, want paused", as.Status)
		}
	}
}

func TestRunOrchestration_AutoPauseDisabled(t *testing.T) {
	storage := newFakeStorage()
	platform := newFakePlatform()
	seedUser(storage, "streams", 3)
	seedTestingCampaign(storage, platform, "streams", []float64{12, 15, 25}, []int64{1, 9, 0})

	engine := testEngine(storage, platform)
	engine.opts.AutoPause = false

	result, err := engine.RunOrchestration(context.Background(), 7, false, domain.RunManual)
	if err != nil {
		t.Fatalf("RunOrchestration() error: %v", err)
	}
	if result.Run.AdSetsPaused != 0 || len(platform.paused) != 0 {
		t.Errorf("paused = %d/%v, want none with auto-pause off", result.Run.AdSetsPaused, platform.paused)
	}
}

func TestRunOrchestration_GoalErrorIsolation(t *testing.T) {
	storage := newFakeStorage()
	platform := newFakePlatform()
	seedUser(storage, "followers", 2)
	seedUser(storage, "streams", 2)

	// Первая цель по приоритету упадет на создании кампании
	platform.failCreate = true

	result, err := testEngine(storage, platform).RunOrchestration(context.Background(), 7, false, domain.RunManual)
	if err != nil {
		t.Fatalf("RunOrchestration() error: %v", err)
	}

	if result.Run.ErrorsCount != 2 {
		t.Errorf("errors = %d, want 2 (both goals failed independently)", result.Run.ErrorsCount)
	}
	if result.Run.Status != domain.RunStatusCompletedWithErrors {
		t.Errorf("run status = %s, want completed_with_errors", result.Run.Status)
	}

	errorActions := 0
	for _, a := range result.Actions {
		if a.ActionType == domain.ActionError {
			errorActions++
		}
	}
	if errorActions != 2 {
		t.Errorf("error actions = %d, want one per failed goal", errorActions)
	}
}

func TestRunOrchestration_CountersMatchSuccessfulActions(t *testing.T) {
	storage := newFakeStorage()
	platform := newFakePlatform()
	seedUser(storage, "streams", 3)
	seedTestingCampaign(storage, platform, "streams", []float64{12, 25, 11}, []int64{1, 0, 9})

	result, err := testEngine(storage, platform).RunOrchestration(context.Background(), 7, false, domain.RunManual)
	if err != nil {
		t.Fatalf("RunOrchestration() error: %v", err)
	}

	counts := map[string]int{}
	for _, a := range result.Actions {
		if a.Status == domain.ActionSuccess {
			counts[a.ActionType]++
		}
	}

	if result.Run.CampaignsCreated != counts[domain.ActionCreateTestingCampaign] {
		t.Errorf("campaigns_created = %d, successful actions = %d", result.Run.CampaignsCreated, counts[domain.ActionCreateTestingCampaign])
	}
	if result.Run.WinnersPromoted != counts[domain.ActionPromoteWinner] {
		t.Errorf("winners_promoted = %d, successful actions = %d", result.Run.WinnersPromoted, counts[domain.ActionPromoteWinner])
	}
	if result.Run.BudgetsScaled != counts[domain.ActionScaleBudget] {
		t.Errorf("budgets_scaled = %d, successful actions = %d", result.Run.BudgetsScaled, counts[domain.ActionScaleBudget])
	}
	if result.Run.AdSetsPaused != counts[domain.ActionPauseAdSet] {
		t.Errorf("adsets_paused = %d, successful actions = %d", result.Run.AdSetsPaused, counts[domain.ActionPauseAdSet])
	}
}

func TestRunOrchestration_DryRunMakesNoMutations(t *testing.T) {
	storage := newFakeStorage()
	platform := newFakePlatform()
	seedUser(storage, "streams", 3)
	seedTestingCampaign(storage, platform, "streams", []float64{12, 15, 25}, []int64{1, 9, 0})

	result, err := testEngine(storage, platform).RunOrchestration(context.Background(), 7, true, domain.RunManual)
	if err != nil {
		t.Fatalf("RunOrchestration() error: %v", err)
	}

	if result.Run.RunType != domain.RunDryRun {
		t.Errorf("run type = %s, want dry_run", result.Run.RunType)
	}
	// Решения приняты как в боевом прогоне
	if result.Run.WinnersPromoted != 1 || result.Run.AdSetsPaused != 1 {
		t.Errorf("dry-run decisions = %+v, want same as live", result.Run)
	}
	// Но ни одной мутации на платформе и в хранилище
	if platform.createdCampaigns != 0 || platform.createdAdSets != 0 || len(platform.paused) != 0 || len(platform.budgetUpdates) != 0 {
		t.Error("dry-run must not touch the platform")
	}
	if _, err := storage.Campaign(7, "streams", domain.RoleScaling); err != domain.ErrNotFound {
		t.Error("dry-run must not persist campaigns")
	}
	campaign, _ := storage.Campaign(7, "streams", domain.RoleTesting)
	for _, as := range storage.adSets[campaign.ID] {
		if as.Status != domain.StatusActive {
			t.Errorf("dry-run must not change ad-set status, got %s", as.Status)
		}
	}
	// Журнал прогона пишется и для dry-run
	if len(storage.actions) == 0 {
		t.Error("dry-run must record its decisions in the ledger")
	}
}

func TestRunOrchestration_AlreadyRunning(t *testing.T) {
	storage := newFakeStorage()
	platform := newFakePlatform()
	seedUser(storage, "streams", 1)
	storage.running[7] = true

	_, err := testEngine(storage, platform).RunOrchestration(context.Background(), 7, false, domain.RunManual)
	if !errors.Is(err, domain.ErrAlreadyRunning) {
		t.Errorf("error = %v, want ErrAlreadyRunning", err)
	}
}

func TestRunOrchestration_EngineStopped(t *testing.T) {
	storage := newFakeStorage()
	platform := newFakePlatform()
	seedUser(storage, "streams", 1)

	engine := testEngine(storage, platform)
	engine.killSwitch.Stop("manual stop")

	_, err := engine.RunOrchestration(context.Background(), 7, false, domain.RunManual)
	if !errors.Is(err, domain.ErrEngineStopped) {
		t.Errorf("error = %v, want ErrEngineStopped", err)
	}
	// Остановленный движок не оставляет записей в журнале
	if len(storage.runs) != 0 {
		t.Error("stopped engine must not start runs")
	}

	engine.killSwitch.Resume()
	if _, err := engine.RunOrchestration(context.Background(), 7, false, domain.RunManual); err != nil {
		t.Errorf("RunOrchestration() after resume error: %v", err)
	}
}

func TestRunOrchestration_NoCredentialFailsRun(t *testing.T) {
	storage := newFakeStorage()
	platform := newFakePlatform()
	seedUser(storage, "streams", 1)
	storage.cred = nil

	result, err := testEngine(storage, platform).RunOrchestration(context.Background(), 7, false, domain.RunManual)
	if !errors.Is(err, domain.ErrNoCredential) {
		t.Errorf("error = %v, want ErrNoCredential", err)
	}
	if result.Run.Status != domain.RunStatusFailed {
		t.Errorf("run status = %s, want failed", result.Run.Status)
	}
}

func TestRunOrchestration_ExpiredCredentialFailsRun(t *testing.T) {
	storage := newFakeStorage()
	platform := newFakePlatform()
	seedUser(storage, "streams", 1)
	storage.cred.ExpiresAt = time.Now().Add(-time.Hour)

	result, err := testEngine(storage, platform).RunOrchestration(context.Background(), 7, false, domain.RunManual)
	if !errors.Is(err, domain.ErrCredentialExpired) {
		t.Errorf("error = %v, want ErrCredentialExpired", err)
	}
	if result.Run.Status != domain.RunStatusFailed {
		t.Errorf("run status = %s, want failed", result.Run.Status)
	}
}

func TestRunOrchestration_UnknownUserModeFallsBack(t *testing.T) {
	storage := newFakeStorage()
	platform := newFakePlatform()
	seedUser(storage, "streams", 3)
	storage.mode = "" // профиля нет, работаем в режиме по умолчанию

	result, err := testEngine(storage, platform).RunOrchestration(context.Background(), 7, false, domain.RunManual)
	if err != nil {
		t.Fatalf("RunOrchestration() error: %v", err)
	}
	if result.Run.CampaignsCreated != 1 {
		t.Errorf("campaigns created = %d, want 1 under default mode", result.Run.CampaignsCreated)
	}
}

func containsSubstring(s, sub string) bool {
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return true
		}
	}
	return false
}
