package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/kirillm/ads-engine/internal/domain"
)

// executor применяет мутации, принятые циклом решений.
// Live-исполнитель вызывает платформу и пишет в хранилище, dry-run
// подставляет синтетические ID и не трогает внешний мир.
type executor interface {
	CreateCampaign(ctx context.Context, cred *domain.PlatformCredential, campaign *domain.Campaign, name, objective string) error
	CreateAdSet(ctx context.Context, cred *domain.PlatformCredential, adSet *domain.AdSet, creative domain.Creative, platformCampaignID string) error
	UpdateBudget(ctx context.Context, cred *domain.PlatformCredential, campaign *domain.Campaign, newBudget float64) error
	PauseAdSet(ctx context.Context, cred *domain.PlatformCredential, adSet *domain.AdSet) error
}

// liveExecutor исполняет решения на платформе и фиксирует их в хранилище
type liveExecutor struct {
	storage  Storage
	platform Platform
	now      func() time.Time
}

func (e *liveExecutor) CreateCampaign(ctx context.Context, cred *domain.PlatformCredential, campaign *domain.Campaign, name, objective string) error {
	platformID, err := e.platform.CreateCampaign(ctx, cred, name, objective, campaign.DailyBudget)
	if err != nil {
		return err
	}
	campaign.PlatformCampaignID = platformID
	return e.storage.SaveCampaign(campaign)
}

func (e *liveExecutor) CreateAdSet(ctx context.Context, cred *domain.PlatformCredential, adSet *domain.AdSet, creative domain.Creative, platformCampaignID string) error {
	platformID, err := e.platform.CreateAdSet(ctx, cred, platformCampaignID, creative)
	if err != nil {
		return err
	}
	adSet.PlatformAdSetID = platformID
	return e.storage.SaveAdSet(adSet)
}

func (e *liveExecutor) UpdateBudget(ctx context.Context, cred *domain.PlatformCredential, campaign *domain.Campaign, newBudget float64) error {
	if err := e.platform.UpdateCampaignBudget(ctx, cred, campaign.PlatformCampaignID, newBudget); err != nil {
		return err
	}
	scaledAt := e.now()
	if err := e.storage.UpdateCampaignBudget(campaign.ID, newBudget, scaledAt); err != nil {
		return err
	}
	campaign.DailyBudget = newBudget
	campaign.LastScaledAt = scaledAt
	return nil
}

func (e *liveExecutor) PauseAdSet(ctx context.Context, cred *domain.PlatformCredential, adSet *domain.AdSet) error {
	if err := e.platform.PauseAdSet(ctx, cred, adSet.PlatformAdSetID); err != nil {
		return err
	}
	if err := e.storage.UpdateAdSetStatus(adSet.ID, domain.StatusPaused); err != nil {
		return err
	}
	adSet.Status = domain.StatusPaused
	return nil
}

// dryRunExecutor проходит те же ветки решений без единой мутации
type dryRunExecutor struct {
	seq int
}

func (e *dryRunExecutor) CreateCampaign(ctx context.Context, cred *domain.PlatformCredential, campaign *domain.Campaign, name, objective string) error {
	e.seq++
	campaign.PlatformCampaignID = fmt.Sprintf("dry-campaign-%d", e.seq)
	return nil
}

func (e *dryRunExecutor) CreateAdSet(ctx context.Context, cred *domain.PlatformCredential, adSet *domain.AdSet, creative domain.Creative, platformCampaignID string) error {
	e.seq++
	adSet.PlatformAdSetID = fmt.Sprintf("dry-adset-%d", e.seq)
	return nil
}

func (e *dryRunExecutor) UpdateBudget(ctx context.Context, cred *domain.PlatformCredential, campaign *domain.Campaign, newBudget float64) error {
	return nil
}

func (e *dryRunExecutor) PauseAdSet(ctx context.Context, cred *domain.PlatformCredential, adSet *domain.AdSet) error {
	return nil
}
