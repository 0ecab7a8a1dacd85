package adplatform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/kirillm/ads-engine/internal/domain"
)

// Коды ошибок API платформы
const (
	apiCodeOK                = 0
	apiCodeCredentialExpired = 190
	apiCodeRateLimited       = 17
)

// Options содержит настройки клиента платформы
type Options struct {
	BaseURL        string
	RequestTimeout time.Duration
	MaxAttempts    int
	RetryBaseDelay time.Duration
	RateLimitRPS   float64
}

// Client клиент API рекламной платформы.
// Все сетевые вызовы проходят через единый retry-конвейер: транзиентные
// ошибки (таймаут, 5xx, rate limit) повторяются с экспоненциальной
// задержкой и джиттером, остальные возвращаются сразу.
type Client struct {
	baseURL        string
	client         *http.Client
	limiter        *rate.Limiter
	maxAttempts    int
	retryBaseDelay time.Duration
}

type apiResponse struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type campaignData struct {
	CampaignID string `json:"campaign_id"`
}

type adSetData struct {
	AdSetID string `json:"adset_id"`
}

type insightsData struct {
	Rows []struct {
		AdSetID     string  `json:"adset_id"`
		Spend       float64 `json:"spend"`
		Impressions int64   `json:"impressions"`
		Conversions int64   `json:"conversions"`
	} `json:"rows"`
}

func NewClient(opts Options) *Client {
	maxAttempts := opts.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	retryBaseDelay := opts.RetryBaseDelay
	if retryBaseDelay <= 0 {
		retryBaseDelay = 500 * time.Millisecond
	}
	rps := opts.RateLimitRPS
	if rps <= 0 {
		rps = 5
	}
	timeout := opts.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		baseURL:        strings.TrimRight(opts.BaseURL, "/"),
		client:         &http.Client{Timeout: timeout},
		limiter:        rate.NewLimiter(rate.Limit(rps), int(rps)+1),
		maxAttempts:    maxAttempts,
		retryBaseDelay: retryBaseDelay,
	}
}

// CreateCampaign создает кампанию на платформе и возвращает ее ID
func (c *Client) CreateCampaign(ctx context.Context, cred *domain.PlatformCredential, name, objective string, dailyBudget float64) (string, error) {
	body := map[string]interface{}{
		"account_id":   cred.AccountID,
		"name":         name,
		"objective":    objective,
		"daily_budget": dailyBudget,
	}

	var data campaignData
	if err := c.do(ctx, cred, http.MethodPost, "/v2/campaigns", body, &data); err != nil {
		return "", fmt.Errorf("failed to create campaign: %w", err)
	}
	if data.CampaignID == "" {
		return "", fmt.Errorf("%w: empty campaign id in response", domain.ErrPlatformAPI)
	}
	return data.CampaignID, nil
}

// CreateAdSet создает ad-set с одним креативом внутри кампании
func (c *Client) CreateAdSet(ctx context.Context, cred *domain.PlatformCredential, platformCampaignID string, creative domain.Creative) (string, error) {
	body := map[string]interface{}{
		"account_id":    cred.AccountID,
		"campaign_id":   platformCampaignID,
		"name":          fmt.Sprintf("creative-%d", creative.ID),
		"creative_type": creative.Type,
		"creative_url":  creative.URL,
	}

	var data adSetData
	if err := c.do(ctx, cred, http.MethodPost, "/v2/adsets", body, &data); err != nil {
		return "", fmt.Errorf("failed to create ad-set: %w", err)
	}
	if data.AdSetID == "" {
		return "", fmt.Errorf("%w: empty adset id in response", domain.ErrPlatformAPI)
	}
	return data.AdSetID, nil
}

// UpdateCampaignBudget изменяет дневной бюджет кампании
func (c *Client) UpdateCampaignBudget(ctx context.Context, cred *domain.PlatformCredential, platformCampaignID string, dailyBudget float64) error {
	body := map[string]interface{}{
		"daily_budget": dailyBudget,
	}

	path := fmt.Sprintf("/v2/campaigns/%s/budget", url.PathEscape(platformCampaignID))
	if err := c.do(ctx, cred, http.MethodPost, path, body, nil); err != nil {
		return fmt.Errorf("failed to update campaign budget: %w", err)
	}
	return nil
}

// PauseAdSet останавливает показы ad-set'а
func (c *Client) PauseAdSet(ctx context.Context, cred *domain.PlatformCredential, platformAdSetID string) error {
	path := fmt.Sprintf("/v2/adsets/%s/pause", url.PathEscape(platformAdSetID))
	if err := c.do(ctx, cred, http.MethodPost, path, nil, nil); err != nil {
		return fmt.Errorf("failed to pause ad-set: %w", err)
	}
	return nil
}

// FetchMetrics запрашивает метрики ad-set'ов за окно наблюдения.
// CreativeID в результатах не заполняется: маппинг на креативы
// делает вызывающий по своему реестру ad-set'ов.
func (c *Client) FetchMetrics(ctx context.Context, cred *domain.PlatformCredential, adSetIDs []string, lookback time.Duration) ([]domain.AdSetMetric, error) {
	if len(adSetIDs) == 0 {
		return nil, nil
	}

	params := url.Values{}
	params.Set("adset_ids", strings.Join(adSetIDs, ","))
	params.Set("lookback_hours", strconv.Itoa(int(lookback.Hours())))

	var data insightsData
	if err := c.do(ctx, cred, http.MethodGet, "/v2/insights?"+params.Encode(), nil, &data); err != nil {
		return nil, fmt.Errorf("failed to fetch metrics: %w", err)
	}

	metrics := make([]domain.AdSetMetric, 0, len(data.Rows))
	for _, row := range data.Rows {
		metrics = append(metrics, domain.AdSetMetric{
			AdSetID:         row.AdSetID,
			Spend:           row.Spend,
			Impressions:     row.Impressions,
			CoreSignalCount: row.Conversions,
		})
	}
	return metrics, nil
}

// do выполняет запрос с авторизацией, rate limit и retry policy
func (c *Client) do(ctx context.Context, cred *domain.PlatformCredential, method, path string, body interface{}, out interface{}) error {
	if cred == nil || cred.AccessToken == "" {
		return domain.ErrNoCredential
	}
	// Истекший токен видно без сетевого вызова
	if !cred.ExpiresAt.IsZero() && time.Now().After(cred.ExpiresAt) {
		return domain.ErrCredentialExpired
	}

	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
	}

	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		if attempt > 1 {
			if err := c.sleepBackoff(ctx, attempt-1); err != nil {
				return err
			}
		}

		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}

		retryable, err := c.doOnce(ctx, cred, method, path, payload, out)
		if err == nil {
			return nil
		}
		if !retryable {
			return err
		}
		lastErr = err
	}

	return fmt.Errorf("retries exhausted after %d attempts: %w", c.maxAttempts, lastErr)
}

// doOnce выполняет одну попытку запроса.
// Первый результат: можно ли повторять при ошибке.
func (c *Client) doOnce(ctx context.Context, cred *domain.PlatformCredential, method, path string, payload []byte, out interface{}) (bool, error) {
	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return false, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+cred.AccessToken)
	req.Header.Set("X-Ads-Account", cred.AccountID)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		// Сетевые ошибки и таймауты считаем транзиентными
		return true, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return true, fmt.Errorf("failed to read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return false, domain.ErrCredentialExpired
	case resp.StatusCode == http.StatusTooManyRequests:
		return true, domain.ErrRateLimited
	case resp.StatusCode >= 500:
		return true, fmt.Errorf("%w: status %d", domain.ErrPlatformAPI, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return false, fmt.Errorf("%w: status %d: %s", domain.ErrPlatformAPI, resp.StatusCode, truncate(respBody, 200))
	}

	var envelope apiResponse
	if err := json.Unmarshal(respBody, &envelope); err != nil {
		return false, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	switch envelope.Code {
	case apiCodeOK:
	case apiCodeCredentialExpired:
		return false, domain.ErrCredentialExpired
	case apiCodeRateLimited:
		return true, domain.ErrRateLimited
	default:
		return false, fmt.Errorf("%w: code %d: %s", domain.ErrPlatformAPI, envelope.Code, envelope.Message)
	}

	if out != nil && len(envelope.Data) > 0 {
		if err := json.Unmarshal(envelope.Data, out); err != nil {
			return false, fmt.Errorf("failed to unmarshal response data: %w", err)
		}
	}

	return false, nil
}

// sleepBackoff ждет экспоненциальную задержку с джиттером
func (c *Client) sleepBackoff(ctx context.Context, retry int) error {
	delay := c.retryBaseDelay << (retry - 1)
	delay += time.Duration(rand.Int63n(int64(c.retryBaseDelay)))

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
