package infrastructure

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"growthdash/internal/civildate"
	"growthdash/internal/domain"
	"growthdash/pkg/logger"
	"growthdash/pkg/metrics"
)

const defaultPageSize = 1000

// goalEventTables maps each record type to the table holding it.
var goalEventTables = []struct {
	recordType domain.RecordType
	table      string
}{
	{domain.RecordOrder, "orders"},
	{domain.RecordUser, "users"},
	{domain.RecordSMS, "sms_subscribers"},
}

// HTTPStoreConfig configures the REST event store client.
type HTTPStoreConfig struct {
	BaseURL            string
	APIKey             string
	Timeout            time.Duration
	MaxRetries         int
	RetryBackoff       time.Duration
	RateLimitPerSecond int
	PageSize           int
}

// HTTPStore reads the hosted data store through its PostgREST-style REST API.
type HTTPStore struct {
	client      *http.Client
	baseURL     string
	apiKey      string
	maxRetries  int
	backoff     time.Duration
	pageSize    int
	rows        rowNormalizer
	logger      *logger.Logger
	metrics     *metrics.Metrics
	rateLimiter *rate.Limiter
}

// statusError is a non-2xx response from the store.
type statusError struct {
	StatusCode int
	Body       string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("store returned status %d: %s", e.StatusCode, e.Body)
}

func (e *statusError) retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

func NewHTTPStore(cfg HTTPStoreConfig, dates *civildate.Normalizer, logger *logger.Logger, metrics *metrics.Metrics) *HTTPStore {
	limit := rate.Inf
	if cfg.RateLimitPerSecond > 0 {
		limit = rate.Limit(cfg.RateLimitPerSecond)
	}
	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}

	return &HTTPStore{
		client: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:      cfg.APIKey,
		maxRetries:  cfg.MaxRetries,
		backoff:     cfg.RetryBackoff,
		pageSize:    pageSize,
		rows:        rowNormalizer{dates: dates, logger: logger, metrics: metrics},
		logger:      logger,
		metrics:     metrics,
		rateLimiter: rate.NewLimiter(limit, 10),
	}
}

func (s *HTTPStore) GoalEvents(ctx context.Context, w domain.Window) ([]domain.GoalEvent, error) {
	var all []goalEventRow
	for _, t := range goalEventTables {
		params := url.Values{}
		params.Set("select", "occurred_at:created_at,source")
		params.Add("created_at", "gte."+w.From.Format(time.RFC3339))
		params.Add("created_at", "lt."+w.To.Format(time.RFC3339))
		params.Set("order", "created_at")

		var rows []goalEventRow
		if err := fetchPages(ctx, s, t.table, params, &rows); err != nil {
			return nil, err
		}
		for i := range rows {
			rows[i].RecordType = string(t.recordType)
		}
		all = append(all, rows...)
	}
	return s.rows.goalEvents(ctx, all), nil
}

// httpAdSpendRow carries spend as whatever JSON type the API returns.
type httpAdSpendRow struct {
	Date         string  `json:"date"`
	Platform     string  `json:"platform"`
	CampaignID   string  `json:"campaign_id"`
	CampaignName *string `json:"campaign_name"`
	Spend        any     `json:"spend"`
}

func (s *HTTPStore) AdSpend(ctx context.Context, w domain.Window) ([]domain.AdSpendRecord, error) {
	params := url.Values{}
	params.Set("select", "date,platform,campaign_id,campaign_name,spend")
	params.Add("date", "gte."+w.Range.Start)
	params.Add("date", "lte."+w.Range.End)
	params.Set("order", "date,platform,campaign_id")

	var raw []httpAdSpendRow
	if err := fetchPages(ctx, s, "ad_spend", params, &raw); err != nil {
		return nil, err
	}

	rows := make([]adSpendRow, 0, len(raw))
	for _, r := range raw {
		row := adSpendRow{
			Date:       r.Date,
			Platform:   r.Platform,
			CampaignID: r.CampaignID,
			Spend:      scalarString(r.Spend),
		}
		if r.CampaignName != nil {
			row.CampaignName = *r.CampaignName
		}
		rows = append(rows, row)
	}
	return s.rows.adSpend(ctx, rows), nil
}

// httpFollowerSnapshotRow carries count as whatever JSON type the API returns.
type httpFollowerSnapshotRow struct {
	Platform string `json:"platform"`
	Date     string `json:"date"`
	Count    any    `json:"count"`
}

func (s *HTTPStore) FollowerSnapshots(ctx context.Context, w domain.Window) ([]domain.FollowerSnapshot, error) {
	params := url.Values{}
	params.Set("select", "platform,date,count")
	params.Add("date", "gte."+w.Range.Start)
	params.Add("date", "lte."+w.Range.End)
	params.Set("order", "platform,date")

	var raw []httpFollowerSnapshotRow
	if err := fetchPages(ctx, s, "follower_snapshots", params, &raw); err != nil {
		return nil, err
	}

	rows := make([]followerSnapshotRow, 0, len(raw))
	for _, r := range raw {
		rows = append(rows, followerSnapshotRow{
			Platform: r.Platform,
			Date:     r.Date,
			Count:    scalarString(r.Count),
		})
	}
	return s.rows.followerSnapshots(ctx, rows), nil
}

// httpMappingRow accepts goals either as a JSON array or a comma-separated string.
type httpMappingRow struct {
	CampaignID   string  `json:"campaign_id"`
	CampaignName *string `json:"campaign_name"`
	Platform     string  `json:"platform"`
	Goals        any     `json:"goals"`
}

func (s *HTTPStore) CampaignGoalMappings(ctx context.Context) ([]domain.CampaignGoalMapping, error) {
	params := url.Values{}
	params.Set("select", "campaign_id,campaign_name,platform,goals")
	params.Set("order", "campaign_id")

	var raw []httpMappingRow
	if err := fetchPages(ctx, s, "campaign_goal_mappings", params, &raw); err != nil {
		return nil, err
	}

	rows := make([]campaignGoalMappingRow, 0, len(raw))
	for _, r := range raw {
		row := campaignGoalMappingRow{
			CampaignID: r.CampaignID,
			Platform:   r.Platform,
			Goals:      goalsString(r.Goals),
		}
		if r.CampaignName != nil {
			row.CampaignName = *r.CampaignName
		}
		rows = append(rows, row)
	}
	return s.rows.campaignGoalMappings(rows), nil
}

// CredentialStatus reads the platform_credential_status view, which exposes
// connection state without the tokens themselves.
func (s *HTTPStore) CredentialStatus(ctx context.Context, platform string) (*domain.CredentialStatus, error) {
	platform = domain.NormalizePlatform(platform)

	params := url.Values{}
	params.Set("select", "platform,connected,last_sync_at")
	params.Set("platform", "eq."+platform)
	params.Set("limit", "1")

	var rows []struct {
		Connected  bool       `json:"connected"`
		LastSyncAt *time.Time `json:"last_sync_at"`
	}
	if err := s.get(ctx, "platform_credential_status", params, &rows); err != nil {
		return nil, err
	}

	status := &domain.CredentialStatus{Platform: platform}
	if len(rows) > 0 {
		status.Connected = rows[0].Connected
		status.LastSyncAt = rows[0].LastSyncAt
	}
	return status, nil
}

// fetchPages pages through table with limit/offset until a short page.
func fetchPages[T any](ctx context.Context, s *HTTPStore, table string, params url.Values, dest *[]T) error {
	for offset := 0; ; offset += s.pageSize {
		page := url.Values{}
		for k, v := range params {
			page[k] = append([]string(nil), v...)
		}
		page.Set("limit", strconv.Itoa(s.pageSize))
		page.Set("offset", strconv.Itoa(offset))

		var rows []T
		if err := s.get(ctx, table, page, &rows); err != nil {
			return err
		}
		*dest = append(*dest, rows...)
		if len(rows) < s.pageSize {
			return nil
		}
	}
}

// get issues one GET, retrying network errors, 429 and 5xx with exponential
// backoff until maxRetries is exhausted or ctx is done.
func (s *HTTPStore) get(ctx context.Context, table string, params url.Values, dest any) error {
	start := time.Now()
	endpoint := s.baseURL + "/" + table + "?" + params.Encode()

	var lastErr error
	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		if attempt > 0 {
			wait := time.Duration(1<<(attempt-1)) * s.backoff
			s.logger.WithContext(ctx).WithFields(map[string]any{
				"table":   table,
				"attempt": attempt,
				"wait":    wait,
				"error":   lastErr,
			}).Warn("Retrying event store request")

			select {
			case <-ctx.Done():
				return fmt.Errorf("failed to fetch %s: %w", table, ctx.Err())
			case <-time.After(wait):
			}
		}

		body, err := s.do(ctx, table, endpoint)
		if err == nil {
			if err := decodeJSON(body, dest); err != nil {
				s.metrics.RecordStoreFailure(table, "json_parse")
				return fmt.Errorf("failed to parse %s: %w", table, err)
			}
			s.metrics.RecordStoreRead(table, "success", time.Since(start))
			return nil
		}

		lastErr = err
		var se *statusError
		if errors.As(err, &se) && !se.retryable() {
			break
		}
		if ctx.Err() != nil {
			break
		}
	}

	s.metrics.RecordStoreRead(table, "error", time.Since(start))
	s.logger.WithContext(ctx).WithError(lastErr).WithField("table", table).Error("Event store request failed")
	return fmt.Errorf("failed to fetch %s: %w", table, lastErr)
}

func (s *HTTPStore) do(ctx context.Context, table, endpoint string) ([]byte, error) {
	if err := s.rateLimiter.Wait(ctx); err != nil {
		s.metrics.RecordStoreFailure(table, "rate_limit")
		return nil, fmt.Errorf("rate limit exceeded: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		s.metrics.RecordStoreFailure(table, "request_creation")
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if s.apiKey != "" {
		req.Header.Set("apikey", s.apiKey)
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		s.metrics.RecordStoreFailure(table, "network_error")
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		s.metrics.RecordStoreFailure(table, "read_body")
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		s.metrics.RecordStoreFailure(table, fmt.Sprintf("status_%d", resp.StatusCode))
		return nil, &statusError{StatusCode: resp.StatusCode, Body: truncate(string(body), 200)}
	}
	return body, nil
}

func decodeJSON(body []byte, dest any) error {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	return dec.Decode(dest)
}

// goalsString flattens a JSON goals value into "a,b".
func goalsString(v any) string {
	switch g := v.(type) {
	case string:
		return g
	case []any:
		parts := make([]string, 0, len(g))
		for _, item := range g {
			if s, ok := item.(string); ok {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, ",")
	default:
		return ""
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
