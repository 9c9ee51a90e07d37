package portal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/classbot/nz-schedule-bot/pkg/config"
	appErrors "github.com/classbot/nz-schedule-bot/pkg/errors"
)

// RequestObserver receives the duration and outcome of every portal
// round trip.
type RequestObserver interface {
	RecordPortalRequest(path, status string, duration time.Duration)
}

// Client is a thin wrapper around the school portal's login, timetable and
// diary endpoints. Failures map onto ErrPortalAuth (401) and
// ErrPortalUpstream (everything else); the caller retries by rescheduling,
// not in-process.
type Client struct {
	httpClient *http.Client
	baseURL    string
	observer   RequestObserver
	logger     *zap.Logger
}

// NewClient builds a portal client from configuration. The observer may be
// nil when request durations are not collected.
func NewClient(cfg config.PortalConfig, observer RequestObserver, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		observer:   observer,
		logger:     logger,
	}
}

// Login exchanges account credentials for an access token.
func (c *Client) Login(ctx context.Context, username, password string) (*LoginResponse, error) {
	body := map[string]string{"username": username, "password": password}

	var resp LoginResponse
	if err := c.post(ctx, "/user/login", "", body, &resp); err != nil {
		return nil, err
	}
	if resp.ErrorMessage != "" {
		return nil, appErrors.Wrap(fmt.Errorf("portal: %s", resp.ErrorMessage),
			appErrors.ErrPortalAuth.Code, appErrors.ErrPortalAuth.Status, "portal login rejected")
	}
	if resp.AccessToken == "" {
		return nil, appErrors.Wrap(fmt.Errorf("portal login returned no token"),
			appErrors.ErrPortalUpstream.Code, appErrors.ErrPortalUpstream.Status, appErrors.ErrPortalUpstream.Message)
	}
	return &resp, nil
}

// Timetable fetches the lesson-slot document for the inclusive date range.
func (c *Client) Timetable(ctx context.Context, accessToken, startDate, endDate string) (*Timetable, error) {
	body := map[string]string{"start_date": startDate, "end_date": endDate}

	var resp Timetable
	if err := c.post(ctx, "/schedule/timetable", accessToken, body, &resp); err != nil {
		return nil, err
	}
	if resp.ErrorMessage != "" {
		return nil, upstreamError(fmt.Errorf("portal timetable: %s", resp.ErrorMessage))
	}
	return &resp, nil
}

// Diary fetches the homework document for the inclusive date range.
func (c *Client) Diary(ctx context.Context, accessToken, startDate, endDate string) (*Diary, error) {
	body := map[string]string{"start_date": startDate, "end_date": endDate}

	var resp Diary
	if err := c.post(ctx, "/schedule/diary", accessToken, body, &resp); err != nil {
		return nil, err
	}
	if resp.ErrorMessage != "" {
		return nil, upstreamError(fmt.Errorf("portal diary: %s", resp.ErrorMessage))
	}
	return &resp, nil
}

func (c *Client) post(ctx context.Context, path, accessToken string, body, dest interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal portal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build portal request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}

	started := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.observe(path, "network_error", started)
		return upstreamError(err)
	}
	defer resp.Body.Close()
	c.observe(path, strconv.Itoa(resp.StatusCode), started)

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return appErrors.Wrap(fmt.Errorf("portal %s: status %d", path, resp.StatusCode),
			appErrors.ErrPortalAuth.Code, appErrors.ErrPortalAuth.Status, appErrors.ErrPortalAuth.Message)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return upstreamError(fmt.Errorf("portal %s: status %d", path, resp.StatusCode))
	}

	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return upstreamError(fmt.Errorf("decode portal %s response: %w", path, err))
	}
	return nil
}

func (c *Client) observe(path, status string, started time.Time) {
	if c.observer != nil {
		c.observer.RecordPortalRequest(path, status, time.Since(started))
	}
}

func upstreamError(err error) error {
	return appErrors.Wrap(err, appErrors.ErrPortalUpstream.Code,
		appErrors.ErrPortalUpstream.Status, appErrors.ErrPortalUpstream.Message)
}
