// Package newsroom fetches tagged articles from the internal newsroom
// service. The service is optional: every failure mode is reported as a
// typed fault so workflows can skip the source and say why.
package newsroom

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/ruzivolabs/ruzivo/internal/fault"
	"github.com/ruzivolabs/ruzivo/internal/types"

	. "github.com/ruzivolabs/ruzivo/internal/logging"
)

const (
	articlesPath   = "/api/data-admin/newsroom/articles"
	defaultTimeout = 10 * time.Second
	maxBodyBytes   = 8 << 20
)

// Client talks to the newsroom REST API with a bearer JWT.
type Client struct {
	baseURL string
	token   string
	client  *http.Client
}

func NewClient(baseURL, token string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL: baseURL,
		token:   token,
		client:  &http.Client{Timeout: timeout},
	}
}

// Enabled reports whether the client has both a URL and a token.
func (c *Client) Enabled() bool {
	return c != nil && c.baseURL != "" && c.token != ""
}

// FetchArticles queries articles matching search, newest first. The
// returned slice is empty (never nil) whenever err is non-nil; callers
// that treat the newsroom as best-effort log the error and move on.
func (c *Client) FetchArticles(ctx context.Context, search string, limit int, dateFrom time.Time) ([]types.NewsroomArticle, error) {
	if c == nil || c.baseURL == "" {
		return []types.NewsroomArticle{}, fault.Config("newsroom URL not configured").
			WithHint("set newsroom.url in config")
	}
	if c.token == "" {
		L_warn("newsroom: no token configured, skipping")
		return []types.NewsroomArticle{}, fault.Config("newsroom token not configured").
			WithHint("set NEWSROOM_JWT or newsroom.token")
	}
	if limit <= 0 {
		limit = 50
	}

	params := url.Values{
		"search": []string{search},
		"limit":  []string{strconv.Itoa(limit)},
	}
	if !dateFrom.IsZero() {
		params.Set("date_from", dateFrom.Format("2006-01-02"))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+articlesPath+"?"+params.Encode(), nil)
	if err != nil {
		return []types.NewsroomArticle{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return []types.NewsroomArticle{}, fault.Interrupted()
		}
		L_warn("newsroom: request failed", "error", err)
		return []types.NewsroomArticle{}, fault.Network(err, "newsroom unreachable")
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		L_warn("newsroom: token rejected", "status", resp.StatusCode)
		return []types.NewsroomArticle{}, fault.Auth("newsroom rejected the token (status %d)", resp.StatusCode).
			WithHint("refresh NEWSROOM_JWT")
	case resp.StatusCode >= 500:
		L_warn("newsroom: server error", "status", resp.StatusCode)
		return []types.NewsroomArticle{}, fault.Network(fmt.Errorf("status %d", resp.StatusCode), "newsroom server error")
	case resp.StatusCode != http.StatusOK:
		L_warn("newsroom: unexpected status", "status", resp.StatusCode)
		return []types.NewsroomArticle{}, fault.Network(fmt.Errorf("status %d", resp.StatusCode), "newsroom request failed")
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return []types.NewsroomArticle{}, fault.Network(err, "newsroom response")
	}

	var parsed struct {
		Articles []types.NewsroomArticle `json:"articles"`
		Total    int                     `json:"total"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return []types.NewsroomArticle{}, fault.Parse(err, "newsroom response")
	}
	if parsed.Articles == nil {
		parsed.Articles = []types.NewsroomArticle{}
	}
	L_debug("newsroom: fetched", "search", search, "articles", len(parsed.Articles), "total", parsed.Total)
	return parsed.Articles, nil
}
