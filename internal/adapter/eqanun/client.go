// Package eqanun is the HTTP client for the e-qanun.az catalog API.
package eqanun

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/qanunbot/eqanun-notifier/internal/config"
)

// Item is one raw search result from /getDetailSearch.
type Item struct {
	ID         int64   `json:"id"`
	Title      string  `json:"title"`
	TypeName   string  `json:"typeName"`
	StatusName string  `json:"statusName"`
	AcceptDate *string `json:"acceptDate"` // "14.08.2025"
	ClassCode  *string `json:"classCode"`  // "2025-08-14"
}

// Page is one page of search results.
type Page struct {
	Items      []Item
	TotalCount int
}

type searchResponse struct {
	Data       []Item `json:"data"`
	TotalCount int    `json:"totalCount"`
}

// Client fetches legal act listings from the e-qanun.az API. A non-2xx
// status or malformed body is degraded to an empty page with a warning; only
// transport failures surface as errors.
type Client struct {
	baseURL string
	http    *http.Client
	log     *slog.Logger
}

// New creates a catalog API client.
func New(cfg config.SourceConfig, log *slog.Logger) *Client {
	return &Client{
		baseURL: cfg.BaseURL,
		http:    &http.Client{Timeout: cfg.Timeout},
		log:     log.With(slog.String("component", "eqanun")),
	}
}

// FetchPage fetches one page ordered by date descending. start is a 0-based
// offset; length is the page size (1..200).
func (c *Client) FetchPage(ctx context.Context, start, length int) (Page, error) {
	params := url.Values{
		"start":          {strconv.Itoa(start)},
		"length":         {strconv.Itoa(length)},
		"orderColumn":    {"8"},
		"orderDirection": {"desc"},
		"title":          {"true"},
		"codeType":       {"1"},
		"dateType":       {"1"},
		"statusId":       {"1"},
		"secondType":     {"4"},
		"specialDate":    {"false"},
		"array":          {""},
	}

	endpoint := c.baseURL + "/getDetailSearch?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Page{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; EqanunBot/1.0)")
	req.Header.Set("Accept", "application/json, text/plain, */*")
	req.Header.Set("Origin", "https://e-qanun.az")
	req.Header.Set("Referer", "https://e-qanun.az/")
	req.Header.Set("Accept-Language", "az,en;q=0.9")

	resp, err := c.http.Do(req)
	if err != nil {
		return Page{}, fmt.Errorf("fetch page start=%d: %w", start, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.log.Warn("api returned non-ok status",
			slog.Int("status", resp.StatusCode),
			slog.Int("start", start))
		return Page{}, nil
	}

	var body searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		c.log.Warn("api returned malformed body",
			slog.Int("start", start),
			slog.String("error", err.Error()))
		return Page{}, nil
	}

	return Page{Items: body.Data, TotalCount: body.TotalCount}, nil
}

// UniqueTypeNames fetches one page and returns the distinct typeName values
// it contains. Used for ad hoc inspection of the source taxonomy.
func (c *Client) UniqueTypeNames(ctx context.Context, limit int) ([]string, error) {
	page, err := c.FetchPage(ctx, 0, limit)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(page.Items))
	var names []string
	for _, item := range page.Items {
		if item.TypeName == "" {
			continue
		}
		if _, ok := seen[item.TypeName]; ok {
			continue
		}
		seen[item.TypeName] = struct{}{}
		names = append(names, item.TypeName)
	}
	return names, nil
}
