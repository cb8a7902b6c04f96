// Package wikiapi fetches the raw material the renderers consume from a
// MediaWiki action API: intro extracts, revision diffs and infobox data.
package wikiapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/lueurxax/wikirender/internal/core/errors"
	"github.com/lueurxax/wikirender/internal/platform/observability"
	"github.com/lueurxax/wikirender/internal/render/infobox"
)

// Client talks to one wiki's api.php endpoint.
type Client struct {
	endpoint *url.URL
	fetcher  *Fetcher
	logger   *zerolog.Logger
}

// Extract is a page's intro section as HTML.
type Extract struct {
	Title string
	HTML  string
}

// Comparison is the diff table between two revisions.
type Comparison struct {
	FromRev int64
	ToRev   int64
	HTML    string
}

// NewClient creates a client for endpoint, e.g. https://wiki.example/api.php.
func NewClient(endpoint string, fetcher *Fetcher, logger *zerolog.Logger) (*Client, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("parse wiki api url: %w", err)
	}

	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("wiki api url %q: %w", endpoint, errors.ErrInvalidConfig)
	}

	return &Client{endpoint: u, fetcher: fetcher, logger: logger}, nil
}

type apiError struct {
	Code string `json:"code"`
	Info string `json:"info"`
}

type envelope struct {
	Error *apiError `json:"error"`
}

// Extract fetches the intro of title.
func (c *Client) Extract(ctx context.Context, title string) (Extract, error) {
	var resp struct {
		envelope
		Query struct {
			Pages []struct {
				Title   string `json:"title"`
				Missing bool   `json:"missing"`
				Extract string `json:"extract"`
			} `json:"pages"`
		} `json:"query"`
	}

	params := url.Values{
		"action":    {"query"},
		"prop":      {"extracts"},
		"exintro":   {"1"},
		"redirects": {"1"},
		"titles":    {title},
	}

	if err := c.call(ctx, params, &resp); err != nil {
		return Extract{}, err
	}

	if len(resp.Query.Pages) == 0 || resp.Query.Pages[0].Missing {
		return Extract{}, fmt.Errorf("page %q: %w", title, errors.ErrNotFound)
	}

	page := resp.Query.Pages[0]
	if strings.TrimSpace(page.Extract) == "" {
		return Extract{}, fmt.Errorf("extract of %q: %w", title, errors.ErrEmptyResponse)
	}

	return Extract{Title: page.Title, HTML: page.Extract}, nil
}

// Compare fetches the diff table between two revisions.
func (c *Client) Compare(ctx context.Context, fromRev, toRev int64) (Comparison, error) {
	var resp struct {
		envelope
		Compare *struct {
			FromRev int64  `json:"fromrevid"`
			ToRev   int64  `json:"torevid"`
			Body    string `json:"body"`
		} `json:"compare"`
	}

	params := url.Values{
		"action":  {"compare"},
		"fromrev": {strconv.FormatInt(fromRev, 10)},
		"torev":   {strconv.FormatInt(toRev, 10)},
	}

	if err := c.call(ctx, params, &resp); err != nil {
		return Comparison{}, err
	}

	if resp.Compare == nil {
		return Comparison{}, fmt.Errorf("compare %d..%d: %w", fromRev, toRev, errors.ErrEmptyResponse)
	}

	return Comparison{FromRev: resp.Compare.FromRev, ToRev: resp.Compare.ToRev, HTML: resp.Compare.Body}, nil
}

// Infoboxes fetches and decodes the portable infoboxes of title. A page
// without infoboxes yields an empty slice.
func (c *Client) Infoboxes(ctx context.Context, title string) ([]infobox.Document, error) {
	var resp struct {
		envelope
		Parse struct {
			Title      string            `json:"title"`
			Properties map[string]string `json:"properties"`
		} `json:"parse"`
	}

	params := url.Values{
		"action":    {"parse"},
		"page":      {title},
		"prop":      {"properties"},
		"redirects": {"1"},
	}

	if err := c.call(ctx, params, &resp); err != nil {
		return nil, err
	}

	raw, ok := resp.Parse.Properties["infoboxes"]
	if !ok || raw == "" {
		return []infobox.Document{}, nil
	}

	docs, err := infobox.DecodeDocuments([]byte(raw))
	if err != nil {
		return nil, fmt.Errorf("infoboxes of %q: %w", title, err)
	}

	return docs, nil
}

// call performs one formatversion=2 JSON request and maps API error objects
// onto sentinels.
func (c *Client) call(ctx context.Context, params url.Values, out interface{}) (err error) {
	action := params.Get("action")
	params.Set("format", "json")
	params.Set("formatversion", "2")

	u := *c.endpoint
	u.RawQuery = params.Encode()

	c.logger.Debug().Str("action", action).Str("url", u.String()).Msg("wiki api request")

	start := time.Now()

	defer func() {
		observability.WikiAPIDuration.WithLabelValues(action).Observe(time.Since(start).Seconds())
		observability.WikiAPIRequests.WithLabelValues(action, requestStatus(err)).Inc()
	}()

	body, err := c.fetcher.Get(ctx, u.String())
	if err != nil {
		return fmt.Errorf("wiki api %s: %w", action, err)
	}

	if len(body) == 0 {
		return fmt.Errorf("wiki api %s: %w", action, errors.ErrEmptyResponse)
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return fmt.Errorf("decode wiki api response: %w", err)
	}

	if env.Error != nil {
		c.logger.Warn().Str("action", action).Str("code", env.Error.Code).Msg("wiki api error")
		return apiErr(env.Error)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode wiki api response: %w", err)
	}

	return nil
}

func requestStatus(err error) string {
	switch {
	case err == nil:
		return observability.StatusOK
	case errors.Is(err, errors.ErrNotFound):
		return observability.StatusNotFound
	default:
		return observability.StatusError
	}
}

var notFoundCodes = map[string]bool{
	"missingtitle":   true,
	"nosuchrevid":    true,
	"nosuchpageid":   true,
	"missingcontent": true,
}

func apiErr(e *apiError) error {
	if notFoundCodes[e.Code] {
		return fmt.Errorf("%s: %s: %w", e.Code, e.Info, errors.ErrNotFound)
	}

	return fmt.Errorf("%s: %s: %w", e.Code, e.Info, errors.ErrAPIError)
}
