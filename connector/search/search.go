// Package search provides an HTTP client for JSON search APIs plus the tool
// wrapper that exposes it to agents. Transient failures are retried with
// exponential backoff and jitter.
package search

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/studymesh/studymesh/core"
	"github.com/studymesh/studymesh/tool"
)

const (
	defaultTimeout    = 15 * time.Second
	defaultMaxResults = 5
	maxRetries        = 3
	maxResponseSize   = 2 * 1024 * 1024
)

// Hit is one search result entry.
type Hit struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

// Options configures the search client.
type Options struct {
	APIKey     string
	MaxResults int
	HTTPClient *http.Client
}

// Client queries a JSON search endpoint of the form
// GET <endpoint>?q=<query>&count=<n> returning {"results": [...]}.
type Client struct {
	endpoint   string
	apiKey     string
	maxResults int
	httpClient *http.Client
}

// NewClient constructs a search client for the given endpoint.
func NewClient(endpoint string, optFns ...func(o *Options)) *Client {
	opts := Options{
		MaxResults: defaultMaxResults,
		HTTPClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	return &Client{
		endpoint:   endpoint,
		apiKey:     opts.APIKey,
		maxResults: opts.MaxResults,
		httpClient: opts.HTTPClient,
	}
}

// Search runs a query, retrying transient failures (network errors and 5xx
// responses) with exponential backoff and jitter.
func (c *Client) Search(ctx context.Context, query string) ([]Hit, error) {
	var hits []Hit

	operation := func() error {
		result, err := c.searchOnce(ctx, query)
		if err != nil {
			return err
		}
		hits = result
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 200 * time.Millisecond
	b.MaxInterval = 2 * time.Second

	if err := backoff.Retry(operation, backoff.WithContext(backoff.WithMaxRetries(b, maxRetries), ctx)); err != nil {
		return nil, err
	}

	return hits, nil
}

func (c *Client) searchOnce(ctx context.Context, query string) ([]Hit, error) {
	u, err := url.Parse(c.endpoint)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("invalid search endpoint: %w", err))
	}
	q := u.Query()
	q.Set("q", query)
	q.Set("count", strconv.Itoa(c.maxResults))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, backoff.Permanent(err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err // transient, retry
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return nil, fmt.Errorf("search service error: status %d", resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, backoff.Permanent(fmt.Errorf("search request failed: status %d", resp.StatusCode))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, err
	}

	var payload struct {
		Results []Hit `json:"results"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, backoff.Permanent(fmt.Errorf("failed to decode search response: %w", err))
	}

	return payload.Results, nil
}

// NewSearchTool exposes the client as an agent tool. When a normalizer is
// provided, each successful call also bridges recognized fields into session
// state.
func NewSearchTool(c *Client, n *tool.Normalizer) tool.Tool {
	ft := tool.NewFunctionTool(
		"web_search",
		"Search the web and return a list of result hits (title, url, snippet).",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"query": map[string]any{
					"type":        "string",
					"description": "The search query",
				},
			},
			"required": []string{"query"},
		},
		func(toolCtx *core.ToolContext, args map[string]any) (any, error) {
			query, _ := args["query"].(string)
			hits, err := c.Search(toolCtx.Context(), query)
			if err != nil {
				return nil, err
			}

			results := make([]any, 0, len(hits))
			for _, h := range hits {
				results = append(results, map[string]any{
					"title":   h.Title,
					"url":     h.URL,
					"snippet": h.Snippet,
				})
			}
			return map[string]any{"results": results}, nil
		},
	)

	if n == nil {
		return ft
	}
	return tool.Normalized(ft, n)
}
