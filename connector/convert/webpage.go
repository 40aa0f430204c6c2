package convert

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"

	"github.com/studymesh/studymesh/core"
	"github.com/studymesh/studymesh/tool"
)

const (
	maxResponseSize = 5 * 1024 * 1024 // 5MB
	defaultTimeout  = 30 * time.Second
)

// WebpageOptions configures the webpage converter.
type WebpageOptions struct {
	HTTPClient *http.Client
	UserAgent  string
}

// WebpageConverter fetches a URL and converts its HTML to markdown.
type WebpageConverter struct {
	client    *http.Client
	userAgent string
}

// NewWebpageConverter constructs a webpage converter.
func NewWebpageConverter(optFns ...func(o *WebpageOptions)) *WebpageConverter {
	opts := WebpageOptions{
		HTTPClient: &http.Client{Timeout: defaultTimeout},
		UserAgent:  "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &WebpageConverter{client: opts.HTTPClient, userAgent: opts.UserAgent}
}

// Convert implements Converter for http(s) URLs.
func (c *WebpageConverter) Convert(ctx context.Context, pageURL string) (*Document, error) {
	if !strings.HasPrefix(pageURL, "http://") && !strings.HasPrefix(pageURL, "https://") {
		return nil, fmt.Errorf("URL must start with http:// or https://")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,text/plain;q=0.8,*/*;q=0.1")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("request failed with status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if len(body) > maxResponseSize {
		return nil, fmt.Errorf("response too large (exceeds 5MB limit)")
	}

	content := string(body)
	contentType := resp.Header.Get("Content-Type")

	title := pageURL
	markdown := content

	if strings.Contains(contentType, "text/html") {
		doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
		if err != nil {
			return nil, fmt.Errorf("failed to parse HTML: %w", err)
		}

		if t := strings.TrimSpace(doc.Find("title").First().Text()); t != "" {
			title = t
		}

		doc.Find("script, style, noscript, iframe, object, embed").Remove()

		html, err := doc.Find("body").Html()
		if err != nil || strings.TrimSpace(html) == "" {
			html = content
		}

		markdown, err = htmlToMarkdown(html)
		if err != nil {
			return nil, fmt.Errorf("failed to convert HTML to markdown: %w", err)
		}
	}

	return &Document{
		ContentMarkdown: markdown,
		Metadata: map[string]any{
			"title": title,
			"url":   pageURL,
		},
	}, nil
}

func htmlToMarkdown(html string) (string, error) {
	converter := md.NewConverter("", true, &md.Options{
		HeadingStyle:     "atx",
		HorizontalRule:   "---",
		BulletListMarker: "-",
		CodeBlockStyle:   "fenced",
		EmDelimiter:      "*",
	})
	return converter.ConvertString(html)
}

// NewWebpageTool exposes a converter as an agent tool returning
// {content_markdown, metadata}. With a normalizer attached, recognized fields
// are also bridged into session state.
func NewWebpageTool(c Converter, n *tool.Normalizer) tool.Tool {
	ft := tool.NewFunctionTool(
		"convert_webpage",
		"Fetch a webpage and convert its content to markdown study material.",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"url": map[string]any{
					"type":        "string",
					"description": "The http(s) URL of the page to convert",
				},
			},
			"required": []string{"url"},
		},
		func(toolCtx *core.ToolContext, args map[string]any) (any, error) {
			pageURL, _ := args["url"].(string)
			doc, err := c.Convert(toolCtx.Context(), pageURL)
			if err != nil {
				return nil, err
			}
			return map[string]any{
				"content_markdown": doc.ContentMarkdown,
				"metadata":         doc.Metadata,
			}, nil
		},
	)

	if n == nil {
		return ft
	}
	return tool.Normalized(ft, n)
}
