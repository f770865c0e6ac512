package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
)

const (
	fetchMaxBody        = 5 * 1024 * 1024
	fetchDefaultTimeout = 30 * time.Second
	fetchMaxTimeout     = 120 * time.Second
)

const webfetchDescription = `Fetch a URL and return its content.

- url must start with http:// or https://.
- format selects the rendering: "markdown" converts HTML to readable
  markdown, "text" strips markup, "html" returns the raw body.
- Responses over 5MB are refused. This tool never writes files.`

// WebFetchTool retrieves remote content for the model, read-only.
type WebFetchTool struct {
	workDir string
	client  *http.Client
}

type webfetchParams struct {
	URL     string `json:"url"`
	Format  string `json:"format"`
	Timeout int    `json:"timeout,omitempty"`
}

// NewWebFetchTool creates the webfetch tool.
func NewWebFetchTool(workDir string) *WebFetchTool {
	return &WebFetchTool{
		workDir: workDir,
		client:  &http.Client{},
	}
}

func (t *WebFetchTool) ID() string          { return "webfetch" }
func (t *WebFetchTool) Description() string { return webfetchDescription }

func (t *WebFetchTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"url": {
				"type": "string",
				"description": "The URL to fetch"
			},
			"format": {
				"type": "string",
				"enum": ["text", "markdown", "html"],
				"description": "How to render the response body"
			},
			"timeout": {
				"type": "integer",
				"description": "Timeout in seconds (max 120)"
			}
		},
		"required": ["url", "format"]
	}`)
}

func (t *WebFetchTool) Execute(ctx context.Context, input json.RawMessage, toolCtx *Context) (*Result, error) {
	var params webfetchParams
	if err := json.Unmarshal(input, &params); err != nil {
		return nil, fmt.Errorf("invalid input: %w", err)
	}
	if !strings.HasPrefix(params.URL, "http://") && !strings.HasPrefix(params.URL, "https://") {
		return nil, fmt.Errorf("url must start with http:// or https://")
	}
	switch params.Format {
	case "text", "markdown", "html":
	default:
		return nil, fmt.Errorf("format must be one of text, markdown, html")
	}

	timeout := fetchDefaultTimeout
	if params.Timeout > 0 {
		timeout = min(time.Duration(params.Timeout)*time.Second, fetchMaxTimeout)
	}
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	body, contentType, err := t.fetch(reqCtx, params.URL, params.Format)
	if err != nil {
		return nil, err
	}

	output, err := renderBody(body, contentType, params.Format)
	if err != nil {
		return nil, err
	}

	return &Result{
		Title:  fmt.Sprintf("%s (%s)", params.URL, contentType),
		Output: output,
		Metadata: map[string]any{
			"url":          params.URL,
			"format":       params.Format,
			"content_type": contentType,
			"bytes":        len(body),
		},
	}, nil
}

// fetch performs the GET and enforces the body-size ceiling.
func (t *WebFetchTool) fetch(ctx context.Context, url, format string) (body string, contentType string, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Accept", acceptHeader(format))

	resp, err := t.client.Do(req)
	if err != nil {
		return "", "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", "", fmt.Errorf("request failed with status %d", resp.StatusCode)
	}
	if resp.ContentLength > fetchMaxBody {
		return "", "", fmt.Errorf("response exceeds the 5MB limit")
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, fetchMaxBody+1))
	if err != nil {
		return "", "", fmt.Errorf("read response: %w", err)
	}
	if len(raw) > fetchMaxBody {
		return "", "", fmt.Errorf("response exceeds the 5MB limit")
	}
	return string(raw), resp.Header.Get("Content-Type"), nil
}

// acceptHeader biases content negotiation toward the requested format.
func acceptHeader(format string) string {
	switch format {
	case "markdown":
		return "text/markdown;q=1.0, text/x-markdown;q=0.9, text/plain;q=0.8, text/html;q=0.7, */*;q=0.1"
	case "text":
		return "text/plain;q=1.0, text/markdown;q=0.9, text/html;q=0.8, */*;q=0.1"
	default:
		return "text/html;q=1.0, application/xhtml+xml;q=0.9, text/plain;q=0.8, */*;q=0.1"
	}
}

// renderBody post-processes the body: HTML is converted or stripped when
// the caller asked for markdown or text; everything else passes through.
func renderBody(body, contentType, format string) (string, error) {
	isHTML := strings.Contains(contentType, "text/html")
	switch {
	case format == "markdown" && isHTML:
		return htmlToMarkdown(body)
	case format == "text" && isHTML:
		return htmlToText(body)
	default:
		return body, nil
	}
}

// htmlToText strips markup and non-content elements.
func htmlToText(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", fmt.Errorf("parse HTML: %w", err)
	}
	doc.Find("script, style, noscript, iframe, object, embed").Remove()
	return strings.TrimSpace(doc.Text()), nil
}

// htmlToMarkdown renders HTML as fenced-code, ATX-heading markdown.
func htmlToMarkdown(html string) (string, error) {
	converter := md.NewConverter("", true, &md.Options{
		HeadingStyle:     "atx",
		HorizontalRule:   "---",
		BulletListMarker: "-",
		CodeBlockStyle:   "fenced",
		EmDelimiter:      "*",
	})
	converter.Remove("script", "style", "meta", "link")

	out, err := converter.ConvertString(html)
	if err != nil {
		return "", fmt.Errorf("convert HTML: %w", err)
	}
	return out, nil
}
