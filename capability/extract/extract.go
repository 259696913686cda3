// Package extract implements the content-extraction capability by fetching
// the page over HTTP and pulling readable text plus metadata out of the HTML
// with goquery. It is deliberately heuristic: paragraphs joined in document
// order, boilerplate tags stripped, OpenGraph/meta fallbacks for title,
// author, date and description.
package extract

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/stashpipe/stashpipe/capability"
)

const maxBodyBytes = 4 << 20 // 4 MiB cap on fetched pages

// Options configure the HTML extractor.
type Options struct {
	Client    *http.Client
	UserAgent string
	// MinContentLength rejects pages whose extracted text is shorter than
	// this, treating them as extraction failures rather than content.
	MinContentLength int
}

// Extractor fetches and parses web pages. Implements capability.Extractor.
type Extractor struct {
	opts Options
}

// New constructs an extractor with optional overrides.
func New(optFns ...func(o *Options)) *Extractor {
	opts := Options{
		Client:           &http.Client{Timeout: 20 * time.Second},
		UserAgent:        "stashpipe/1.0 (+https://github.com/stashpipe/stashpipe)",
		MinContentLength: 80,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Extractor{opts: opts}
}

// Fetch downloads the page and extracts readable content and metadata.
func (e *Extractor) Fetch(ctx context.Context, url string) (*capability.Extraction, error) {
	if url == "" {
		return nil, fmt.Errorf("extract: empty url")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("extract: build request: %w", err)
	}
	req.Header.Set("User-Agent", e.opts.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := e.opts.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("extract: fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("extract: fetch %s: unexpected status %d", url, resp.StatusCode)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("extract: read body: %w", err)
	}

	ext, err := e.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("extract: %s: %w", url, err)
	}
	return ext, nil
}

// Parse extracts content and metadata from raw HTML. Split out from Fetch so
// it can run against stored payloads.
func (e *Extractor) Parse(raw []byte) (*capability.Extraction, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	doc.Find("script, style, noscript, nav, footer, header, aside, form").Remove()

	content := collectText(doc)
	if len(content) < e.opts.MinContentLength {
		return nil, fmt.Errorf("page yielded no readable content (%d chars)", len(content))
	}

	return &capability.Extraction{
		Content:       content,
		Title:         pageTitle(doc),
		Author:        metaContent(doc, `meta[name="author"]`, `meta[property="article:author"]`),
		PublishedDate: metaContent(doc, `meta[property="article:published_time"]`, `meta[name="date"]`),
		Description:   metaContent(doc, `meta[property="og:description"]`, `meta[name="description"]`),
		Raw:           raw,
	}, nil
}

// collectText prefers an article or main element when present, falling back
// to body paragraphs.
func collectText(doc *goquery.Document) string {
	for _, scope := range []string{"article", "main", "body"} {
		var parts []string
		doc.Find(scope).First().Find("p, h1, h2, h3, li").Each(func(_ int, s *goquery.Selection) {
			text := strings.TrimSpace(s.Text())
			if text != "" {
				parts = append(parts, text)
			}
		})
		if joined := strings.Join(parts, "\n\n"); len(joined) > 0 {
			return joined
		}
	}
	return strings.TrimSpace(doc.Find("body").Text())
}

func pageTitle(doc *goquery.Document) string {
	if og := metaContent(doc, `meta[property="og:title"]`); og != "" {
		return og
	}
	return strings.TrimSpace(doc.Find("title").First().Text())
}

func metaContent(doc *goquery.Document, selectors ...string) string {
	for _, sel := range selectors {
		if v, ok := doc.Find(sel).First().Attr("content"); ok {
			if v = strings.TrimSpace(v); v != "" {
				return v
			}
		}
	}
	return ""
}
