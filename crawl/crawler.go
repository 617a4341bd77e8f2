// Package crawl fetches documentation pages starting from a base URL and
// extracts clean text, titles, section headers and internal links for the
// chunking stage.
package crawl

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Page is the extracted content of one crawled URL. The chunker consumes
// Text, URL, Title and SectionHeaders; Links feed the crawl frontier.
type Page struct {
	URL            string   `json:"url"`
	Title          string   `json:"page_title"`
	SectionHeaders []string `json:"section_headers"`
	Text           string   `json:"extracted_text"`
	Links          []string `json:"-"`
}

// FailedURL records one per-URL crawl failure. These are reported, never
// fatal.
type FailedURL struct {
	URL   string `json:"url"`
	Error string `json:"error"`
}

// Stats summarizes a crawl run.
type Stats struct {
	VisitedURLs   int         `json:"visited_urls"`
	FailedURLs    int         `json:"failed_urls"`
	FailedDetails []FailedURL `json:"failed_details"`
}

// Config configures a Crawler.
type Config struct {
	BaseURL string        `json:"base_url"`
	Timeout time.Duration `json:"timeout,omitempty"`
	// RequestsPerSecond throttles fetches to stay polite; <=0 disables
	// throttling.
	RequestsPerSecond float64 `json:"requests_per_second,omitempty"`
	// MaxPages bounds a run; <=0 means unbounded.
	MaxPages int `json:"max_pages,omitempty"`
}

// Crawler walks all internal links reachable from the base URL, one page at a
// time, within a single host.
type Crawler struct {
	base    *url.URL
	cfg     Config
	client  *http.Client
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewCrawler creates a crawler rooted at cfg.BaseURL.
func NewCrawler(cfg Config, logger *zap.Logger) (*Crawler, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}

	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("base url must be absolute: %q", cfg.BaseURL)
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}

	return &Crawler{
		base:    base,
		cfg:     cfg,
		client:  &http.Client{Timeout: cfg.Timeout},
		limiter: limiter,
		logger:  logger.With(zap.String("component", "crawler")),
	}, nil
}

// Crawl walks the site breadth-first from the base URL and returns every page
// with extractable content plus run stats. Individual page failures land in
// the stats, not in an error.
func (c *Crawler) Crawl(ctx context.Context) ([]Page, Stats, error) {
	visited := make(map[string]bool)
	var failed []FailedURL
	var pages []Page

	queue := []string{c.base.String()}

	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return pages, c.stats(visited, failed), err
		}
		if c.cfg.MaxPages > 0 && len(visited) >= c.cfg.MaxPages {
			c.logger.Warn("page cap reached", zap.Int("max_pages", c.cfg.MaxPages))
			break
		}

		pageURL := queue[0]
		queue = queue[1:]

		if visited[pageURL] {
			continue
		}
		visited[pageURL] = true

		page, err := c.FetchPage(ctx, pageURL)
		if err != nil {
			if errors.Is(err, ErrNoContent) {
				c.logger.Warn("no content region, skipping", zap.String("url", pageURL))
				continue
			}
			c.logger.Error("failed to crawl page", zap.String("url", pageURL), zap.Error(err))
			failed = append(failed, FailedURL{URL: pageURL, Error: err.Error()})
			continue
		}

		pages = append(pages, *page)

		for _, link := range c.normalizeLinks(pageURL, page.Links) {
			if !visited[link] {
				queue = append(queue, link)
			}
		}
	}

	stats := c.stats(visited, failed)
	c.logger.Info("crawl finished",
		zap.Int("pages", len(pages)),
		zap.Int("visited", stats.VisitedURLs),
		zap.Int("failed", stats.FailedURLs))

	return pages, stats, nil
}

func (c *Crawler) stats(visited map[string]bool, failed []FailedURL) Stats {
	return Stats{
		VisitedURLs:   len(visited),
		FailedURLs:    len(failed),
		FailedDetails: failed,
	}
}

// FetchPage fetches one URL and extracts its content. Returns ErrNoContent
// when the page lacks an article/main region.
func (c *Crawler) FetchPage(ctx context.Context, pageURL string) (*Page, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", pageURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("fetch %s: status %d", pageURL, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", pageURL, err)
	}

	ex, err := extractPage(string(body))
	if err != nil {
		return nil, err
	}

	c.logger.Debug("fetched page",
		zap.String("url", pageURL),
		zap.String("title", ex.title),
		zap.Int("text_len", len(ex.text)))

	return &Page{
		URL:            pageURL,
		Title:          ex.title,
		SectionHeaders: ex.headers,
		Text:           ex.text,
		Links:          ex.links,
	}, nil
}

// normalizeLinks resolves raw hrefs against the page URL and keeps only
// same-host links, with fragments stripped so each page is visited once.
func (c *Crawler) normalizeLinks(pageURL string, hrefs []string) []string {
	pageU, err := url.Parse(pageURL)
	if err != nil {
		pageU = c.base
	}

	var out []string
	seen := make(map[string]bool)
	for _, href := range hrefs {
		if href == "" || strings.HasPrefix(href, "#") {
			continue
		}

		ref, err := url.Parse(href)
		if err != nil {
			continue
		}
		abs := pageU.ResolveReference(ref)

		if abs.Host != c.base.Host || (abs.Scheme != "http" && abs.Scheme != "https") {
			continue
		}

		abs.Fragment = ""
		link := strings.TrimRight(abs.String(), "/")
		if link == "" || seen[link] {
			continue
		}
		seen[link] = true
		out = append(out, link)
	}
	return out
}
