// Package prewarmer proactively submits low-priority requests into a
// RequestQueue so their results are already in the disk cache before a real
// caller asks for them.
package prewarmer

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/volleygo/volley"
)

// Prewarmer submits GET requests for a batch of URLs into a RequestQueue at
// PriorityLow, so they settle into the disk cache without competing with
// foreground traffic for Network Dispatcher attention.
type Prewarmer struct {
	queue        *volley.RequestQueue
	httpClient   *http.Client
	userAgent    string
	timeout      time.Duration
	forceRefresh bool
}

// Config holds configuration options for the Prewarmer.
type Config struct {
	// Queue is the RequestQueue to submit prewarm requests into. Required.
	Queue *volley.RequestQueue

	// SitemapClient is used only to fetch and parse XML sitemaps
	// (PrewarmFromSitemap*) — it never touches the pipeline's cache.
	// Optional, defaults to http.DefaultClient.
	SitemapClient *http.Client

	UserAgent    string
	Timeout      time.Duration
	ForceRefresh bool
}

// Result is the outcome of prewarming a single URL.
type Result struct {
	URL      string
	Success  bool
	Error    error
	Duration time.Duration
	Size     int
}

// Stats aggregates the Results from one Prewarm call.
type Stats struct {
	Total         int
	Successful    int
	Failed        int
	TotalDuration time.Duration
	TotalBytes    int64
	Errors        []error
}

// ProgressCallback is called after each URL settles. It may be called from
// multiple goroutines and must be safe for concurrent use.
type ProgressCallback func(result *Result, completed, total int)

// New builds a Prewarmer over queue.
func New(config Config) (*Prewarmer, error) {
	if config.Queue == nil {
		return nil, errors.New("prewarmer: Queue is required")
	}
	client := config.SitemapClient
	if client == nil {
		client = http.DefaultClient
	}
	userAgent := config.UserAgent
	if userAgent == "" {
		userAgent = "volley-prewarmer/1.0"
	}
	timeout := config.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Prewarmer{
		queue:        config.Queue,
		httpClient:   client,
		userAgent:    userAgent,
		timeout:      timeout,
		forceRefresh: config.ForceRefresh,
	}, nil
}

func rawBytesParser(resp *volley.NetworkResponse) ([]byte, *volley.CacheEntry, bool, error) {
	ttlMs, softTTLMs := volley.ComputeFreshness(resp.Headers, time.Now())
	return resp.Data, &volley.CacheEntry{Data: resp.Data, TTL: ttlMs, SoftTTL: softTTLMs}, false, nil
}

// Prewarm submits every URL to the queue at PriorityLow and blocks until all
// have been delivered or errored.
func (p *Prewarmer) Prewarm(ctx context.Context, urls []string) (*Stats, error) {
	return p.PrewarmWithCallback(ctx, urls, nil)
}

// PrewarmWithCallback is Prewarm with a per-URL progress callback.
func (p *Prewarmer) PrewarmWithCallback(ctx context.Context, urls []string, callback ProgressCallback) (*Stats, error) {
	stats := &Stats{Total: len(urls)}
	start := time.Now()

	var mu sync.Mutex
	var completed int32
	var wg sync.WaitGroup
	wg.Add(len(urls))

	for _, u := range urls {
		u := u
		opts := []volley.RequestOption{volley.WithPriority(volley.PriorityLow)}
		if p.forceRefresh {
			opts = append(opts, volley.WithHeaders(map[string]string{"Cache-Control": "no-cache"}))
		}

		reqStart := time.Now()
		req := volley.NewRequest(volley.MethodGet, u, rawBytesParser,
			func(data []byte, intermediate bool) {
				p.record(stats, &mu, callback, len(urls), &completed, &Result{
					URL: u, Success: true, Duration: time.Since(reqStart), Size: len(data),
				})
				wg.Done()
			},
			func(err error) {
				p.record(stats, &mu, callback, len(urls), &completed, &Result{
					URL: u, Success: false, Error: err, Duration: time.Since(reqStart),
				})
				wg.Done()
			},
			opts...,
		)
		p.queue.Submit(req)
	}

	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()

	select {
	case <-done:
	case <-ctx.Done():
		stats.TotalDuration = time.Since(start)
		return stats, ctx.Err()
	}

	stats.TotalDuration = time.Since(start)
	return stats, nil
}

func (p *Prewarmer) record(stats *Stats, mu *sync.Mutex, callback ProgressCallback, total int, completed *int32, r *Result) {
	mu.Lock()
	if r.Success {
		stats.Successful++
		stats.TotalBytes += int64(r.Size)
	} else {
		stats.Failed++
		if r.Error != nil {
			stats.Errors = append(stats.Errors, r.Error)
		}
	}
	mu.Unlock()

	n := atomic.AddInt32(completed, 1)
	if callback != nil {
		callback(r, int(n), total)
	}
}

// PrewarmFromSitemap fetches and parses an XML sitemap (or sitemap index,
// recursively) and prewarms every URL it lists.
func (p *Prewarmer) PrewarmFromSitemap(ctx context.Context, sitemapURL string) (*Stats, error) {
	return p.PrewarmFromSitemapWithCallback(ctx, sitemapURL, nil)
}

// PrewarmFromSitemapWithCallback is PrewarmFromSitemap with a progress callback.
func (p *Prewarmer) PrewarmFromSitemapWithCallback(ctx context.Context, sitemapURL string, callback ProgressCallback) (*Stats, error) {
	urls, err := p.parseSitemap(ctx, sitemapURL)
	if err != nil {
		return nil, fmt.Errorf("prewarmer: parse sitemap: %w", err)
	}
	return p.PrewarmWithCallback(ctx, urls, callback)
}

// Sitemap is an XML sitemap's <urlset>.
type Sitemap struct {
	XMLName xml.Name     `xml:"urlset"`
	URLs    []SitemapURL `xml:"url"`
}

// SitemapURL is one <url> entry in a Sitemap.
type SitemapURL struct {
	Loc string `xml:"loc"`
}

// SitemapIndex is an XML sitemap index's <sitemapindex>.
type SitemapIndex struct {
	XMLName  xml.Name          `xml:"sitemapindex"`
	Sitemaps []SitemapLocation `xml:"sitemap"`
}

// SitemapLocation is one <sitemap> entry in a SitemapIndex.
type SitemapLocation struct {
	Loc string `xml:"loc"`
}

func (p *Prewarmer) parseSitemap(ctx context.Context, sitemapURL string) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sitemapURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", p.userAgent)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("sitemap returned HTTP %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var index SitemapIndex
	if err := xml.Unmarshal(body, &index); err == nil && len(index.Sitemaps) > 0 {
		var all []string
		for _, sm := range index.Sitemaps {
			nested, err := p.parseSitemap(ctx, sm.Loc)
			if err != nil {
				continue
			}
			all = append(all, nested...)
		}
		return all, nil
	}

	var sitemap Sitemap
	if err := xml.Unmarshal(body, &sitemap); err != nil {
		return nil, fmt.Errorf("parse sitemap XML: %w", err)
	}
	urls := make([]string, 0, len(sitemap.URLs))
	for _, u := range sitemap.URLs {
		if loc := strings.TrimSpace(u.Loc); loc != "" {
			urls = append(urls, loc)
		}
	}
	return urls, nil
}
