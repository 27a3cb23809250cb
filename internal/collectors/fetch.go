// Package collectors holds the per-source ingestion pipelines. Each
// collector is a three-stage transform over one upstream response shape:
// fetch raw JSON, normalize timestamps and scores, persist through the
// time-series store's insert-or-ignore path.
package collectors

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Browser-like headers. CNN's dataviz endpoint blocks obvious bots, so the
// fetcher presents itself like the dashboard a human would use.
const browserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"

const (
	maxBodyBytes   = 4 << 20
	snippetLen     = 200
	defaultTimeout = 15 * time.Second
)

type Fetcher struct {
	client *http.Client
	log    *zap.SugaredLogger
}

func NewFetcher(timeout time.Duration, log *zap.SugaredLogger) *Fetcher {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Fetcher{
		client: &http.Client{Timeout: timeout},
		log:    log,
	}
}

// BrowserHeaders returns the header set for upstreams that require a
// browser-looking request. Referer is optional.
func BrowserHeaders(referer string) map[string]string {
	h := map[string]string{
		"User-Agent":      browserUserAgent,
		"Accept":          "application/json, text/plain, */*",
		"Accept-Language": "en-US,en;q=0.9",
	}
	if referer != "" {
		h["Referer"] = referer
	}
	return h
}

// JSON fetches url and decodes the response into out. The body is read as
// raw text first and parsed separately, so a malformed payload is logged
// with a truncated snippet instead of flooding the logs. Repeated polls must
// always see fresh upstream state, hence the no-cache header.
func (f *Fetcher) JSON(ctx context.Context, url string, headers map[string]string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	req.Header.Set("Cache-Control", "no-cache")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("fetch %s: unexpected status %d", url, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("read response body: %w", err)
	}

	if err := json.Unmarshal(body, out); err != nil {
		snippet := body
		if len(snippet) > snippetLen {
			snippet = snippet[:snippetLen]
		}
		f.log.Errorw("failed to parse upstream response",
			"url", url,
			"snippet", string(snippet),
		)
		return fmt.Errorf("invalid JSON response from %s: %w", url, err)
	}

	return nil
}
