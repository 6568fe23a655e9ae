// Package scraper fetches film review pages and extracts their metadata.
package scraper

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/codeGROOVE-dev/retry"
	"github.com/hashicorp/golang-lru/v2/expirable"

	"tsay-bot/pkg/club"
)

const (
	pageCacheSize = 64
	pageCacheTTL  = 30 * time.Minute
	maxPageBytes  = 4 << 20
	maxImageBytes = 8 << 20 // Largest image the platform accepts for an event cover
)

// Fetcher retrieves film pages and turns them into MovieInfo values.
type Fetcher struct {
	client *http.Client
	logger *slog.Logger
	pages  *expirable.LRU[string, []byte]
}

// New creates a new fetcher.
func New(client *http.Client, logger *slog.Logger) *Fetcher {
	return &Fetcher{
		client: client,
		logger: logger,
		pages:  expirable.NewLRU[string, []byte](pageCacheSize, nil, pageCacheTTL),
	}
}

// Fetch retrieves the page at pageURL and extracts the film title, release year
// and, when withImage is set, the backdrop image.
//
// Only a failed page retrieval or a missing title is an error. A missing year or
// image degrades the result instead.
func (f *Fetcher) Fetch(ctx context.Context, pageURL string, withImage bool) (*club.MovieInfo, error) {
	body, err := f.page(ctx, pageURL)
	if err != nil {
		f.logger.Error("Failed to retrieve webpage", "url", pageURL, "error", err)
		return nil, &club.FetchError{Kind: club.FetchRetrieval, URL: pageURL, Err: err}
	}

	info, backdrop, err := parsePage(bytes.NewReader(body), pageURL)
	if err != nil {
		f.logger.Error("Failed to read film title", "url", pageURL, "error", err)
		return nil, err
	}
	if info.Year == "" {
		f.logger.Warn("Failed to read release year", "url", pageURL)
	}

	if withImage && backdrop == "" {
		f.logger.Debug("Film page missing backdrop", "url", pageURL)
	} else if withImage {
		img, err := f.image(ctx, backdrop)
		if err != nil {
			f.logger.Debug("Failed to retrieve backdrop image", "url", backdrop, "error", err)
		} else {
			info.Image = img
		}
	}

	f.logger.Info("Finished scraping film page",
		"url", pageURL,
		"title", info.Title,
		"year", info.Year,
		"image_bytes", len(info.Image))
	return info, nil
}

func (f *Fetcher) page(ctx context.Context, pageURL string) ([]byte, error) {
	if body, ok := f.pages.Get(pageURL); ok {
		f.logger.Debug("Film page served from cache", "url", pageURL)
		return body, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	setBrowserHeaders(req)

	startTime := time.Now()
	resp, err := f.client.Do(req)
	duration := time.Since(startTime)
	if err != nil {
		return nil, fmt.Errorf("get page: %w", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			f.logger.Warn("Failed to close response body", "error", closeErr)
		}
	}()

	f.logger.Info("HTTP request completed",
		"url", pageURL,
		"status_code", resp.StatusCode,
		"duration_ms", duration.Milliseconds())

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return nil, fmt.Errorf("read page: %w", err)
	}
	f.pages.Add(pageURL, body)
	return body, nil
}

func (f *Fetcher) image(ctx context.Context, imageURL string) ([]byte, error) {
	var img []byte
	err := retry.Do(
		func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, http.NoBody)
			if err != nil {
				return retry.Unrecoverable(fmt.Errorf("create request: %w", err))
			}
			setBrowserHeaders(req)

			resp, err := f.client.Do(req)
			if err != nil {
				return err
			}
			defer func() {
				if closeErr := resp.Body.Close(); closeErr != nil {
					f.logger.Warn("Failed to close response body", "error", closeErr)
				}
			}()

			if resp.StatusCode >= 400 && resp.StatusCode < 500 {
				return retry.Unrecoverable(fmt.Errorf("HTTP %d", resp.StatusCode))
			}
			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("HTTP %d", resp.StatusCode)
			}

			data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes+1))
			if err != nil {
				return fmt.Errorf("read image: %w", err)
			}
			if len(data) > maxImageBytes {
				return retry.Unrecoverable(errors.New("image too large"))
			}
			if len(data) == 0 {
				return retry.Unrecoverable(errors.New("empty image"))
			}
			img = data
			return nil
		},
		retry.Attempts(3),
		retry.Delay(500*time.Millisecond),
		retry.MaxDelay(5*time.Second),
		retry.MaxJitter(time.Second),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, err error) {
			f.logger.Info("Retrying image fetch after error", "attempt", n, "url", imageURL, "error", err)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("after retries: %w", err)
	}
	return img, nil
}

// parsePage extracts the film metadata and the backdrop image URL from a page.
func parsePage(body io.Reader, pageURL string) (*club.MovieInfo, string, error) {
	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return nil, "", &club.FetchError{Kind: club.FetchRetrieval, URL: pageURL, Err: err}
	}

	title := strings.TrimSpace(doc.Find(".js-widont").First().Text())
	if title == "" {
		return nil, "", &club.FetchError{Kind: club.FetchTitleMissing, URL: pageURL}
	}

	info := &club.MovieInfo{
		Title: title,
		Year:  strings.TrimSpace(doc.Find(".releasedate").First().Text()),
		URL:   pageURL,
	}

	backdrop, _ := doc.Find("#backdrop").First().Attr("data-backdrop")
	return info, resolveURL(pageURL, strings.TrimSpace(backdrop)), nil
}

func resolveURL(base, ref string) string {
	if ref == "" {
		return ""
	}
	b, err := url.Parse(base)
	if err != nil {
		return ref
	}
	r, err := url.Parse(ref)
	if err != nil {
		return ""
	}
	return b.ResolveReference(r).String()
}

func setBrowserHeaders(req *http.Request) {
	req.Header.Set("User-Agent", "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36")
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,image/apng,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
}
