// Package fetch - browser.go provides headless browser rendering for sources
// that build their listings with JavaScript (Workday in particular).
package fetch

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/chromedp/chromedp"
)

// BrowserFetcher renders pages in a headless browser before returning the
// HTML. Requires Chrome/Chromium on the system. Each Fetch uses a fresh
// browser context; long-lived automation sessions live in the automation
// package, not here.
type BrowserFetcher struct {
	timeout time.Duration
	verbose bool
}

// NewBrowserFetcher creates a browser-backed Fetcher.
func NewBrowserFetcher(timeout time.Duration, verbose bool) *BrowserFetcher {
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	return &BrowserFetcher{timeout: timeout, verbose: verbose}
}

// Fetch navigates to the URL, waits for the page to render, and returns the
// resulting HTML.
func (f *BrowserFetcher) Fetch(ctx context.Context, urlStr string) (*Result, error) {
	if f.verbose {
		log.Printf("[browser] rendering %s", urlStr)
	}

	allocCtx, cancel := chromedp.NewExecAllocator(ctx,
		append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.Flag("headless", true),
			chromedp.Flag("disable-gpu", true),
			chromedp.Flag("no-sandbox", true),
			chromedp.Flag("disable-dev-shm-usage", true),
		)...,
	)
	defer cancel()

	browserCtx, cancel := chromedp.NewContext(allocCtx)
	defer cancel()

	browserCtx, cancel = context.WithTimeout(browserCtx, f.timeout)
	defer cancel()

	var html string
	err := chromedp.Run(browserCtx,
		chromedp.Navigate(urlStr),
		chromedp.WaitReady("body"),
		// Give client-side rendering a moment to populate listings
		chromedp.Sleep(3*time.Second),
		chromedp.OuterHTML("html", &html),
	)
	if err != nil {
		return nil, &Error{
			URL:     urlStr,
			Message: "browser rendering failed",
			Cause:   fmt.Errorf("chromedp: %w", err),
		}
	}

	if f.verbose {
		log.Printf("[browser] rendered %s: %d bytes", urlStr, len(html))
	}

	return &Result{URL: urlStr, HTML: html, StatusCode: 200}, nil
}
