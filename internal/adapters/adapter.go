// Package adapters implements the extraction strategies that turn fetched
// page HTML into raw posting records. Each sources.AdapterKind has one
// variant here. Adapters are pure functions over already-fetched content and
// are safe for concurrent use.
package adapters

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/jonathan/jobhunt-pipeline/internal/sources"
	"github.com/jonathan/jobhunt-pipeline/internal/types"
)

// ParseError represents a structural extraction mismatch: the page fetched
// fine but the expected DOM shape was not there. This signals selector
// drift and is never retried; retrying will not fix a changed page.
type ParseError struct {
	SourceID string
	Message  string
	Cause    error
}

func (e *ParseError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("parse error for source %s: %s: %v", e.SourceID, e.Message, e.Cause)
	}
	return fmt.Sprintf("parse error for source %s: %s", e.SourceID, e.Message)
}

func (e *ParseError) Unwrap() error {
	return e.Cause
}

// Adapter extracts raw postings from a fetched listing page.
type Adapter interface {
	// Extract returns the postings found in the page. Individual postings
	// may have empty optional fields; a page with none of the expected
	// structure returns a *ParseError.
	Extract(html string, scrapedAt time.Time) ([]types.RawPosting, error)

	// Kind reports which adapter variant this is.
	Kind() sources.AdapterKind
}

// New returns the adapter for a source definition. The selector variant is
// driven by the definition's rules; platform variants ignore them.
func New(def sources.SourceDefinition) (Adapter, error) {
	switch def.Adapter {
	case sources.KindSelector:
		if def.Rules == nil {
			return nil, fmt.Errorf("source %s: selector adapter requires rules", def.ID)
		}
		return &SelectorAdapter{def: def, rules: *def.Rules}, nil
	case sources.KindGreenhouse:
		return &GreenhouseAdapter{def: def}, nil
	case sources.KindLever:
		return &LeverAdapter{def: def}, nil
	case sources.KindWorkday:
		return &WorkdayAdapter{def: def}, nil
	default:
		return nil, fmt.Errorf("source %s: unknown adapter kind %q", def.ID, def.Adapter)
	}
}

// parseDoc parses HTML, mapping parser failures to ParseError.
func parseDoc(sourceID, html string) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, &ParseError{SourceID: sourceID, Message: "failed to parse HTML", Cause: err}
	}
	return doc, nil
}

// extractText returns the trimmed text of the first match of selector within
// sel, or "" when nothing matches. Absent fields are acceptable; the
// normalizer decides what is required.
func extractText(sel *goquery.Selection, selector string) string {
	if selector == "" {
		return ""
	}
	found := sel.Find(selector)
	if found.Length() == 0 {
		return ""
	}
	return collapseSpace(found.First().Text())
}

// extractLink returns the href of the first match of selector, resolved
// against the source's base URL when relative.
func extractLink(sel *goquery.Selection, selector, baseURL string) string {
	if selector == "" {
		selector = "a"
	}
	href, ok := sel.Find(selector).First().Attr("href")
	if !ok || href == "" {
		return ""
	}
	return resolveURL(baseURL, href)
}

func resolveURL(baseURL, href string) string {
	base, err := url.Parse(baseURL)
	if err != nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return base.ResolveReference(ref).String()
}

// collapseSpace trims and collapses runs of whitespace to single spaces.
func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// companyFor returns the configured company fallback, defaulting to the
// source's display name. Listing pages rarely repeat the company.
func companyFor(def sources.SourceDefinition) string {
	if def.Company != "" {
		return def.Company
	}
	return def.Name
}
