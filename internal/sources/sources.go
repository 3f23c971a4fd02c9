// Package sources holds the registry of scrape targets. A SourceDefinition
// describes one job board or company career page and which extraction
// strategy applies to it. Definitions are pure data; behavior lives in the
// adapters package.
package sources

import (
	"fmt"
	"time"
)

// AdapterKind selects the extraction strategy for a source. The set is
// closed: new site shapes become new variants, not executable config.
type AdapterKind string

const (
	KindSelector   AdapterKind = "selector"
	KindWorkday    AdapterKind = "workday"
	KindGreenhouse AdapterKind = "greenhouse"
	KindLever      AdapterKind = "lever"
)

// ParseAdapterKind converts a raw string to an AdapterKind, returning an
// error for unknown values.
func ParseAdapterKind(s string) (AdapterKind, error) {
	k := AdapterKind(s)
	switch k {
	case KindSelector, KindWorkday, KindGreenhouse, KindLever:
		return k, nil
	}
	return "", fmt.Errorf("unknown adapter kind %q", s)
}

// SelectorRules is the data-only parameter payload for the selector adapter.
// Item locates each job element; the field selectors are resolved within it.
type SelectorRules struct {
	Item        string `json:"item"`
	Title       string `json:"title"`
	Location    string `json:"location,omitempty"`
	Description string `json:"description,omitempty"`
	Link        string `json:"link,omitempty"`
	PostedDate  string `json:"posted_date,omitempty"`
}

// SourceDefinition describes one scrape target. Immutable once loaded for a
// run; reloads apply from the next scheduling cycle.
type SourceDefinition struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	BaseURL     string         `json:"base_url"`
	Company     string         `json:"company,omitempty"` // fallback when pages omit the company name
	Adapter     AdapterKind    `json:"adapter"`
	Rules       *SelectorRules `json:"rules,omitempty"` // selector adapter only
	Enabled     bool           `json:"enabled"`
	UseBrowser  bool           `json:"use_browser,omitempty"` // render with headless browser before extraction
	PolitenessS int            `json:"politeness_seconds,omitempty"`
}

// Politeness returns the minimum spacing between requests to this source.
// Zero means the 5 second default; a negative value disables the interval.
func (d *SourceDefinition) Politeness() time.Duration {
	if d.PolitenessS < 0 {
		return 0
	}
	if d.PolitenessS == 0 {
		return 5 * time.Second
	}
	return time.Duration(d.PolitenessS) * time.Second
}

// Validate checks invariants the JSON schema cannot express cross-field.
func (d *SourceDefinition) Validate() error {
	if d.ID == "" {
		return fmt.Errorf("source missing id")
	}
	if d.BaseURL == "" {
		return fmt.Errorf("source %s missing base_url", d.ID)
	}
	if _, err := ParseAdapterKind(string(d.Adapter)); err != nil {
		return fmt.Errorf("source %s: %w", d.ID, err)
	}
	if d.Adapter == KindSelector && (d.Rules == nil || d.Rules.Item == "" || d.Rules.Title == "") {
		return fmt.Errorf("source %s: selector adapter requires rules with item and title", d.ID)
	}
	return nil
}
