package adapters

import (
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/jonathan/jobhunt-pipeline/internal/sources"
	"github.com/jonathan/jobhunt-pipeline/internal/types"
)

// SelectorAdapter is the generic CSS-rule-driven variant. The rules come
// from the source definition, so new sites with conventional markup need
// configuration, not code.
type SelectorAdapter struct {
	def   sources.SourceDefinition
	rules sources.SelectorRules
}

// Kind implements Adapter.
func (a *SelectorAdapter) Kind() sources.AdapterKind { return sources.KindSelector }

// Extract walks the configured item selector and pulls each field with its
// rule. A missing field yields an empty value rather than aborting the
// page; zero matching items is a ParseError.
func (a *SelectorAdapter) Extract(html string, scrapedAt time.Time) ([]types.RawPosting, error) {
	doc, err := parseDoc(a.def.ID, html)
	if err != nil {
		return nil, err
	}

	items := doc.Find(a.rules.Item)
	if items.Length() == 0 {
		return nil, &ParseError{
			SourceID: a.def.ID,
			Message:  "no elements matched item selector " + a.rules.Item,
		}
	}

	postings := make([]types.RawPosting, 0, items.Length())
	items.Each(func(_ int, item *goquery.Selection) {
		postings = append(postings, types.RawPosting{
			SourceID:       a.def.ID,
			Title:          extractText(item, a.rules.Title),
			Company:        companyFor(a.def),
			Location:       extractText(item, a.rules.Location),
			Description:    extractText(item, a.rules.Description),
			ApplicationURL: extractLink(item, a.rules.Link, a.def.BaseURL),
			PostedDate:     extractText(item, a.rules.PostedDate),
			ScrapedAt:      scrapedAt,
		})
	})
	return postings, nil
}
