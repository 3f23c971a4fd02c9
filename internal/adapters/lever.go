package adapters

import (
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/jonathan/jobhunt-pipeline/internal/sources"
	"github.com/jonathan/jobhunt-pipeline/internal/types"
)

// LeverAdapter extracts postings from Lever board pages: one .posting per
// job, an h5 title, and .location / .commitment category spans. The
// commitment text ("Full-time", "Contract") feeds job-type classification
// downstream.
type LeverAdapter struct {
	def sources.SourceDefinition
}

// Kind implements Adapter.
func (a *LeverAdapter) Kind() sources.AdapterKind { return sources.KindLever }

// Extract implements Adapter.
func (a *LeverAdapter) Extract(html string, scrapedAt time.Time) ([]types.RawPosting, error) {
	doc, err := parseDoc(a.def.ID, html)
	if err != nil {
		return nil, err
	}

	items := doc.Find(".posting")
	if items.Length() == 0 {
		return nil, &ParseError{
			SourceID: a.def.ID,
			Message:  "no .posting elements found on Lever board",
		}
	}

	postings := make([]types.RawPosting, 0, items.Length())
	items.Each(func(_ int, item *goquery.Selection) {
		location := extractText(item, ".location")
		if location == "" {
			location = extractText(item, ".sort-by-location")
		}

		postings = append(postings, types.RawPosting{
			SourceID:       a.def.ID,
			Title:          extractText(item, "h5"),
			Company:        companyFor(a.def),
			Location:       location,
			Description:    extractText(item, ".commitment"),
			ApplicationURL: extractLink(item, "a.posting-title, a", a.def.BaseURL),
			ScrapedAt:      scrapedAt,
		})
	})
	return postings, nil
}
