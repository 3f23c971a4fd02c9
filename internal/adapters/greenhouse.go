package adapters

import (
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/jonathan/jobhunt-pipeline/internal/sources"
	"github.com/jonathan/jobhunt-pipeline/internal/types"
)

// GreenhouseAdapter extracts postings from Greenhouse board pages. The board
// markup is stable across tenants: one .opening per job with a title link
// and a .location span. Greenhouse boards do not show posting dates.
type GreenhouseAdapter struct {
	def sources.SourceDefinition
}

// Kind implements Adapter.
func (a *GreenhouseAdapter) Kind() sources.AdapterKind { return sources.KindGreenhouse }

// Extract implements Adapter.
func (a *GreenhouseAdapter) Extract(html string, scrapedAt time.Time) ([]types.RawPosting, error) {
	doc, err := parseDoc(a.def.ID, html)
	if err != nil {
		return nil, err
	}

	openings := doc.Find(".opening")
	if openings.Length() == 0 {
		return nil, &ParseError{
			SourceID: a.def.ID,
			Message:  "no .opening elements found on Greenhouse board",
		}
	}

	postings := make([]types.RawPosting, 0, openings.Length())
	openings.Each(func(_ int, item *goquery.Selection) {
		title := extractText(item, ".opening-title")
		if title == "" {
			title = extractText(item, "a")
		}
		// Department gives the normalizer a job-type signal the board
		// itself does not expose.
		description := extractText(item, ".department")

		postings = append(postings, types.RawPosting{
			SourceID:       a.def.ID,
			Title:          title,
			Company:        companyFor(a.def),
			Location:       extractText(item, ".location"),
			Description:    description,
			ApplicationURL: extractLink(item, "a", a.def.BaseURL),
			ScrapedAt:      scrapedAt,
		})
	})
	return postings, nil
}
