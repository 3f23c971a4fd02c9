package adapters

import (
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/jonathan/jobhunt-pipeline/internal/sources"
	"github.com/jonathan/jobhunt-pipeline/internal/types"
)

// WorkdayAdapter extracts postings from Workday career pages. Workday
// renders listings client-side, so sources using this adapter normally set
// use_browser; the adapter itself only cares about the rendered DOM, which
// tags everything with data-automation-id attributes.
type WorkdayAdapter struct {
	def sources.SourceDefinition
}

// Kind implements Adapter.
func (a *WorkdayAdapter) Kind() sources.AdapterKind { return sources.KindWorkday }

// Extract implements Adapter.
func (a *WorkdayAdapter) Extract(html string, scrapedAt time.Time) ([]types.RawPosting, error) {
	doc, err := parseDoc(a.def.ID, html)
	if err != nil {
		return nil, err
	}

	items := doc.Find("li[data-automation-id='jobFoundListItem'], [data-automation-id='jobResults'] li, .WGDC")
	if items.Length() == 0 {
		return nil, &ParseError{
			SourceID: a.def.ID,
			Message:  "no job list items found on Workday page",
		}
	}

	postings := make([]types.RawPosting, 0, items.Length())
	items.Each(func(_ int, item *goquery.Selection) {
		postings = append(postings, types.RawPosting{
			SourceID:       a.def.ID,
			Title:          extractText(item, "[data-automation-id='jobTitle']"),
			Company:        companyFor(a.def),
			Location:       extractText(item, "[data-automation-id='locationLabel'], [data-automation-id='locations']"),
			ApplicationURL: extractLink(item, "a", a.def.BaseURL),
			PostedDate:     extractText(item, "[data-automation-id='postedOn']"),
			ScrapedAt:      scrapedAt,
		})
	})
	return postings, nil
}
