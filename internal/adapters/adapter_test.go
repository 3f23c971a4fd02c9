package adapters

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/jobhunt-pipeline/internal/sources"
)

var scrapedAt = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func selectorDef() sources.SourceDefinition {
	return sources.SourceDefinition{
		ID:      "acme",
		Name:    "Acme Careers",
		Company: "Acme",
		BaseURL: "https://careers.acme.test/jobs",
		Adapter: sources.KindSelector,
		Rules: &sources.SelectorRules{
			Item:        ".job-listing",
			Title:       ".job-title",
			Location:    ".job-location",
			Description: ".job-description",
			Link:        "a",
			PostedDate:  ".job-date",
		},
	}
}

const acmePage = `<html><body>
<div class="job-listing">
  <h3 class="job-title">Backend   Engineer</h3>
  <span class="job-location">Remote</span>
  <p class="job-description">Build Go services. Visa sponsorship available.</p>
  <span class="job-date">2026-02-20</span>
  <a href="/jobs/backend-engineer">Apply</a>
</div>
<div class="job-listing">
  <h3 class="job-title">Data Analyst</h3>
  <a href="https://apply.acme.test/data-analyst">Apply</a>
</div>
</body></html>`

func TestNew_ReturnsVariantPerKind(t *testing.T) {
	cases := []struct {
		kind sources.AdapterKind
	}{
		{sources.KindSelector},
		{sources.KindGreenhouse},
		{sources.KindLever},
		{sources.KindWorkday},
	}
	for _, tc := range cases {
		def := selectorDef()
		def.Adapter = tc.kind
		a, err := New(def)
		require.NoError(t, err)
		assert.Equal(t, tc.kind, a.Kind())
	}
}

func TestNew_SelectorWithoutRules(t *testing.T) {
	def := selectorDef()
	def.Rules = nil
	_, err := New(def)
	require.Error(t, err)
}

func TestSelectorAdapter_ExtractsFields(t *testing.T) {
	a, err := New(selectorDef())
	require.NoError(t, err)

	postings, err := a.Extract(acmePage, scrapedAt)
	require.NoError(t, err)
	require.Len(t, postings, 2)

	first := postings[0]
	assert.Equal(t, "acme", first.SourceID)
	assert.Equal(t, "Backend Engineer", first.Title, "whitespace runs collapse")
	assert.Equal(t, "Acme", first.Company)
	assert.Equal(t, "Remote", first.Location)
	assert.Contains(t, first.Description, "Visa sponsorship")
	assert.Equal(t, "https://careers.acme.test/jobs/backend-engineer", first.ApplicationURL,
		"relative links resolve against the base URL")
	assert.Equal(t, "2026-02-20", first.PostedDate)
	assert.Equal(t, scrapedAt, first.ScrapedAt)
}

func TestSelectorAdapter_PartialExtraction(t *testing.T) {
	a, err := New(selectorDef())
	require.NoError(t, err)

	postings, err := a.Extract(acmePage, scrapedAt)
	require.NoError(t, err)

	// Second listing has no location/description/date; fields are empty,
	// the posting is still produced.
	second := postings[1]
	assert.Equal(t, "Data Analyst", second.Title)
	assert.Empty(t, second.Location)
	assert.Empty(t, second.Description)
	assert.Equal(t, "https://apply.acme.test/data-analyst", second.ApplicationURL)
}

func TestSelectorAdapter_NoItemsIsParseError(t *testing.T) {
	a, err := New(selectorDef())
	require.NoError(t, err)

	_, err = a.Extract(`<html><body><p>We moved our careers page!</p></body></html>`, scrapedAt)
	require.Error(t, err)

	var parseErr *ParseError
	require.ErrorAs(t, err, &parseErr)
	assert.Equal(t, "acme", parseErr.SourceID)
	assert.Contains(t, parseErr.Message, ".job-listing")
}

const greenhousePage = `<html><body><div id="board">
<div class="opening">
  <a class="opening-title" href="/globex/jobs/123">Platform Engineer</a>
  <span class="location">New York, NY</span>
  <span class="department">Engineering</span>
</div>
<div class="opening">
  <a href="/globex/jobs/456">Recruiter</a>
  <span class="location">Remote</span>
</div>
</div></body></html>`

func TestGreenhouseAdapter_Extract(t *testing.T) {
	def := sources.SourceDefinition{
		ID:      "globex-gh",
		Name:    "Globex",
		BaseURL: "https://boards.greenhouse.io/globex",
		Adapter: sources.KindGreenhouse,
	}
	a, err := New(def)
	require.NoError(t, err)

	postings, err := a.Extract(greenhousePage, scrapedAt)
	require.NoError(t, err)
	require.Len(t, postings, 2)

	assert.Equal(t, "Platform Engineer", postings[0].Title)
	assert.Equal(t, "Globex", postings[0].Company, "company falls back to source name")
	assert.Equal(t, "New York, NY", postings[0].Location)
	assert.Equal(t, "Engineering", postings[0].Description)
	assert.Equal(t, "https://boards.greenhouse.io/globex/jobs/123", postings[0].ApplicationURL)

	// Title falls back to the anchor text when .opening-title is absent
	assert.Equal(t, "Recruiter", postings[1].Title)
}

func TestGreenhouseAdapter_DriftIsParseError(t *testing.T) {
	a, err := New(sources.SourceDefinition{ID: "gh", Name: "GH", BaseURL: "https://x.test", Adapter: sources.KindGreenhouse})
	require.NoError(t, err)

	_, err = a.Extract(`<html><body><div class="jobs-grid"></div></body></html>`, scrapedAt)
	var parseErr *ParseError
	require.ErrorAs(t, err, &parseErr)
}

const leverPage = `<html><body>
<div class="posting">
  <a class="posting-title" href="https://jobs.lever.co/hooli/abc"><h5>Site Reliability Engineer</h5></a>
  <span class="location">London</span>
  <span class="commitment">Full-time</span>
</div>
<div class="posting">
  <a class="posting-title" href="https://jobs.lever.co/hooli/def"><h5>Designer</h5></a>
  <span class="sort-by-location">Berlin</span>
  <span class="commitment">Contract</span>
</div>
</body></html>`

func TestLeverAdapter_Extract(t *testing.T) {
	def := sources.SourceDefinition{
		ID:      "hooli-lever",
		Name:    "Hooli",
		BaseURL: "https://jobs.lever.co/hooli",
		Adapter: sources.KindLever,
	}
	a, err := New(def)
	require.NoError(t, err)

	postings, err := a.Extract(leverPage, scrapedAt)
	require.NoError(t, err)
	require.Len(t, postings, 2)

	assert.Equal(t, "Site Reliability Engineer", postings[0].Title)
	assert.Equal(t, "London", postings[0].Location)
	assert.Equal(t, "Full-time", postings[0].Description)
	assert.Equal(t, "https://jobs.lever.co/hooli/abc", postings[0].ApplicationURL)

	assert.Equal(t, "Berlin", postings[1].Location, "location falls back to sort-by-location")
	assert.Equal(t, "Contract", postings[1].Description)
}

const workdayPage = `<html><body><ul data-automation-id="jobResults">
<li data-automation-id="jobFoundListItem">
  <a href="/External/job/engineer-1" data-automation-id="jobTitle">Software Engineer</a>
  <dd data-automation-id="locationLabel">Austin, TX</dd>
  <dd data-automation-id="postedOn">Posted 3 Days Ago</dd>
</li>
</ul></body></html>`

func TestWorkdayAdapter_Extract(t *testing.T) {
	def := sources.SourceDefinition{
		ID:      "initech-wd",
		Name:    "Initech",
		BaseURL: "https://initech.wd1.myworkdayjobs.com/External",
		Adapter: sources.KindWorkday,
	}
	a, err := New(def)
	require.NoError(t, err)

	postings, err := a.Extract(workdayPage, scrapedAt)
	require.NoError(t, err)
	require.Len(t, postings, 1)

	assert.Equal(t, "Software Engineer", postings[0].Title)
	assert.Equal(t, "Austin, TX", postings[0].Location)
	assert.Equal(t, "Posted 3 Days Ago", postings[0].PostedDate)
	assert.Equal(t, "https://initech.wd1.myworkdayjobs.com/External/job/engineer-1", postings[0].ApplicationURL)
}

func TestWorkdayAdapter_DriftIsParseError(t *testing.T) {
	a, err := New(sources.SourceDefinition{ID: "wd", Name: "WD", BaseURL: "https://x.test", Adapter: sources.KindWorkday})
	require.NoError(t, err)

	_, err = a.Extract(`<html><body><div>loading...</div></body></html>`, scrapedAt)
	var parseErr *ParseError
	require.ErrorAs(t, err, &parseErr)
}
