// Package normalize canonicalizes raw postings into durable JobPosting
// records: whitespace cleanup, job-type classification, sponsorship and
// exclusion keyword scans, and the content fingerprint used for dedup.
package normalize

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jonathan/jobhunt-pipeline/internal/config"
	"github.com/jonathan/jobhunt-pipeline/internal/types"
)

// fingerprintWindow bounds how much of the description participates in the
// fingerprint, so cosmetic edits further down don't split a posting into
// duplicates.
const fingerprintWindow = 500

// ValidationError represents a raw posting that fails required-field
// checks. The posting is dropped and logged, never stored.
type ValidationError struct {
	SourceID string
	Field    string
	Message  string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for source %s: %s: %s", e.SourceID, e.Field, e.Message)
}

// negativePhrases defeat a positive sponsorship keyword hit. A posting that
// says "we cannot sponsor H1B visas" mentions sponsorship without offering
// it.
var negativePhrases = []string{
	"no h1b", "not sponsor", "no sponsor", "not providing sponsor",
	"cannot sponsor", "do not sponsor", "doesn't sponsor", "does not sponsor",
	"no visa", "not eligible for sponsorship", "unable to sponsor",
}

// Normalizer applies the canonicalization rules. Keyword lists come from
// tuning configuration, not code.
type Normalizer struct {
	tuning *config.Tuning
}

// New creates a Normalizer. A nil tuning uses the built-in defaults.
func New(tuning *config.Tuning) *Normalizer {
	if tuning == nil {
		tuning = config.DefaultTuning()
	}
	return &Normalizer{tuning: tuning}
}

// Normalize converts a raw posting into a JobPosting ready for
// upsert-by-fingerprint. Title and company are required; everything else
// degrades gracefully.
func (n *Normalizer) Normalize(raw types.RawPosting) (*types.JobPosting, error) {
	title := CollapseWhitespace(raw.Title)
	company := CollapseWhitespace(raw.Company)
	description := CollapseWhitespace(raw.Description)

	if title == "" {
		return nil, &ValidationError{SourceID: raw.SourceID, Field: "title", Message: "required field is empty"}
	}
	if company == "" {
		return nil, &ValidationError{SourceID: raw.SourceID, Field: "company", Message: "required field is empty"}
	}

	scanText := strings.ToLower(title + " " + description)
	scrapedAt := raw.ScrapedAt
	if scrapedAt.IsZero() {
		scrapedAt = time.Now().UTC()
	}

	return &types.JobPosting{
		ID:             uuid.New(),
		Title:          title,
		Company:        company,
		Location:       CollapseWhitespace(raw.Location),
		JobType:        ClassifyJobType(scanText),
		Description:    description,
		ApplicationURL: strings.TrimSpace(raw.ApplicationURL),
		Fingerprint:    Fingerprint(title, company, description),
		Sponsorship:    n.mentionsSponsorship(scanText),
		Excluded:       n.hitsExclusion(scanText),
		SourceID:       raw.SourceID,
		Status:         types.PostingStatusNew,
		FirstSeen:      scrapedAt,
		LastSeen:       scrapedAt,
	}, nil
}

// CollapseWhitespace trims and collapses runs of whitespace, including
// newlines, to single spaces.
func CollapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// ClassifyJobType maps free-form employment text onto the closed enum.
// Unrecognized strings map to unknown, never dropped.
func ClassifyJobType(lowerText string) types.JobType {
	switch {
	case strings.Contains(lowerText, "part-time") || strings.Contains(lowerText, "part time"):
		return types.JobTypePartTime
	case strings.Contains(lowerText, "contract") || strings.Contains(lowerText, "contractor") ||
		strings.Contains(lowerText, "freelance"):
		return types.JobTypeContract
	case strings.Contains(lowerText, "full-time") || strings.Contains(lowerText, "full time") ||
		strings.Contains(lowerText, "permanent"):
		return types.JobTypeFullTime
	default:
		return types.JobTypeUnknown
	}
}

// Fingerprint computes the stable dedup hash over lower-cased title,
// lower-cased company, and the first 500 characters of the normalized
// description. Deterministic: the same raw form always hashes identically.
func Fingerprint(title, company, description string) string {
	desc := strings.ToLower(description)
	if len(desc) > fingerprintWindow {
		desc = desc[:fingerprintWindow]
	}
	h := sha256.New()
	h.Write([]byte(strings.ToLower(title)))
	h.Write([]byte{0})
	h.Write([]byte(strings.ToLower(company)))
	h.Write([]byte{0})
	h.Write([]byte(desc))
	return hex.EncodeToString(h.Sum(nil))
}

// mentionsSponsorship reports whether the text positively signals visa
// sponsorship. Negative phrases beat positive keywords.
func (n *Normalizer) mentionsSponsorship(lowerText string) bool {
	hit := false
	for _, kw := range n.tuning.SponsorshipKeywords {
		if strings.Contains(lowerText, strings.ToLower(kw)) {
			hit = true
			break
		}
	}
	if !hit {
		return false
	}
	for _, neg := range negativePhrases {
		if strings.Contains(lowerText, neg) {
			return false
		}
	}
	return true
}

func (n *Normalizer) hitsExclusion(lowerText string) bool {
	for _, kw := range n.tuning.ExclusionKeywords {
		if strings.Contains(lowerText, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}
