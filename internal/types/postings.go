// Package types provides type definitions for structured data used throughout the jobhunt pipeline.
package types

import (
	"time"

	"github.com/google/uuid"
)

// JobType classifies the employment type of a posting.
type JobType string

const (
	JobTypeFullTime JobType = "full-time"
	JobTypePartTime JobType = "part-time"
	JobTypeContract JobType = "contract"
	JobTypeUnknown  JobType = "unknown"
)

// PostingStatus tracks where a posting sits in the review lifecycle.
type PostingStatus string

const (
	PostingStatusNew      PostingStatus = "new"
	PostingStatusReviewed PostingStatus = "reviewed"
	PostingStatusApplied  PostingStatus = "applied"
	PostingStatusRejected PostingStatus = "rejected"
	PostingStatusArchived PostingStatus = "archived"
)

// RawPosting is the unprocessed record an adapter extracts from a fetched page.
// It is ephemeral; the normalizer turns it into a JobPosting or drops it.
type RawPosting struct {
	SourceID       string
	Title          string
	Company        string
	Location       string
	Description    string
	ApplicationURL string
	PostedDate     string // source-native format, possibly empty
	ScrapedAt      time.Time
}

// JobPosting is the normalized, durable form of a scraped posting.
type JobPosting struct {
	ID             uuid.UUID     `json:"id"`
	Title          string        `json:"title"`
	Company        string        `json:"company"`
	Location       string        `json:"location"`
	JobType        JobType       `json:"job_type"`
	Description    string        `json:"description"`
	ApplicationURL string        `json:"application_url"`
	Fingerprint    string        `json:"fingerprint"`
	Sponsorship    bool          `json:"sponsorship"` // description mentions visa sponsorship
	Excluded       bool          `json:"excluded"`    // description hit an exclusion keyword
	SourceID       string        `json:"source_id"`
	Status         PostingStatus `json:"status"`
	FirstSeen      time.Time     `json:"first_seen"`
	LastSeen       time.Time     `json:"last_seen"`
	MissCycles     int           `json:"miss_cycles"` // consecutive scrape cycles the posting was absent
}
