package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/jonathan/jobhunt-pipeline/internal/types"
)

const postingColumns = `id, title, company, location, job_type, description,
	application_url, fingerprint, sponsorship, excluded, source_id, status,
	first_seen, last_seen, miss_cycles`

// UpsertPosting inserts a posting or, when the fingerprint already exists,
// refreshes the mutable fields and the last-seen time. Identity fields and
// first_seen are never overwritten. An archived posting that reappears is
// restored to 'new'. Returns true when a new row was created.
func (db *DB) UpsertPosting(ctx context.Context, p *types.JobPosting) (bool, error) {
	var inserted bool
	err := db.pool.QueryRow(ctx,
		`INSERT INTO job_postings (id, title, company, location, job_type, description,
		        application_url, fingerprint, sponsorship, excluded, source_id, status,
		        first_seen, last_seen, miss_cycles)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, 0)
		 ON CONFLICT (fingerprint) DO UPDATE SET
		        location = EXCLUDED.location,
		        job_type = EXCLUDED.job_type,
		        description = EXCLUDED.description,
		        application_url = EXCLUDED.application_url,
		        sponsorship = EXCLUDED.sponsorship,
		        excluded = EXCLUDED.excluded,
		        last_seen = EXCLUDED.last_seen,
		        miss_cycles = 0,
		        status = CASE WHEN job_postings.status = 'archived'
		                      THEN 'new' ELSE job_postings.status END
		 RETURNING (xmax = 0)`,
		p.ID, p.Title, p.Company, p.Location, p.JobType, p.Description,
		p.ApplicationURL, p.Fingerprint, p.Sponsorship, p.Excluded, p.SourceID,
		p.Status, p.FirstSeen, p.LastSeen,
	).Scan(&inserted)
	if err != nil {
		return false, fmt.Errorf("failed to upsert posting: %w", err)
	}
	return inserted, nil
}

// GetPosting retrieves a posting by ID.
func (db *DB) GetPosting(ctx context.Context, id string) (*types.JobPosting, error) {
	row := db.pool.QueryRow(ctx,
		`SELECT `+postingColumns+` FROM job_postings WHERE id = $1`, id)
	p, err := scanPosting(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get posting: %w", err)
	}
	return p, nil
}

// ListPostings returns postings filtered by status, newest first. An empty
// status returns everything.
func (db *DB) ListPostings(ctx context.Context, status types.PostingStatus, limit int) ([]*types.JobPosting, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows pgx.Rows
	var err error
	if status == "" {
		rows, err = db.pool.Query(ctx,
			`SELECT `+postingColumns+` FROM job_postings
			 ORDER BY last_seen DESC LIMIT $1`, limit)
	} else {
		rows, err = db.pool.Query(ctx,
			`SELECT `+postingColumns+` FROM job_postings
			 WHERE status = $1 ORDER BY last_seen DESC LIMIT $2`, status, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list postings: %w", err)
	}
	defer rows.Close()

	var out []*types.JobPosting
	for rows.Next() {
		p, err := scanPosting(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan posting: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// SetPostingStatus updates the review status of a posting.
func (db *DB) SetPostingStatus(ctx context.Context, id string, status types.PostingStatus) error {
	tag, err := db.pool.Exec(ctx,
		`UPDATE job_postings SET status = $1 WHERE id = $2`, status, id)
	if err != nil {
		return fmt.Errorf("failed to set posting status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// RecordScrapeCycle closes out one scrape cycle for a source: postings seen
// this cycle get their miss counter reset (the upsert already did), the rest
// are incremented, and anything missing longer than archiveAfter consecutive
// cycles is archived. Returns the number archived.
func (db *DB) RecordScrapeCycle(ctx context.Context, sourceID string, seen []string, archiveAfter int) (int, error) {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin scrape cycle: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`UPDATE job_postings SET miss_cycles = miss_cycles + 1
		 WHERE source_id = $1
		   AND status <> 'archived'
		   AND NOT (fingerprint = ANY($2))`,
		sourceID, seen)
	if err != nil {
		return 0, fmt.Errorf("failed to record misses: %w", err)
	}

	tag, err := tx.Exec(ctx,
		`UPDATE job_postings SET status = 'archived'
		 WHERE source_id = $1
		   AND status <> 'archived'
		   AND miss_cycles > $2`,
		sourceID, archiveAfter)
	if err != nil {
		return 0, fmt.Errorf("failed to archive stale postings: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit scrape cycle: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func scanPosting(row pgx.Row) (*types.JobPosting, error) {
	var p types.JobPosting
	err := row.Scan(&p.ID, &p.Title, &p.Company, &p.Location, &p.JobType,
		&p.Description, &p.ApplicationURL, &p.Fingerprint, &p.Sponsorship,
		&p.Excluded, &p.SourceID, &p.Status, &p.FirstSeen, &p.LastSeen,
		&p.MissCycles)
	if err != nil {
		return nil, err
	}
	return &p, nil
}
