package db

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/jonathan/jobhunt-pipeline/internal/types"
)

// SaveMatchResult appends a match result. Results are never updated in
// place; recomputing a match writes a new row with a newer computed_at.
func (db *DB) SaveMatchResult(ctx context.Context, m *types.MatchResult) error {
	factors, err := json.Marshal(m.Factors)
	if err != nil {
		return fmt.Errorf("failed to marshal match factors: %w", err)
	}

	_, err = db.pool.Exec(ctx,
		`INSERT INTO match_results (id, posting_id, profile_id, score, factors, computed_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		m.ID, m.PostingID, m.ProfileID, m.Score, factors, m.ComputedAt)
	if err != nil {
		return fmt.Errorf("failed to save match result: %w", err)
	}
	return nil
}

// ListMatchesForProfile returns the latest match result per posting for a
// profile, highest score first.
func (db *DB) ListMatchesForProfile(ctx context.Context, profileID string, limit int) ([]*types.MatchResult, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.pool.Query(ctx,
		`SELECT DISTINCT ON (posting_id)
		        id, posting_id, profile_id, score, factors, computed_at
		 FROM match_results
		 WHERE profile_id = $1
		 ORDER BY posting_id, computed_at DESC`,
		profileID)
	if err != nil {
		return nil, fmt.Errorf("failed to list match results: %w", err)
	}
	defer rows.Close()

	var out []*types.MatchResult
	for rows.Next() {
		var m types.MatchResult
		var factors []byte
		if err := rows.Scan(&m.ID, &m.PostingID, &m.ProfileID, &m.Score, &factors, &m.ComputedAt); err != nil {
			return nil, fmt.Errorf("failed to scan match result: %w", err)
		}
		if err := json.Unmarshal(factors, &m.Factors); err != nil {
			return nil, fmt.Errorf("failed to unmarshal match factors: %w", err)
		}
		out = append(out, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// DISTINCT ON forces posting_id ordering; re-sort by score for callers.
	sort.Slice(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
