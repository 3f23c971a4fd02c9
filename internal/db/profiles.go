package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/jonathan/jobhunt-pipeline/internal/types"
)

// SaveProfile inserts or replaces a candidate profile.
func (db *DB) SaveProfile(ctx context.Context, p *types.CandidateProfile) error {
	skills, err := json.Marshal(p.Skills)
	if err != nil {
		return fmt.Errorf("failed to marshal skills: %w", err)
	}
	history, err := json.Marshal(p.WorkHistory)
	if err != nil {
		return fmt.Errorf("failed to marshal work history: %w", err)
	}
	roles, err := json.Marshal(p.TargetRoles)
	if err != nil {
		return fmt.Errorf("failed to marshal target roles: %w", err)
	}
	locations, err := json.Marshal(p.PreferredLocations)
	if err != nil {
		return fmt.Errorf("failed to marshal preferred locations: %w", err)
	}

	_, err = db.pool.Exec(ctx,
		`INSERT INTO candidate_profiles (id, skills, work_history, target_roles,
		        preferred_locations, requires_sponsorship)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (id) DO UPDATE SET
		        skills = $2, work_history = $3, target_roles = $4,
		        preferred_locations = $5, requires_sponsorship = $6,
		        updated_at = NOW()`,
		p.ID, skills, history, roles, locations, p.RequiresSponsorship)
	if err != nil {
		return fmt.Errorf("failed to save profile: %w", err)
	}
	return nil
}

// GetProfile retrieves a candidate profile by ID.
func (db *DB) GetProfile(ctx context.Context, id string) (*types.CandidateProfile, error) {
	var p types.CandidateProfile
	var skills, history, roles, locations []byte

	err := db.pool.QueryRow(ctx,
		`SELECT id, skills, work_history, target_roles, preferred_locations,
		        requires_sponsorship
		 FROM candidate_profiles WHERE id = $1`, id,
	).Scan(&p.ID, &skills, &history, &roles, &locations, &p.RequiresSponsorship)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}

	if err := json.Unmarshal(skills, &p.Skills); err != nil {
		return nil, fmt.Errorf("failed to unmarshal skills: %w", err)
	}
	if err := json.Unmarshal(history, &p.WorkHistory); err != nil {
		return nil, fmt.Errorf("failed to unmarshal work history: %w", err)
	}
	if err := json.Unmarshal(roles, &p.TargetRoles); err != nil {
		return nil, fmt.Errorf("failed to unmarshal target roles: %w", err)
	}
	if err := json.Unmarshal(locations, &p.PreferredLocations); err != nil {
		return nil, fmt.Errorf("failed to unmarshal preferred locations: %w", err)
	}
	return &p, nil
}
