package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/jonathan/jobhunt-pipeline/internal/workflow"
)

const runColumns = `id, posting_id, profile_id, state, resume_state, attempts,
	error_kind, error_message, documents, checkpoint, version, created_at,
	updated_at, completed_at`

// CreateRun persists a new workflow run. The partial unique index on active
// runs turns a duplicate (posting, profile) pair into workflow.ErrRunActive.
func (db *DB) CreateRun(ctx context.Context, run *workflow.WorkflowRun) error {
	checkpoint, err := marshalCheckpoint(run.Checkpoint)
	if err != nil {
		return err
	}
	documents, err := json.Marshal(run.Documents)
	if err != nil {
		return fmt.Errorf("failed to marshal documents: %w", err)
	}
	_, err = db.pool.Exec(ctx,
		`INSERT INTO workflow_runs (id, posting_id, profile_id, state, resume_state,
		        attempts, error_kind, error_message, documents, checkpoint,
		        version, created_at, updated_at, completed_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		run.ID, run.PostingID, run.ProfileID, run.State, run.ResumeState,
		run.Attempts, run.ErrorKind, run.ErrorMessage, documents, checkpoint,
		run.Version, run.CreatedAt, run.UpdatedAt, run.CompletedAt)
	if err != nil {
		if isUniqueViolation(err, "ux_workflow_runs_active") {
			return workflow.ErrRunActive
		}
		return fmt.Errorf("failed to create workflow run: %w", err)
	}
	return nil
}

// UpdateRun persists the run if its version still matches the stored row,
// then bumps the version on both sides. Returns workflow.ErrVersionConflict
// when another writer got there first.
func (db *DB) UpdateRun(ctx context.Context, run *workflow.WorkflowRun) error {
	checkpoint, err := marshalCheckpoint(run.Checkpoint)
	if err != nil {
		return err
	}
	documents, err := json.Marshal(run.Documents)
	if err != nil {
		return fmt.Errorf("failed to marshal documents: %w", err)
	}
	tag, err := db.pool.Exec(ctx,
		`UPDATE workflow_runs SET
		        state = $1, resume_state = $2, attempts = $3, error_kind = $4,
		        error_message = $5, documents = $6, checkpoint = $7,
		        updated_at = $8, completed_at = $9, version = version + 1
		 WHERE id = $10 AND version = $11`,
		run.State, run.ResumeState, run.Attempts, run.ErrorKind,
		run.ErrorMessage, documents, checkpoint, run.UpdatedAt,
		run.CompletedAt, run.ID, run.Version)
	if err != nil {
		return fmt.Errorf("failed to update workflow run: %w", err)
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := db.pool.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM workflow_runs WHERE id = $1)`,
			run.ID).Scan(&exists); err != nil {
			return fmt.Errorf("failed to check workflow run: %w", err)
		}
		if !exists {
			return workflow.ErrRunNotFound
		}
		return workflow.ErrVersionConflict
	}
	run.Version++
	return nil
}

// GetRun retrieves a workflow run by ID.
func (db *DB) GetRun(ctx context.Context, id string) (*workflow.WorkflowRun, error) {
	row := db.pool.QueryRow(ctx,
		`SELECT `+runColumns+` FROM workflow_runs WHERE id = $1`, id)
	run, err := scanRun(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, workflow.ErrRunNotFound
		}
		return nil, fmt.Errorf("failed to get workflow run: %w", err)
	}
	return run, nil
}

// ActiveRuns returns every run in a non-terminal state.
func (db *DB) ActiveRuns(ctx context.Context) ([]*workflow.WorkflowRun, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT `+runColumns+` FROM workflow_runs
		 WHERE state NOT IN ('CONFIRMED', 'FAILED', 'ABANDONED')
		 ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("failed to list active runs: %w", err)
	}
	defer rows.Close()

	var out []*workflow.WorkflowRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan workflow run: %w", err)
		}
		out = append(out, run)
	}
	return out, rows.Err()
}

// RunStats counts workflow runs per state.
func (db *DB) RunStats(ctx context.Context) (map[workflow.State]int, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT state, COUNT(*) FROM workflow_runs GROUP BY state`)
	if err != nil {
		return nil, fmt.Errorf("failed to count workflow runs: %w", err)
	}
	defer rows.Close()

	stats := map[workflow.State]int{}
	for rows.Next() {
		var state workflow.State
		var count int
		if err := rows.Scan(&state, &count); err != nil {
			return nil, fmt.Errorf("failed to scan run stats: %w", err)
		}
		stats[state] = count
	}
	return stats, rows.Err()
}

func marshalCheckpoint(cp *workflow.Checkpoint) ([]byte, error) {
	if cp == nil {
		return nil, nil
	}
	data, err := json.Marshal(cp)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal checkpoint: %w", err)
	}
	return data, nil
}

func scanRun(row pgx.Row) (*workflow.WorkflowRun, error) {
	var run workflow.WorkflowRun
	var documents, checkpoint []byte
	err := row.Scan(&run.ID, &run.PostingID, &run.ProfileID, &run.State,
		&run.ResumeState, &run.Attempts, &run.ErrorKind, &run.ErrorMessage,
		&documents, &checkpoint, &run.Version, &run.CreatedAt, &run.UpdatedAt,
		&run.CompletedAt)
	if err != nil {
		return nil, err
	}
	if documents != nil {
		if err := json.Unmarshal(documents, &run.Documents); err != nil {
			return nil, fmt.Errorf("failed to unmarshal documents: %w", err)
		}
	}
	if checkpoint != nil {
		if err := json.Unmarshal(checkpoint, &run.Checkpoint); err != nil {
			return nil, fmt.Errorf("failed to unmarshal checkpoint: %w", err)
		}
	}
	return &run, nil
}
