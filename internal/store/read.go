package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/closer/internal/ir"
)

// LoadCheckpoint reads a run back as a checkpoint. An empty fingerprint
// skips the problem check; otherwise it must match the stored one.
func (s *Store) LoadCheckpoint(ctx context.Context, runID, fingerprint string) (ir.Checkpoint, Run, error) {
	run, hasTerms, hasImages, err := s.readRun(ctx, runID)
	if err != nil {
		return ir.Checkpoint{}, Run{}, err
	}
	if fingerprint != "" && fingerprint != run.Fingerprint {
		return ir.Checkpoint{}, Run{}, &FingerprintError{RunID: runID, Stored: run.Fingerprint, Requested: fingerprint}
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT idx, coords, term, image
		FROM elements
		WHERE run_id = ?
		ORDER BY idx ASC
	`, runID)
	if err != nil {
		return ir.Checkpoint{}, Run{}, fmt.Errorf("query elements: %w", err)
	}
	defer rows.Close()

	cp := ir.Checkpoint{
		Pass:        run.Pass,
		ClosedMark:  run.ClosedMark,
		CurrentMark: run.CurrentMark,
		Completed:   run.Completed,
		Elements:    make([]ir.Element, 0, run.Size),
	}
	if hasTerms {
		cp.Terms = make([]ir.Term, 0, run.Size)
	}
	if hasImages {
		cp.Images = make([]int, 0, run.Size)
	}

	for rows.Next() {
		var idx int
		var coords string
		var term sql.NullString
		var image sql.NullInt64
		if err := rows.Scan(&idx, &coords, &term, &image); err != nil {
			return ir.Checkpoint{}, Run{}, fmt.Errorf("scan element: %w", err)
		}
		if idx != len(cp.Elements) {
			return ir.Checkpoint{}, Run{}, fmt.Errorf("run %s: element %d missing", runID, len(cp.Elements))
		}

		e, err := unmarshalCoords(coords)
		if err != nil {
			return ir.Checkpoint{}, Run{}, fmt.Errorf("element %d: %w", idx, err)
		}
		cp.Elements = append(cp.Elements, e)

		if hasTerms {
			if !term.Valid {
				return ir.Checkpoint{}, Run{}, fmt.Errorf("element %d: missing term", idx)
			}
			t, err := unmarshalTermRef(term.String, cp.Terms)
			if err != nil {
				return ir.Checkpoint{}, Run{}, fmt.Errorf("element %d: %w", idx, err)
			}
			cp.Terms = append(cp.Terms, t)
		}
		if hasImages {
			if !image.Valid {
				return ir.Checkpoint{}, Run{}, fmt.Errorf("element %d: missing image", idx)
			}
			cp.Images = append(cp.Images, int(image.Int64))
		}
	}
	if err := rows.Err(); err != nil {
		return ir.Checkpoint{}, Run{}, fmt.Errorf("iterate elements: %w", err)
	}

	if len(cp.Elements) != run.Size {
		return ir.Checkpoint{}, Run{}, fmt.Errorf("run %s: %d elements stored, expected %d", runID, len(cp.Elements), run.Size)
	}
	if got := ir.ClosureDigest(cp.Elements); got != run.Digest {
		return ir.Checkpoint{}, Run{}, fmt.Errorf("run %s: closure digest mismatch", runID)
	}
	return cp, run, nil
}

// ReadRun returns the metadata of a single run.
// Returns ErrRunNotFound if no run has the id.
func (s *Store) ReadRun(ctx context.Context, runID string) (Run, error) {
	run, _, _, err := s.readRun(ctx, runID)
	return run, err
}

func (s *Store) readRun(ctx context.Context, runID string) (Run, bool, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+runColumns+`, has_terms, has_images
		FROM runs
		WHERE id = ?
	`, runID)

	var run Run
	var hasTerms, hasImages bool
	err := row.Scan(append(runDest(&run), &hasTerms, &hasImages)...)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, false, false, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if err != nil {
		return Run{}, false, false, fmt.Errorf("read run %s: %w", runID, err)
	}
	return run, hasTerms, hasImages, nil
}

// ListRuns returns runs in save order: ORDER BY seq ASC, id COLLATE BINARY ASC.
// An empty fingerprint lists every run.
//
// Returns an empty slice (not nil) if there are no runs.
func (s *Store) ListRuns(ctx context.Context, fingerprint string) ([]Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs`
	var args []any
	if fingerprint != "" {
		query += ` WHERE fingerprint = ?`
		args = append(args, fingerprint)
	}
	query += ` ORDER BY seq ASC, id COLLATE BINARY ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		var run Run
		if err := rows.Scan(runDest(&run)...); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// LatestRun returns the most recently saved run for a problem.
// Returns ErrRunNotFound if the problem has no runs.
func (s *Store) LatestRun(ctx context.Context, fingerprint string) (Run, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+runColumns+`
		FROM runs
		WHERE fingerprint = ?
		ORDER BY seq DESC, id COLLATE BINARY DESC
		LIMIT 1
	`, fingerprint)

	var run Run
	err := row.Scan(runDest(&run)...)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("%w: no run for problem %s", ErrRunNotFound, short(fingerprint))
	}
	if err != nil {
		return Run{}, fmt.Errorf("latest run: %w", err)
	}
	return run, nil
}

const runColumns = `id, fingerprint, problem, pass, closed_mark, current_mark, completed, stop_reason, size, digest, seq`

func runDest(r *Run) []any {
	return []any{
		&r.ID, &r.Fingerprint, &r.Problem, &r.Pass, &r.ClosedMark, &r.CurrentMark,
		&r.Completed, &r.StopReason, &r.Size, &r.Digest, &r.Seq,
	}
}
