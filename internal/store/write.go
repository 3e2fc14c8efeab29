package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/closer/internal/ir"
)

// Run describes a stored closure run.
type Run struct {
	ID          string
	Fingerprint string
	Problem     string
	Pass        int
	ClosedMark  int
	CurrentMark int
	Completed   bool
	StopReason  string
	Size        int
	Digest      string
	Seq         int64
}

// SaveCheckpoint writes cp under run.ID, creating the run on first save.
// Only elements not yet stored are inserted: answers are append-only, so
// an element's coordinates, term and image never change once written.
//
// The run row is updated with the checkpoint marks and a fresh seq from
// the store's logical save counter. Run fields derived from cp (marks,
// size, digest) are overwritten.
func (s *Store) SaveCheckpoint(ctx context.Context, run Run, cp ir.Checkpoint) (Run, error) {
	if run.ID == "" {
		return Run{}, fmt.Errorf("save checkpoint: run id is required")
	}
	if cp.Terms != nil && len(cp.Terms) != len(cp.Elements) {
		return Run{}, fmt.Errorf("save checkpoint: %d terms for %d elements", len(cp.Terms), len(cp.Elements))
	}
	if cp.Images != nil && len(cp.Images) != len(cp.Elements) {
		return Run{}, fmt.Errorf("save checkpoint: %d images for %d elements", len(cp.Images), len(cp.Elements))
	}

	run.Pass = cp.Pass
	run.ClosedMark = cp.ClosedMark
	run.CurrentMark = cp.CurrentMark
	run.Completed = cp.Completed
	run.Size = len(cp.Elements)
	run.Digest = ir.ClosureDigest(cp.Elements)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Run{}, fmt.Errorf("save checkpoint: begin: %w", err)
	}
	defer tx.Rollback()

	var existing string
	err = tx.QueryRowContext(ctx, `SELECT fingerprint FROM runs WHERE id = ?`, run.ID).Scan(&existing)
	switch {
	case err == sql.ErrNoRows:
	case err != nil:
		return Run{}, fmt.Errorf("save checkpoint: %w", err)
	case existing != run.Fingerprint:
		return Run{}, &FingerprintError{RunID: run.ID, Stored: existing, Requested: run.Fingerprint}
	}

	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) + 1 FROM runs`).Scan(&run.Seq); err != nil {
		return Run{}, fmt.Errorf("save checkpoint: next seq: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs
		(id, fingerprint, problem, pass, closed_mark, current_mark, completed, stop_reason, size, digest, has_terms, has_images, seq)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			pass = excluded.pass,
			closed_mark = excluded.closed_mark,
			current_mark = excluded.current_mark,
			completed = excluded.completed,
			stop_reason = excluded.stop_reason,
			size = excluded.size,
			digest = excluded.digest,
			has_terms = excluded.has_terms,
			has_images = excluded.has_images,
			seq = excluded.seq
	`,
		run.ID,
		run.Fingerprint,
		run.Problem,
		run.Pass,
		run.ClosedMark,
		run.CurrentMark,
		run.Completed,
		run.StopReason,
		run.Size,
		run.Digest,
		cp.Terms != nil,
		cp.Images != nil,
		run.Seq,
	)
	if err != nil {
		return Run{}, fmt.Errorf("save checkpoint: write run: %w", err)
	}

	var stored int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM elements WHERE run_id = ?`, run.ID).Scan(&stored); err != nil {
		return Run{}, fmt.Errorf("save checkpoint: count elements: %w", err)
	}
	if stored > len(cp.Elements) {
		return Run{}, fmt.Errorf("save checkpoint: run %s already has %d elements, checkpoint has %d", run.ID, stored, len(cp.Elements))
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO elements (run_id, idx, coords, term, image)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING
	`)
	if err != nil {
		return Run{}, fmt.Errorf("save checkpoint: prepare: %w", err)
	}
	defer stmt.Close()

	ix := newTermIndex()
	for i, e := range cp.Elements {
		var term sql.NullString
		if cp.Terms != nil {
			// Earlier terms are indexed even when already stored, so new
			// terms can refer to them.
			if i >= stored {
				ref, err := marshalTermRef(cp.Terms[i], ix)
				if err != nil {
					return Run{}, fmt.Errorf("save checkpoint: element %d: %w", i, err)
				}
				term = sql.NullString{String: ref, Valid: true}
			}
			ix.add(cp.Terms[i], i)
		}
		if i < stored {
			continue
		}

		coords, err := marshalCoords(e)
		if err != nil {
			return Run{}, fmt.Errorf("save checkpoint: element %d: %w", i, err)
		}
		var image sql.NullInt64
		if cp.Images != nil {
			image = sql.NullInt64{Int64: int64(cp.Images[i]), Valid: true}
		}
		if _, err := stmt.ExecContext(ctx, run.ID, i, coords, term, image); err != nil {
			return Run{}, fmt.Errorf("save checkpoint: element %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return Run{}, fmt.Errorf("save checkpoint: commit: %w", err)
	}
	return run, nil
}

// DeleteRun removes a run and its elements. Deleting an unknown run is
// not an error.
func (s *Store) DeleteRun(ctx context.Context, runID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, runID); err != nil {
		return fmt.Errorf("delete run: %w", err)
	}
	return nil
}
