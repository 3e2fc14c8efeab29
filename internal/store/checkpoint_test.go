package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/closer/internal/engine"
	"github.com/roach88/closer/internal/ir"
	"github.com/roach88/closer/internal/testutil"
)

func TestSaveCheckpoint_RoundTrip(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	cp := createTestCheckpoint()
	cp.Images = []int{0, 1, 0, 0, 1}

	saved, err := s.SaveCheckpoint(ctx, createTestRun("run-1", "fp-a"), cp)
	require.NoError(t, err)
	assert.Equal(t, int64(1), saved.Seq)
	assert.Equal(t, 5, saved.Size)
	assert.Equal(t, ir.ClosureDigest(cp.Elements), saved.Digest)

	got, run, err := s.LoadCheckpoint(ctx, "run-1", "fp-a")
	require.NoError(t, err)
	assert.Equal(t, saved, run)
	assert.Equal(t, cp.Pass, got.Pass)
	assert.Equal(t, cp.ClosedMark, got.ClosedMark)
	assert.Equal(t, cp.CurrentMark, got.CurrentMark)
	assert.False(t, got.Completed)
	assert.Equal(t, cp.Elements, got.Elements)
	assert.Equal(t, cp.Images, got.Images)

	require.Len(t, got.Terms, len(cp.Terms))
	for i := range cp.Terms {
		assert.True(t, ir.TermsEqual(cp.Terms[i], got.Terms[i]), "term %d: %s vs %s", i, cp.Terms[i], got.Terms[i])
	}
	// plus(y,neg(x)) reuses the loaded neg(x) node.
	assert.Same(t, got.Terms[3], got.Terms[4].Children()[1])
}

func TestSaveCheckpoint_TermsStoredByReference(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	_, err := s.SaveCheckpoint(ctx, createTestRun("run-1", "fp-a"), createTestCheckpoint())
	require.NoError(t, err)

	var term string
	err = s.db.QueryRow(`SELECT term FROM elements WHERE run_id = 'run-1' AND idx = 4`).Scan(&term)
	require.NoError(t, err)
	assert.Equal(t, `{"arity":2,"op":"plus","refs":[1,3]}`, term)

	err = s.db.QueryRow(`SELECT term FROM elements WHERE run_id = 'run-1' AND idx = 2`).Scan(&term)
	require.NoError(t, err)
	assert.Equal(t, `{"arity":0,"op":"zero","refs":[]}`, term)
}

func TestSaveCheckpoint_ForeignTermStoredAsTree(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	cp := createTestCheckpoint()
	// A term whose child is not the term of any earlier element.
	cp.Terms[4] = ir.NewNonVariable(plus, ir.Variable{Name: "y"}, ir.NewNonVariable(neg, ir.Variable{Name: "x"}))

	_, err := s.SaveCheckpoint(ctx, createTestRun("run-1", "fp-a"), cp)
	require.NoError(t, err)

	got, _, err := s.LoadCheckpoint(ctx, "run-1", "")
	require.NoError(t, err)
	assert.Equal(t, "plus(y,neg(x))", got.Terms[4].String())
}

func TestSaveCheckpoint_WithoutTerms(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	cp := createTestCheckpoint()
	cp.Terms = nil

	_, err := s.SaveCheckpoint(ctx, createTestRun("run-1", "fp-a"), cp)
	require.NoError(t, err)

	got, _, err := s.LoadCheckpoint(ctx, "run-1", "fp-a")
	require.NoError(t, err)
	assert.Nil(t, got.Terms)
	assert.Nil(t, got.Images)
	assert.Equal(t, cp.Elements, got.Elements)
}

func TestSaveCheckpoint_AppendOnly(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	full := createTestCheckpoint()

	partial := full
	partial.Elements = full.Elements[:3]
	partial.Terms = full.Terms[:3]
	partial.ClosedMark, partial.CurrentMark, partial.Pass = 0, 3, 1

	first, err := s.SaveCheckpoint(ctx, createTestRun("run-1", "fp-a"), partial)
	require.NoError(t, err)
	second, err := s.SaveCheckpoint(ctx, first, full)
	require.NoError(t, err)
	assert.Greater(t, second.Seq, first.Seq)

	var count int
	require.NoError(t, s.db.QueryRow(`SELECT COUNT(*) FROM elements WHERE run_id = 'run-1'`).Scan(&count))
	assert.Equal(t, 5, count)

	got, run, err := s.LoadCheckpoint(ctx, "run-1", "fp-a")
	require.NoError(t, err)
	assert.Equal(t, 2, run.Pass)
	assert.Equal(t, full.Elements, got.Elements)
	assert.Same(t, got.Terms[3], got.Terms[4].Children()[1])

	// Saving the same checkpoint again changes nothing but seq.
	third, err := s.SaveCheckpoint(ctx, second, full)
	require.NoError(t, err)
	assert.Equal(t, second.Digest, third.Digest)
	require.NoError(t, s.db.QueryRow(`SELECT COUNT(*) FROM elements WHERE run_id = 'run-1'`).Scan(&count))
	assert.Equal(t, 5, count)
}

func TestSaveCheckpoint_RejectsShrinkingRun(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	full := createTestCheckpoint()

	run, err := s.SaveCheckpoint(ctx, createTestRun("run-1", "fp-a"), full)
	require.NoError(t, err)

	partial := full
	partial.Elements = full.Elements[:2]
	partial.Terms = full.Terms[:2]
	partial.ClosedMark, partial.CurrentMark = 0, 2
	_, err = s.SaveCheckpoint(ctx, run, partial)
	assert.Error(t, err)
}

func TestSaveCheckpoint_Validation(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	_, err := s.SaveCheckpoint(ctx, Run{Fingerprint: "fp"}, createTestCheckpoint())
	assert.ErrorContains(t, err, "run id is required")

	cp := createTestCheckpoint()
	cp.Terms = cp.Terms[:2]
	_, err = s.SaveCheckpoint(ctx, createTestRun("run-1", "fp"), cp)
	assert.ErrorContains(t, err, "2 terms for 5 elements")

	cp = createTestCheckpoint()
	cp.Images = []int{0}
	_, err = s.SaveCheckpoint(ctx, createTestRun("run-1", "fp"), cp)
	assert.ErrorContains(t, err, "1 images for 5 elements")
}

func TestFingerprintGuard(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	run, err := s.SaveCheckpoint(ctx, createTestRun("run-1", "fp-a"), createTestCheckpoint())
	require.NoError(t, err)

	_, _, err = s.LoadCheckpoint(ctx, "run-1", "fp-b")
	assert.True(t, IsFingerprintError(err))

	run.Fingerprint = "fp-b"
	_, err = s.SaveCheckpoint(ctx, run, createTestCheckpoint())
	assert.True(t, IsFingerprintError(err))
	assert.ErrorContains(t, err, "run run-1 was saved for problem fp-a, not fp-b")
}

func TestLoadCheckpoint_NotFound(t *testing.T) {
	s := createTestStore(t)

	_, _, err := s.LoadCheckpoint(context.Background(), "missing", "")
	assert.True(t, IsRunNotFound(err))
	assert.ErrorIs(t, err, ErrRunNotFound)

	_, err = s.ReadRun(context.Background(), "missing")
	assert.True(t, IsRunNotFound(err))
}

func TestListRuns_Ordering(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	cp := createTestCheckpoint()

	for _, id := range []string{"run-b", "run-a", "run-c"} {
		_, err := s.SaveCheckpoint(ctx, createTestRun(id, "fp-a"), cp)
		require.NoError(t, err)
	}
	_, err := s.SaveCheckpoint(ctx, createTestRun("run-x", "fp-b"), cp)
	require.NoError(t, err)
	// Re-saving run-b moves it to the end.
	_, err = s.SaveCheckpoint(ctx, createTestRun("run-b", "fp-a"), cp)
	require.NoError(t, err)

	runs, err := s.ListRuns(ctx, "fp-a")
	require.NoError(t, err)
	var ids []string
	for _, r := range runs {
		ids = append(ids, r.ID)
	}
	assert.Equal(t, []string{"run-a", "run-c", "run-b"}, ids)

	all, err := s.ListRuns(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 4)

	none, err := s.ListRuns(ctx, "fp-none")
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)

	latest, err := s.LatestRun(ctx, "fp-a")
	require.NoError(t, err)
	assert.Equal(t, "run-b", latest.ID)

	_, err = s.LatestRun(ctx, "fp-none")
	assert.True(t, IsRunNotFound(err))
}

func TestDeleteRun(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	_, err := s.SaveCheckpoint(ctx, createTestRun("run-1", "fp-a"), createTestCheckpoint())
	require.NoError(t, err)

	require.NoError(t, s.DeleteRun(ctx, "run-1"))
	require.NoError(t, s.DeleteRun(ctx, "run-1"))

	var count int
	require.NoError(t, s.db.QueryRow(`SELECT COUNT(*) FROM elements`).Scan(&count))
	assert.Equal(t, 0, count)
	_, err = s.ReadRun(ctx, "run-1")
	assert.True(t, IsRunNotFound(err))
}

func TestNewRunID(t *testing.T) {
	a, b := NewRunID(), NewRunID()
	assert.Len(t, a, 36)
	assert.NotEqual(t, a, b)
	// UUIDv7 ids sort by creation time.
	assert.Less(t, a, b)
}

func TestResumeThroughEngine(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	p := testutil.Power(t, testutil.Z3(t), 4)
	gens := testutil.Elements([]int{1, 0, 0, 1}, []int{0, 1, 1, 0}, []int{1, 1, 0, 0})

	ref, err := engine.New(p, gens, engine.WithTerms(), engine.WithStrategy(engine.StrategySerial))
	require.NoError(t, err)
	_, err = ref.Run(ctx)
	require.NoError(t, err)

	first, err := engine.New(p, gens, engine.WithTerms(), engine.WithStopEachPass())
	require.NoError(t, err)
	_, err = first.Run(ctx)
	require.NoError(t, err)
	require.Equal(t, engine.StopPaused, first.StopReason())

	run := createTestRun(NewRunID(), "fp-z3")
	_, err = s.SaveCheckpoint(ctx, run, first.Checkpoint())
	require.NoError(t, err)

	cp, _, err := s.LoadCheckpoint(ctx, run.ID, "fp-z3")
	require.NoError(t, err)
	resumed, err := engine.New(p, gens, engine.WithTerms(), engine.WithCheckpoint(cp))
	require.NoError(t, err)
	_, err = resumed.Run(ctx)
	require.NoError(t, err)

	assert.NoError(t, resumed.CompareRuns(ref))
	assert.True(t, resumed.Completed())
}
