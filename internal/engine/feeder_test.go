package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/closer/internal/alg"
	"github.com/roach88/closer/internal/testutil"
)

func collect(f *feeder) []Chunk {
	var out []Chunk
	for {
		ch, ok := f.next()
		if !ok {
			return out
		}
		out = append(out, ch)
	}
}

func TestFeeder_ChunksInOperationOrder(t *testing.T) {
	// plus/2, m/3, zero/0
	ops := testutil.Z3(t).Operations()

	chunks := collect(newFeeder(ops, 3, 1))

	require.Len(t, chunks, 3+9)
	assert.Equal(t, Chunk{Op: 0, Prefix: []int{0}}, chunks[0])
	assert.Equal(t, Chunk{Op: 0, Prefix: []int{2}}, chunks[2])
	assert.Equal(t, Chunk{Op: 1, Prefix: []int{0, 0}}, chunks[3])
	assert.Equal(t, Chunk{Op: 1, Prefix: []int{0, 1}}, chunks[4])
	assert.Equal(t, Chunk{Op: 1, Prefix: []int{2, 2}}, chunks[11])
}

func TestFeeder_ChunkSizeCoversArity(t *testing.T) {
	ops := testutil.Z3(t).Operations()

	chunks := collect(newFeeder(ops, 5, 4))

	assert.Equal(t, []Chunk{{Op: 0, Prefix: []int{}}, {Op: 1, Prefix: []int{}}}, chunks)
}

func TestFeeder_FillStopsWhenFull(t *testing.T) {
	ops := testutil.Z3(t).Operations()
	f := newFeeder(ops, 3, 1)
	chunks := make(chan Chunk, 5)

	f.fill(chunks)
	assert.Len(t, chunks, 5)
	assert.False(t, f.done)

	var got []Chunk
	for !f.done || len(chunks) > 0 {
		select {
		case ch, ok := <-chunks:
			if !ok {
				continue
			}
			got = append(got, ch)
		default:
		}
		f.fill(chunks)
	}
	_, open := <-chunks
	assert.False(t, open, "exhausted feeder closes the channel")
	assert.Len(t, got, 12)
}

func TestFeeder_RunStopsOnCancel(t *testing.T) {
	ops := testutil.Z3(t).Operations()
	ctx, cancel := context.WithCancel(context.Background())
	chunks := make(chan Chunk)
	cancel()

	newFeeder(ops, 3, 1).run(ctx, chunks)

	_, open := <-chunks
	assert.False(t, open)
}

// Expanding every chunk of a pass applies each qualifying tuple once.
func TestExpand_CoversPass(t *testing.T) {
	p := testutil.Power(t, testutil.Z3(t), 2)
	raw := [][]int{{1, 0}, {0, 1}, {2, 2}, {1, 1}}

	for _, chunkSize := range []int{1, 2, 3} {
		for _, closed := range []int{0, 1, 3} {
			pv := newTestView(p, raw, closed)
			var apps int64
			for _, ch := range collect(newFeeder(pv.ops, pv.currentMark, chunkSize)) {
				res, err := pv.expand(context.Background(), ch)
				require.NoError(t, err)
				apps += res.Applications
			}
			assert.Equal(t, passWork(pv.ops, closed, len(raw)), apps, "chunk size %d, closed mark %d", chunkSize, closed)
		}
	}
}

func TestExpandSafely_RecoversPanic(t *testing.T) {
	plus := testutil.Z3Plus(t).Operations()[0]
	op := testutil.PanicOn(plus, false, func([][]int) bool { return true })
	a := alg.NewAlgebra("faulty", 0, op)
	pv := newTestView(a, [][]int{{1}}, 0)

	_, err := pv.expandSafely(context.Background(), 7, Chunk{Op: 0, Prefix: []int{0}})

	require.Error(t, err)
	assert.True(t, IsWorkerFault(err))
	var wf *WorkerFault
	require.ErrorAs(t, err, &wf)
	assert.Equal(t, 7, wf.Worker)
	assert.Equal(t, []int{0}, wf.Chunk.Prefix)
}

// newTestView builds a pass view over raw with an empty membership index,
// so every value is reported as new.
func newTestView(a alg.Algebra, raw [][]int, closed int) *passView {
	pv := &passView{
		ops:         a.Operations(),
		raw:         raw,
		closedMark:  closed,
		currentMark: len(raw),
	}
	if p, ok := a.(alg.PowerAlgebra); ok {
		pv.eval = newPowerEvaluator(p)
	} else {
		pv.eval = newGenericEvaluator(pv.ops)
	}
	return pv
}
