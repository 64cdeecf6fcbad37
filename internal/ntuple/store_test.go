package ntuple

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go-hep.org/x/hep/fmom"

	"github.com/banshee-data/jetmet/internal/jetmet"
	"github.com/banshee-data/jetmet/internal/version"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "ntuple.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleSummary(ev uint64, matched bool) *jetmet.Summary {
	rec := jetmet.JetRecord{
		Index:         0,
		OldCorrection: 1.1,
		NewCorrection: 1.2,
		SmearFactor:   1.01,
		Match:         jetmet.Match{Truth: -1},
	}
	if matched {
		rec.Match = jetmet.Match{Truth: 0, DeltaR: 0.05, Matched: true}
	}
	p := fmom.NewPxPyPzE(60, 80, 20, 104)
	for s := jetmet.StageBefore; s <= jetmet.StageFinal; s++ {
		rec.Stages[s] = p
	}
	return &jetmet.Summary{
		Run: 1, Lumi: 7, Event: ev,
		Jets:      []jetmet.JetRecord{rec, rec},
		METBefore: fmom.NewPxPyPzE(3, 4, 0, 5),
		METAfter:  fmom.NewPxPyPzE(6, 8, 0, 10),
		SumEtDiff: 2.5,
		SigBefore: 1,
		SigAfter:  2,
		Guards:    1,
	}
}

func TestOpen_Migrates(t *testing.T) {
	s := openTestStore(t)
	v, dirty, err := s.MigrateVersion()
	require.NoError(t, err)
	assert.Equal(t, uint(SchemaVersion), v)
	assert.False(t, dirty)

	// Re-running is a no-op.
	require.NoError(t, s.MigrateUp())

	require.NoError(t, s.MigrateDown())
	v, _, err = s.MigrateVersion()
	require.NoError(t, err)
	assert.Equal(t, uint(1), v)
	require.NoError(t, s.MigrateUp())
}

func TestRecordAndQuery(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	_, err := s.BeginRun(ctx, RunInfo{})
	require.NoError(t, err)
	// Record attaches to the latest run.
	id, err := s.BeginRun(ctx, RunInfo{Corrections: "jec_mc,smear_mc", Systematic: "jer_worse", NSigma: 1, Era: "run2", Seed: 1 << 63, Workers: 4})
	require.NoError(t, err)
	_, err = uuid.Parse(id)
	require.NoError(t, err)

	require.NoError(t, s.Record(ctx, sampleSummary(100, true)))
	require.NoError(t, s.Record(ctx, sampleSummary(101, false)))
	require.NoError(t, s.Record(ctx, &jetmet.Summary{Run: 1, Lumi: 7, Event: 102, Skipped: true}))
	require.NoError(t, s.FinishRun(ctx, 3, 1, 2))

	runs, err := s.Runs(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	r := runs[1]
	assert.Equal(t, id, r.ID)
	assert.Equal(t, version.Version, r.Version)
	assert.Equal(t, "jer_worse", r.Systematic)
	assert.Equal(t, uint64(1<<63), r.Seed)
	assert.Equal(t, 4, r.Workers)
	assert.Equal(t, 3, r.Events)
	assert.False(t, r.Finished.IsZero())
	assert.True(t, runs[0].Finished.IsZero())

	evs, err := s.Events(ctx, id)
	require.NoError(t, err)
	require.Len(t, evs, 3)
	assert.Equal(t, uint64(100), evs[0].Event)
	assert.Equal(t, 2, evs[0].NJets)
	assert.InDelta(t, 10, evs[0].METPtAfter, 1e-9)
	assert.InDelta(t, 2.5, evs[0].SumEtDiff, 1e-9)
	assert.True(t, evs[2].Skipped)

	n, err := s.JetCount(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	frac, err := s.MatchedFraction(ctx, id)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, frac, 1e-9)
}

func TestRecord_WithoutRun(t *testing.T) {
	s := openTestStore(t)
	assert.Error(t, s.Record(context.Background(), sampleSummary(1, false)))
	assert.Error(t, s.FinishRun(context.Background(), 0, 0, 0))
}

func TestMatchedFraction_Empty(t *testing.T) {
	s := openTestStore(t)
	frac, err := s.MatchedFraction(context.Background(), "none")
	require.NoError(t, err)
	assert.Equal(t, 0.0, frac)
}
