// Package ntuple stores flat, analysis-ready records of a jet/MET run in a
// SQLite file: one row per run, per event and per jet.
package ntuple

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/banshee-data/jetmet/internal/jetmet"
	"github.com/banshee-data/jetmet/internal/version"
)

// Store is an open ntuple file. Record is not safe for concurrent use.
type Store struct {
	db    *sql.DB
	runID string
}

// Open opens (creating if needed) the ntuple at path and migrates it to the
// latest schema.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to execute %q: %w", p, err)
		}
	}

	s := &Store{db: db}
	if err := s.MigrateUp(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// RunInfo describes the configuration of a run.
type RunInfo struct {
	IsData      bool
	Corrections string
	Systematic  string
	NSigma      float64
	Era         string
	Seed        uint64
	Workers     int
}

// Run is a stored run row.
type Run struct {
	ID       string
	Started  time.Time
	Finished time.Time
	Version  string
	RunInfo
	Events  int
	Skipped int
	Guards  int
}

// BeginRun inserts a run row with a fresh ID. Subsequent Record calls attach
// to this run.
func (s *Store) BeginRun(ctx context.Context, info RunInfo) (string, error) {
	id := uuid.New().String()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (run_id, started_unix, version, git_sha, is_data, corrections, systematic, n_sigma, era, seed, workers)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, time.Now().Unix(), version.Version, version.GitSHA, info.IsData, info.Corrections,
		info.Systematic, info.NSigma, info.Era, int64(info.Seed), info.Workers)
	if err != nil {
		return "", fmt.Errorf("failed to insert run: %w", err)
	}
	s.runID = id
	return id, nil
}

// FinishRun stamps the run with its totals.
func (s *Store) FinishRun(ctx context.Context, events, skipped, guards int) error {
	if s.runID == "" {
		return fmt.Errorf("no run in progress")
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE runs SET finished_unix = ?, events = ?, skipped = ?, guards = ? WHERE run_id = ?`,
		time.Now().Unix(), events, skipped, guards, s.runID)
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}
	return nil
}

// Record writes one event summary and its jets.
func (s *Store) Record(ctx context.Context, sum *jetmet.Summary) error {
	if s.runID == "" {
		return fmt.Errorf("no run in progress")
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	before, after := sum.METBefore, sum.METAfter
	_, err = tx.ExecContext(ctx, `
		INSERT INTO event_summaries (run_id, run, lumi, event, skipped, n_jets,
			met_pt_before, met_phi_before, met_pt_after, met_phi_after,
			sum_et_before, sum_et_diff, sig_before, sig_after, jet_dpx, jet_dpy, guards)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.runID, sum.Run, sum.Lumi, int64(sum.Event), sum.Skipped, len(sum.Jets),
		before.Pt(), before.Phi(), after.Pt(), after.Phi(),
		sum.SumEtBefore, sum.SumEtDiff, sum.SigBefore, sum.SigAfter, sum.JetDeltaPx, sum.JetDeltaPy, sum.Guards)
	if err != nil {
		return fmt.Errorf("failed to insert event summary: %w", err)
	}

	if len(sum.Jets) > 0 {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO jets (run_id, run, lumi, event, jet_index, pt_before, eta_before, phi_before,
				e_raw, pt_calibrated, pt_smeared, pt_final, eta_final, phi_final,
				old_correction, new_correction, smear_factor, jes_shift, matched, truth_index, delta_r)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for i := range sum.Jets {
			j := &sum.Jets[i]
			b := j.At(jetmet.StageBefore)
			raw := j.At(jetmet.StageRaw)
			cal := j.At(jetmet.StageCalibrated)
			sm := j.At(jetmet.StageSmeared)
			fin := j.At(jetmet.StageFinal)

			var truth sql.NullInt64
			var dr sql.NullFloat64
			if j.Match.Truth >= 0 && !sum.IsData {
				truth = sql.NullInt64{Int64: int64(j.Match.Truth), Valid: true}
				dr = sql.NullFloat64{Float64: j.Match.DeltaR, Valid: true}
			}
			_, err := stmt.ExecContext(ctx, s.runID, sum.Run, sum.Lumi, int64(sum.Event), j.Index,
				b.Pt(), b.Eta(), b.Phi(), raw.E(), cal.Pt(), sm.Pt(), fin.Pt(), fin.Eta(), fin.Phi(),
				j.OldCorrection, j.NewCorrection, j.SmearFactor, j.Shift, j.Match.Matched, truth, dr)
			if err != nil {
				return fmt.Errorf("failed to insert jet %d: %w", j.Index, err)
			}
		}
	}
	return tx.Commit()
}

// Runs returns every stored run, oldest first.
func (s *Store) Runs(ctx context.Context) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, started_unix, COALESCE(finished_unix, 0), version, is_data, corrections, systematic,
			n_sigma, era, seed, workers, COALESCE(events, 0), COALESCE(skipped, 0), COALESCE(guards, 0)
		FROM runs ORDER BY started_unix, rowid`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var r Run
		var started, finished, seed int64
		if err := rows.Scan(&r.ID, &started, &finished, &r.Version, &r.IsData, &r.Corrections, &r.Systematic,
			&r.NSigma, &r.Era, &seed, &r.Workers, &r.Events, &r.Skipped, &r.Guards); err != nil {
			return nil, err
		}
		r.Started = time.Unix(started, 0)
		if finished > 0 {
			r.Finished = time.Unix(finished, 0)
		}
		r.Seed = uint64(seed)
		out = append(out, r)
	}
	return out, rows.Err()
}

// EventRow is a stored event summary.
type EventRow struct {
	Run        uint32
	Lumi       uint32
	Event      uint64
	Skipped    bool
	NJets      int
	METPtAfter float64
	SumEtDiff  float64
	SigAfter   float64
	Guards     int
}

// Events returns the event summaries of runID in insertion order.
func (s *Store) Events(ctx context.Context, runID string) ([]EventRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run, lumi, event, skipped, n_jets, met_pt_after, sum_et_diff, sig_after, guards
		FROM event_summaries WHERE run_id = ? ORDER BY rowid`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []EventRow
	for rows.Next() {
		var e EventRow
		var ev int64
		if err := rows.Scan(&e.Run, &e.Lumi, &ev, &e.Skipped, &e.NJets, &e.METPtAfter, &e.SumEtDiff, &e.SigAfter, &e.Guards); err != nil {
			return nil, err
		}
		e.Event = uint64(ev)
		out = append(out, e)
	}
	return out, rows.Err()
}

// JetCount returns the number of jet rows stored for runID.
func (s *Store) JetCount(ctx context.Context, runID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM jets WHERE run_id = ?`, runID).Scan(&n)
	return n, err
}

// MatchedFraction returns the share of stored jets of runID with a truth
// match, or 0 when there are none.
func (s *Store) MatchedFraction(ctx context.Context, runID string) (float64, error) {
	var frac sql.NullFloat64
	err := s.db.QueryRowContext(ctx, `SELECT AVG(matched) FROM jets WHERE run_id = ?`, runID).Scan(&frac)
	if err != nil {
		return 0, err
	}
	return frac.Float64, nil
}
