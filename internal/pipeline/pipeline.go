// Package pipeline streams events through per-worker jet/MET modifiers and
// writes them back in input order.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/banshee-data/jetmet/internal/event"
	"github.com/banshee-data/jetmet/internal/jetmet"
	"github.com/banshee-data/jetmet/internal/monitoring"
)

// Source yields events until io.EOF. event.Reader implements it.
type Source interface {
	Next() (*event.Event, error)
}

// Sink receives processed events in input order. event.Writer implements it.
type Sink interface {
	Write(*event.Event) error
}

// SummarySink receives the per-event summaries in input order.
type SummarySink interface {
	Record(ctx context.Context, sum *jetmet.Summary) error
}

// Processor modifies one event in place. *jetmet.Modifier implements it.
type Processor interface {
	Process(*event.Event) (*jetmet.Summary, error)
}

// Factory builds the processor owned by worker i.
type Factory func(worker int) (Processor, error)

// Options tunes a run.
type Options struct {
	// Workers is the number of concurrent processors; values below 1 mean 1.
	Workers int
	// Buffer is the per-worker queue depth (default 16).
	Buffer int
	// Summaries, when set, receives every event summary.
	Summaries SummarySink
	// ProgressEvery logs a progress line every n written events; 0 disables.
	ProgressEvery int
}

// Stats counts what a run did.
type Stats struct {
	Events  int
	Skipped int
	Jets    int
	Guards  int
}

type job struct {
	seq int
	ev  *event.Event
}

type result struct {
	seq int
	ev  *event.Event
	sum *jetmet.Summary
}

// Run reads every event from src, processes it and writes it to dst (which
// may be nil). Event i goes to worker i mod Workers, so the output, random
// draws included, depends only on the input and the worker count. The
// first error from any stage cancels the run and is returned.
func Run(ctx context.Context, src Source, dst Sink, factory Factory, o Options) (Stats, error) {
	n := max(o.Workers, 1)
	buf := o.Buffer
	if buf <= 0 {
		buf = 16
	}

	procs := make([]Processor, n)
	for i := range procs {
		p, err := factory(i)
		if err != nil {
			return Stats{}, fmt.Errorf("worker %d: %w", i, err)
		}
		procs[i] = p
	}

	g, ctx := errgroup.WithContext(ctx)
	jobs := make([]chan job, n)
	for i := range jobs {
		jobs[i] = make(chan job, buf)
	}
	results := make(chan result, n*buf)

	g.Go(func() error {
		defer func() {
			for _, c := range jobs {
				close(c)
			}
		}()
		for seq := 0; ; seq++ {
			ev, err := src.Next()
			if errors.Is(err, io.EOF) {
				return nil
			}
			if err != nil {
				return fmt.Errorf("read event %d: %w", seq, err)
			}
			select {
			case jobs[seq%n] <- job{seq: seq, ev: ev}:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	})

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		g.Go(func() error {
			defer wg.Done()
			for j := range jobs[i] {
				sum, err := procs[i].Process(j.ev)
				if err != nil {
					return fmt.Errorf("event %d (run %d event %d): %w", j.seq, j.ev.Run, j.ev.Number, err)
				}
				select {
				case results <- result{seq: j.seq, ev: j.ev, sum: sum}:
				case <-ctx.Done():
					return ctx.Err()
				}
			}
			return nil
		})
	}
	go func() {
		wg.Wait()
		close(results)
	}()

	var stats Stats
	progress := monitoring.NewProgress("pipeline", o.ProgressEvery)
	g.Go(func() error {
		pending := make(map[int]result)
		next := 0
		for r := range results {
			pending[r.seq] = r
			for {
				p, ok := pending[next]
				if !ok {
					break
				}
				delete(pending, next)
				next++
				if err := emit(ctx, p, dst, o.Summaries, &stats); err != nil {
					return err
				}
				progress.Update(stats.Events, fmt.Sprintf("skipped=%d guards=%d", stats.Skipped, stats.Guards))
			}
		}
		return nil
	})

	err := g.Wait()
	if err == nil {
		progress.Done(stats.Events)
	}
	return stats, err
}

func emit(ctx context.Context, r result, dst Sink, sums SummarySink, stats *Stats) error {
	if dst != nil {
		if err := dst.Write(r.ev); err != nil {
			return fmt.Errorf("write event %d: %w", r.seq, err)
		}
	}
	if sums != nil && r.sum != nil {
		if err := sums.Record(ctx, r.sum); err != nil {
			return fmt.Errorf("record summary %d: %w", r.seq, err)
		}
	}
	stats.Events++
	if r.sum != nil {
		if r.sum.Skipped {
			stats.Skipped++
		}
		stats.Jets += len(r.sum.Jets)
		stats.Guards += r.sum.Guards
	}
	return nil
}
