package evaluation

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/mikeboe/paper-search/pkg/agent"
	"github.com/mikeboe/paper-search/pkg/ranking"
	"github.com/mikeboe/paper-search/pkg/telemetry"
)

const DefaultConcurrency = 10

// Runner runs one agent session. *agent.Orchestrator implements it.
type Runner interface {
	Run(ctx context.Context, query string) (*agent.Session, error)
}

// Record is the outcome of one query. Predicted is nil and every score is
// zero when Error is set.
type Record struct {
	Query       string   `json:"query"`
	GroundTruth []string `json:"groundTruth"`
	Predicted   []string `json:"predicted"`
	ranking.Scores
	Turns int    `json:"turns"`
	Error string `json:"error,omitempty"`
}

func (r Record) Failed() bool { return r.Error != "" }

type Harness struct {
	runner      Runner
	Concurrency int
	Logger      *slog.Logger
	Metrics     *telemetry.Metrics
}

func NewHarness(runner Runner, concurrency int, logger *slog.Logger) *Harness {
	if logger == nil {
		logger = slog.Default()
	}
	return &Harness{runner: runner, Concurrency: concurrency, Logger: logger}
}

// Run evaluates every query with at most Concurrency sessions in flight and
// returns one record per query in input order. A failing query never stops
// the others.
func (h *Harness) Run(ctx context.Context, queries []Query) []Record {
	limit := h.Concurrency
	if limit <= 0 {
		limit = DefaultConcurrency
	}
	h.Logger.Info("Starting evaluation", "queries", len(queries), "concurrency", limit)

	records := make([]Record, len(queries))
	var completed atomic.Int32

	var g errgroup.Group
	g.SetLimit(limit)
	for i, q := range queries {
		g.Go(func() error {
			records[i] = h.evaluate(ctx, q)
			n := completed.Add(1)
			if records[i].Failed() {
				h.Logger.Warn("Query failed", "progress", fmt.Sprintf("%d/%d", n, len(queries)), "index", i+1, "error", records[i].Error)
			} else {
				h.Logger.Info("Query completed", "progress", fmt.Sprintf("%d/%d", n, len(queries)), "index", i+1, "turns", records[i].Turns)
			}
			return nil
		})
	}
	g.Wait()

	return records
}

func (h *Harness) evaluate(ctx context.Context, q Query) (rec Record) {
	rec = Record{Query: q.Query, GroundTruth: q.Papers}
	if rec.GroundTruth == nil {
		rec.GroundTruth = []string{}
	}

	defer func() {
		if r := recover(); r != nil {
			rec = failed(rec, fmt.Errorf("panic: %v", r))
		}
		h.Metrics.ObserveEvalQuery(errorOf(rec))
	}()

	sess, err := h.runner.Run(ctx, q.Query)
	if err != nil {
		return failed(rec, err)
	}

	predicted := sess.ReportedIDs
	if predicted == nil {
		predicted = []string{}
	}
	rec.Predicted = predicted
	rec.Scores = ranking.Evaluate(predicted, q.Papers)
	rec.Turns = sess.Turns
	return rec
}

func failed(rec Record, err error) Record {
	return Record{
		Query:       rec.Query,
		GroundTruth: rec.GroundTruth,
		Error:       err.Error(),
	}
}

func errorOf(rec Record) error {
	if rec.Failed() {
		return fmt.Errorf("%s", rec.Error)
	}
	return nil
}
