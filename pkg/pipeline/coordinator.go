// Package pipeline drives a query file and its BLAST results in lockstep and
// hands every validated query to a Reporter.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/flopezo/genevalidator/pkg/blast"
	"github.com/flopezo/genevalidator/pkg/seq"
	"github.com/flopezo/genevalidator/pkg/validate"
)

// NoAlignmentEvidence is the reason given for queries BLAST found no hits for
const NoAlignmentEvidence = "no alignment evidence"

// Query is one validated query
type Query struct {
	// Index is the 1-based position of the query in the FASTA file
	Index     int
	Predicted *seq.Sequence
	Hits      []*seq.Sequence
	Reports   []validate.Report
}

// Reporter receives validated queries in FASTA order. It is never called
// concurrently.
type Reporter interface {
	Report(q Query) error
}

// ReporterFunc adapts a function to the Reporter interface
type ReporterFunc func(q Query) error

func (f ReporterFunc) Report(q Query) error {
	return f(q)
}

// State is the position of a run. It is returned by value from every step.
type State struct {
	// Current is the index of the last query consumed, skipped ones included
	Current int

	// Validated counts queries that had at least one hit
	Validated int

	// NoEvidence counts queries reported without hits
	NoEvidence int

	// Tail counts queries reported after the result stream ended
	Tail int
}

func (st State) add(q Query) State {
	st.Current = q.Index
	if len(q.Hits) == 0 {
		st.NoEvidence++
	} else {
		st.Validated++
	}
	return st
}

// Config tunes a Coordinator
type Config struct {
	// StartIndex is the first query to validate; earlier ones are skipped
	StartIndex int

	// Workers validating in parallel; 0 picks DefaultWorkers, 1 runs sequentially
	Workers int

	Logger *log.Logger
}

// Coordinator validates the queries of one Input
type Coordinator struct {
	in       *Input
	engine   *validate.Engine
	reporter Reporter
	start    int
	workers  int
	logger   *log.Logger
}

// NewCoordinator checks cfg and returns a coordinator for in
func NewCoordinator(in *Input, engine *validate.Engine, reporter Reporter, cfg Config) (*Coordinator, error) {
	if cfg.StartIndex < 1 {
		return nil, &InvalidStartIndexError{Index: cfg.StartIndex}
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = DefaultWorkers()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Coordinator{
		in:       in,
		engine:   engine,
		reporter: reporter,
		start:    cfg.StartIndex,
		workers:  workers,
		logger:   logger,
	}, nil
}

// Run validates every query of the result stream from the start index on.
// Queries the stream never reaches are reported afterwards with every rule
// inconclusive. Parse and indexing errors abort the run; rule problems only
// affect the reports of their query.
func (c *Coordinator) Run(ctx context.Context, p blast.Parser) (State, error) {
	c.logger.Info("Validating queries",
		"fasta", c.in.Path, "queries", c.in.Index.Len(), "type", c.in.Type,
		"format", p.Format(), "rules", strings.Join(c.engine.Rules(), ","),
		"start", c.start, "workers", c.workers)

	st, err := c.resume(State{}, p)
	if err != nil {
		return st, err
	}

	index := st.Current
	next := func() (job, bool, error) {
		rec, err := p.Next()
		if errors.Is(err, io.EOF) {
			return job{}, false, nil
		}
		if err != nil {
			return job{}, false, fmt.Errorf("failed to read result record %d: %w", index+1, err)
		}
		index++
		return job{index: index, rec: rec}, true, nil
	}
	work := func(_ context.Context, j job) (Query, error) {
		return c.evaluate(j.index, j.rec)
	}

	if st, err = c.process(ctx, st, next, work); err != nil {
		return st, err
	}
	if t, ok := p.(interface{ Truncated() bool }); ok && t.Truncated() {
		c.logger.Warn("Result stream ends inside a record, the remaining queries have no alignment evidence",
			"records", p.Cursor())
	}

	st, err = c.tail(ctx, st)
	c.logger.Info("Validation finished",
		"validated", st.Validated, "no_evidence", st.NoEvidence, "tail", st.Tail)
	return st, err
}

// resume discards the result records before the start index
func (c *Coordinator) resume(st State, p blast.Parser) (State, error) {
	if c.start == 1 {
		return st, nil
	}
	n, err := p.Skip(c.start - 1)
	st.Current += n
	if err != nil {
		return st, fmt.Errorf("failed to skip to query %d: %w", c.start, err)
	}
	c.logger.Info("Resuming run", "skipped", n, "start", c.start)
	return st, nil
}

// tail reports the queries after the last result record
func (c *Coordinator) tail(ctx context.Context, st State) (State, error) {
	from := st.Current + 1
	if from < c.start {
		from = c.start
	}
	if from > c.in.Index.Len() {
		return st, nil
	}
	c.logger.Warn("Result stream ended early",
		"last", st.Current, "missing", c.in.Index.Len()-from+1)

	for i := from; i <= c.in.Index.Len(); i++ {
		if err := ctx.Err(); err != nil {
			return st, err
		}
		q, err := c.evaluate(i, &blast.QueryRecord{})
		if err != nil {
			return st, err
		}
		if st, err = c.emit(st, q); err != nil {
			return st, err
		}
		st.Tail++
	}
	return st, nil
}

// prepare populates the predicted sequence of query i from the FASTA file
func (c *Coordinator) prepare(i int, rec *blast.QueryRecord) (Query, error) {
	r, err := c.in.Index.Read(i)
	if err != nil {
		return Query{}, fmt.Errorf("result record %d has no matching query in %s: %w", i, c.in.Path, err)
	}

	pred := rec.Predicted
	if pred == nil {
		pred = &seq.Sequence{Definition: r.Header, Type: c.in.Type}
	}
	if err := pred.SetRawResidues(r.Residues); err != nil {
		return Query{}, fmt.Errorf("query %d: %w", i, err)
	}
	if pred.Length == 0 {
		pred.Length = len(r.Residues)
		if c.in.Type == seq.Nucleotide {
			pred.Length /= 3
		}
	}
	return Query{Index: i, Predicted: pred, Hits: rec.Hits}, nil
}

// evaluate prepares query i and runs the rules over it
func (c *Coordinator) evaluate(i int, rec *blast.QueryRecord) (Query, error) {
	q, err := c.prepare(i, rec)
	if err != nil {
		return q, err
	}
	if len(q.Hits) == 0 {
		q.Reports = c.engine.InconclusiveAll(NoAlignmentEvidence)
	} else {
		q.Reports = c.engine.Validate(q.Predicted, q.Hits)
	}
	return q, nil
}

func (c *Coordinator) emit(st State, q Query) (State, error) {
	if err := c.reporter.Report(q); err != nil {
		return st, fmt.Errorf("failed to report query %d: %w", q.Index, err)
	}
	if c.logger.GetLevel() <= log.DebugLevel {
		statuses := make([]string, len(q.Reports))
		for i, r := range q.Reports {
			statuses[i] = r.Rule + "=" + r.Status.String()
		}
		c.logger.Debug("Query validated",
			"index", q.Index, "hits", len(q.Hits), "reports", strings.Join(statuses, " "))
	}
	return st.add(q), nil
}
