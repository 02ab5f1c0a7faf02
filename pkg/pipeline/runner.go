package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/flopezo/genevalidator/pkg/blast"
	"github.com/flopezo/genevalidator/pkg/seq"
)

// AlignmentRunner searches one raw FASTA record and returns BLAST output
// in any format blast.Open accepts.
type AlignmentRunner interface {
	Run(ctx context.Context, query []byte) ([]byte, error)
}

// AlignmentRunnerFunc adapts a function to the AlignmentRunner interface
type AlignmentRunnerFunc func(ctx context.Context, query []byte) ([]byte, error)

func (f AlignmentRunnerFunc) Run(ctx context.Context, query []byte) ([]byte, error) {
	return f(ctx, query)
}

// RunAligned validates the queries from the start index on by running one
// alignment search per query instead of reading a precomputed result stream.
// A search that fails or returns nothing leaves only its own query
// inconclusive.
func (c *Coordinator) RunAligned(ctx context.Context, runner AlignmentRunner, opts blast.Options) (State, error) {
	c.logger.Info("Validating queries with per-query alignment",
		"fasta", c.in.Path, "queries", c.in.Index.Len(), "type", c.in.Type,
		"start", c.start, "workers", c.workers)

	st := State{Current: c.start - 1}
	index := st.Current
	next := func() (job, bool, error) {
		if index >= c.in.Index.Len() {
			return job{}, false, nil
		}
		index++
		return job{index: index}, true, nil
	}
	work := func(ctx context.Context, j job) (Query, error) {
		return c.align(ctx, j.index, runner, opts)
	}

	st, err := c.process(ctx, st, next, work)
	c.logger.Info("Validation finished", "validated", st.Validated, "no_evidence", st.NoEvidence)
	return st, err
}

func (c *Coordinator) align(ctx context.Context, i int, runner AlignmentRunner, opts blast.Options) (Query, error) {
	raw, err := c.in.Index.Extract(i)
	if err != nil {
		return Query{}, err
	}

	out, err := runner.Run(ctx, raw)
	if err == nil && len(bytes.TrimSpace(out)) == 0 {
		err = ErrAlignmentEngineUnavailable
	}
	if err != nil {
		if ctx.Err() != nil {
			return Query{}, ctx.Err()
		}
		c.logger.Warn("Alignment search failed", "index", i, "err", err)
		q, perr := c.prepare(i, &blast.QueryRecord{})
		if perr != nil {
			return q, perr
		}
		q.Reports = c.engine.InconclusiveAll(ErrAlignmentEngineUnavailable.Error())
		return q, nil
	}

	if opts.Type == seq.Unknown {
		opts.Type = c.in.Type
	}
	p, err := blast.Open(bytes.NewReader(out), opts)
	if err != nil {
		return Query{}, fmt.Errorf("alignment output of query %d: %w", i, err)
	}
	rec, err := p.Next()
	if errors.Is(err, io.EOF) {
		rec = &blast.QueryRecord{}
	} else if err != nil {
		return Query{}, fmt.Errorf("alignment output of query %d: %w", i, err)
	}
	return c.evaluate(i, rec)
}
