package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/flopezo/genevalidator/pkg/blast"
	"github.com/flopezo/genevalidator/pkg/config"
	"github.com/flopezo/genevalidator/pkg/pipeline"
	"github.com/flopezo/genevalidator/pkg/seq"
	"github.com/flopezo/genevalidator/pkg/storage"
)

var validateCmd = &cobra.Command{
	Use:   "validate --fasta <queries.fa> --results <blast.xml>",
	Short: "Validate predicted genes against their BLAST results",
	Long: `Validate every query of a FASTA file against its BLAST hits.

The BLAST results must list the queries in FASTA order. XML (-outfmt 5) and
tabular (-outfmt 6 or 7) output are detected automatically; tabular column
layouts other than the default are given with --columns, unless the file
carries "# Fields:" comments (-outfmt 7). Plain -outfmt 6 output omits queries
without hits, which shifts every later query; prefer -outfmt 7 or XML.

Each query yields one report per validation, written as YAML documents to
--out. Queries without hits, including those after the end of a truncated
result file, are reported inconclusive.

Examples:
  # Validate nucleotide predictions
  genevalidator validate -f genes.fa -r genes.blastx.xml -t nucleotide

  # Resume an interrupted run at query 1200 and upload the reports
  genevalidator validate -f genes.fa -r genes.tsv.zst --start 1200 \
    --out s3://bucket/reports/genes.yaml

  # Tabular results with a custom layout
  genevalidator validate -f prot.fa -r prot.tsv \
    --columns "qseqid sseqid qlen slen qstart qend sstart send evalue qframe"`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.New(settings)
		if err != nil {
			return err
		}
		_, err = runValidate(cmd.Context(), cfg, logger, cmd.OutOrStdout())
		return err
	},
}

func init() {
	f := validateCmd.Flags()
	f.StringP("fasta", "f", "", "predicted sequences (FASTA, path or s3:// URI)")
	f.StringP("results", "r", "", "BLAST output for the predicted sequences")
	f.StringP("type", "t", "", "sequence type: nucleotide or protein (default: detect)")
	f.IntP("start", "s", 1, "1-based query to resume at")
	f.IntP("workers", "w", 0, "parallel validation workers (0 = auto-detect)")
	f.StringSlice("rules", nil, "validations to run (default frame,merge)")
	f.String("columns", "", "tabular column layout (default \"qseqid sseqid sacc slen qstart qend sstart send length qframe pident evalue\")")
	f.StringP("out", "o", "-", "report destination: path, s3:// URI, or - for stdout")
	f.Int("frame-min-hits", 0, "minimum hits for the reading frame validation")
	f.Int("merge-min-hits", 0, "minimum hits for the gene merge validation")
	f.Float64("merge-threshold", 0, "gene merge clustering distance (0 = 10% of query length)")

	bind := map[string]string{
		"fasta":           "fasta",
		"results":         "results",
		"type":            "type",
		"start":           "start",
		"workers":         "workers",
		"rules":           "rules",
		"columns":         "tabular.columns",
		"out":             "report.out",
		"frame-min-hits":  "frame.min_hits",
		"merge-min-hits":  "merge.min_hits",
		"merge-threshold": "merge.threshold",
	}
	for flag, key := range bind {
		settings.BindPFlag(key, f.Lookup(flag))
	}
}

// runValidate loads the inputs named by cfg and validates every query
func runValidate(ctx context.Context, cfg *config.Config, logger *log.Logger, stdout io.Writer) (pipeline.State, error) {
	var st pipeline.State
	if cfg.Fasta == "" || cfg.Results == "" {
		return st, errors.New("both --fasta and --results are required")
	}
	typ, err := cfg.SequenceType()
	if err != nil {
		return st, err
	}

	fastaStore, err := storage.NewStorage(ctx, cfg.Fasta)
	if err != nil {
		return st, err
	}
	in, err := pipeline.Load(ctx, fastaStore, cfg.Fasta, typ)
	if err != nil {
		return st, err
	}
	defer in.Close()
	if typ == seq.Unknown {
		logger.Info("Detected sequence type", "type", in.Type)
	}

	results, err := openResults(ctx, cfg.Results)
	if err != nil {
		return st, err
	}
	defer results.Close()

	p, err := blast.Open(results, blast.Options{Type: in.Type, Columns: cfg.Tabular.Columns})
	if err != nil {
		return st, fmt.Errorf("failed to read %s: %w", cfg.Results, err)
	}

	engine, err := cfg.Engine()
	if err != nil {
		return st, err
	}
	sink, err := newReportSink(ctx, cfg.Report.Out, stdout)
	if err != nil {
		return st, err
	}

	c, err := pipeline.NewCoordinator(in, engine, sink, pipeline.Config{
		StartIndex: cfg.Start,
		Workers:    cfg.Workers,
		Logger:     logger,
	})
	if err != nil {
		sink.Close()
		return st, err
	}

	st, err = c.Run(ctx, p)
	if cerr := sink.Close(); err == nil && cerr != nil {
		err = fmt.Errorf("failed to write reports: %w", cerr)
	}
	return st, err
}

func openResults(ctx context.Context, path string) (io.ReadCloser, error) {
	store, err := storage.NewStorage(ctx, path)
	if err != nil {
		return nil, err
	}
	ok, err := store.Exists(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if !ok {
		return nil, &pipeline.MissingInputError{Path: path}
	}
	return storage.OpenStream(ctx, store, path)
}
