package main

import (
	"bytes"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/flopezo/genevalidator/pkg/fasta"
	"github.com/flopezo/genevalidator/pkg/pipeline"
	"github.com/flopezo/genevalidator/pkg/storage"
)

var faiPath string

var indexCmd = &cobra.Command{
	Use:   "index <queries.fa>",
	Short: "List the byte offsets of every FASTA record",
	Long: `List the byte span of every record of a FASTA file, in the order
used to pair queries with BLAST results.

With --fai a samtools compatible .fai index is written instead (path or
s3:// URI).

Examples:
  genevalidator index genes.fa
  genevalidator index genes.fa --fai genes.fa.fai`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		path := args[0]

		store, err := storage.NewStorage(ctx, path)
		if err != nil {
			return err
		}
		ok, err := store.Exists(ctx, path)
		if err != nil {
			return fmt.Errorf("failed to stat %s: %w", path, err)
		}
		if !ok {
			return &pipeline.MissingInputError{Path: path}
		}

		f, err := storage.OpenRandomAccess(ctx, store, path)
		if err != nil {
			return err
		}
		defer f.Close()

		idx, err := fasta.NewIndex(f, f.Size())
		if err != nil {
			return fmt.Errorf("failed to index %s: %w", path, err)
		}

		if faiPath == "" {
			return printOffsets(cmd.OutOrStdout(), idx)
		}

		var buf bytes.Buffer
		if err := idx.WriteFAI(&buf); err != nil {
			return fmt.Errorf("failed to build fai index: %w", err)
		}
		out, err := storage.NewStorage(ctx, faiPath)
		if err != nil {
			return err
		}
		if err := out.WriteFile(ctx, faiPath, buf.Bytes()); err != nil {
			return fmt.Errorf("failed to write %s: %w", faiPath, err)
		}
		logger.Info("Wrote fai index", "path", faiPath, "records", idx.Len())
		return nil
	},
}

func init() {
	indexCmd.Flags().StringVar(&faiPath, "fai", "", "write a samtools .fai index to this path")
}

func printOffsets(w io.Writer, idx *fasta.Index) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "QUERY\tOFFSET\tBYTES\tID")
	for i := 1; i <= idx.Len(); i++ {
		start, end, err := idx.Span(i)
		if err != nil {
			return err
		}
		rec, err := idx.Read(i)
		if err != nil {
			return err
		}
		fmt.Fprintf(tw, "%d\t%d\t%d\t%s\n", i, start, end-start, rec.ID())
	}
	return tw.Flush()
}
