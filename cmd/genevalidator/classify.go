package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/flopezo/genevalidator/pkg/pipeline"
	"github.com/flopezo/genevalidator/pkg/seq"
	"github.com/flopezo/genevalidator/pkg/storage"
)

var classifyCmd = &cobra.Command{
	Use:   "classify <queries.fa>",
	Short: "Detect whether a FASTA file holds nucleotide or protein sequences",
	Long: `Detect the sequence type of a FASTA file from its residue composition.

Records with fewer than 10 unambiguous residues are not classified. A file
mixing nucleotide and protein records is an error.`,
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

		r, err := storage.OpenStream(ctx, store, path)
		if err != nil {
			return err
		}
		defer r.Close()
		content, err := io.ReadAll(r)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}

		typ, err := seq.ClassifyFile(content)
		if err != nil {
			return err
		}
		if typ == seq.Unknown {
			fmt.Fprintln(cmd.OutOrStdout(), "undetermined")
			return nil
		}
		fmt.Fprintln(cmd.OutOrStdout(), typ)
		return nil
	},
}
