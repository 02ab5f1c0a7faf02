package main

import (
	"errors"
	"fmt"

	"github.com/flopezo/genevalidator/pkg/blast"
	"github.com/flopezo/genevalidator/pkg/fasta"
	"github.com/flopezo/genevalidator/pkg/pipeline"
	"github.com/flopezo/genevalidator/pkg/seq"
)

// diagnose turns a fatal error into a message naming its probable cause
func diagnose(err error) string {
	var (
		missing  *pipeline.MissingInputError
		mismatch *seq.SequenceTypeMismatchError
		mixed    *seq.MixedSequenceTypeError
		result   *blast.MalformedResultError
		input    *fasta.MalformedInputError
		start    *pipeline.InvalidStartIndexError
	)

	var cause string
	switch {
	case errors.As(err, &missing):
		cause = fmt.Sprintf("Input file %s was not found. Check the path or S3 URI.", missing.Path)
	case errors.As(err, &mismatch):
		cause = fmt.Sprintf("The sequences were declared %s but look like %s. Fix --type or the input file.",
			mismatch.Declared, mismatch.Detected)
	case errors.As(err, &mixed):
		cause = "The input file mixes nucleotide and protein sequences. Split it by sequence type."
	case errors.As(err, &result):
		cause = "The BLAST results could not be parsed. Possible cause: the file is not BLAST XML (-outfmt 5) " +
			"or tabular (-outfmt 6/7) output, or --columns does not match the tabular layout."
	case errors.As(err, &input):
		cause = "The query file does not match the BLAST results. Possible cause: it is not FASTA, or the " +
			"results were computed for a different query file."
	case errors.As(err, &start):
		cause = "The start index must be 1 or greater."
	case errors.Is(err, pipeline.ErrAlignmentEngineUnavailable):
		cause = "The alignment search returned no output."
	default:
		return "Error: " + err.Error()
	}
	return "Error: " + cause + "\n  " + err.Error()
}
