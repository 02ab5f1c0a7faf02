package fasta

import (
	"fmt"
	"io"

	"github.com/biogo/hts/fai"
)

// WriteFAI writes a samtools compatible .fai index of the records. biogo
// rejects files with ragged line lengths, which samtools cannot index either.
func (x *Index) WriteFAI(w io.Writer) error {
	start, end := x.offsets[0], x.offsets[len(x.offsets)-1]

	idx, err := fai.NewIndex(io.NewSectionReader(x.src, start, end-start))
	if err != nil {
		return fmt.Errorf("failed to build fai index: %w", err)
	}
	for name, rec := range idx {
		rec.Start += start
		idx[name] = rec
	}

	if err := fai.WriteTo(w, idx); err != nil {
		return fmt.Errorf("failed to write fai index: %w", err)
	}
	return nil
}
