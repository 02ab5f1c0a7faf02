// Package blast reads BLAST search results one query at a time. Both the XML
// report (-outfmt 5) and the tabular reports (-outfmt 6 and 7) are supported
// behind the same forward-only Parser.
package blast

import (
	"bufio"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"

	"github.com/flopezo/genevalidator/pkg/seq"
)

// QueryRecord is everything BLAST reported for one query
type QueryRecord struct {
	// Predicted carries the query definition and length, raw residues unset
	Predicted *seq.Sequence

	// Hits in report order
	Hits []*seq.Sequence
}

// Parser is a forward-only cursor over the query records of a result stream
type Parser interface {
	// Next returns the next record, or io.EOF once the stream is exhausted
	Next() (*QueryRecord, error)

	// Skip discards up to n records without building their hits and
	// returns how many were discarded. It stops early at end of stream.
	Skip(n int) (int, error)

	// Cursor is the number of records yielded or skipped so far
	Cursor() int

	// Format identifies the encoding being parsed
	Format() Format
}

// Format is a BLAST report encoding
type Format int

const (
	XML Format = iota + 1
	Tabular
)

func (f Format) String() string {
	switch f {
	case XML:
		return "xml"
	case Tabular:
		return "tabular"
	default:
		return "unknown"
	}
}

// MalformedResultError is returned when a result stream cannot be parsed
type MalformedResultError struct {
	// Record is the 1-based query record being parsed, 0 if unknown
	Record int
	// Line is the 1-based input line for tabular input, 0 otherwise
	Line   int
	Reason string
	Err    error
}

func (e *MalformedResultError) Error() string {
	msg := "malformed BLAST output"
	if e.Record > 0 {
		msg += fmt.Sprintf(" at query %d", e.Record)
	}
	if e.Line > 0 {
		msg += fmt.Sprintf(" (line %d)", e.Line)
	}
	msg += ": " + e.Reason
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *MalformedResultError) Unwrap() error {
	return e.Err
}

// Options control unit conversion and tabular column layout
type Options struct {
	// Type of the query sequences. Nucleotide query lengths and coordinates
	// are divided by 3 so that they compare with protein hits.
	Type seq.Type

	// Columns is the -outfmt 6 column layout of tabular input;
	// nil uses DefaultColumns. A "# Fields:" comment overrides it.
	Columns []string
}

// peekSize is how much of the stream is inspected to pick the format,
// and how many bytes of leading tabular comments are read before accepting them
const peekSize = 64 * 1024

// Open inspects the start of r once and returns the parser for its format.
// XML is tried first; tabular parsing is only attempted when the stream is
// not a BLAST XML report. Input that is neither is a MalformedResultError.
func Open(r io.Reader, opts Options) (Parser, error) {
	br := bufio.NewReaderSize(r, peekSize)
	prefix, err := br.Peek(peekSize)
	if err != nil && err != io.EOF && err != bufio.ErrBufferFull {
		return nil, fmt.Errorf("failed to read BLAST output: %w", err)
	}

	if isXMLReport(prefix) {
		return newXMLParser(br, opts), nil
	}
	if len(bytes.TrimSpace(prefix)) == 0 {
		return nil, &MalformedResultError{Reason: "empty result stream"}
	}
	if bytes.HasPrefix(bytes.TrimSpace(prefix), []byte("<")) {
		return nil, &MalformedResultError{Reason: "markup is not a BLAST XML report"}
	}

	tp, err := newTabularParser(br, opts)
	if err != nil {
		return nil, err
	}
	if err := tp.probe(); err != nil {
		return nil, err
	}
	return tp, nil
}

// isXMLReport reports whether the first element of the prefix is <BlastOutput>
func isXMLReport(prefix []byte) bool {
	d := xml.NewDecoder(bytes.NewReader(prefix))
	d.Strict = false
	for {
		tok, err := d.Token()
		if err != nil {
			return false
		}
		switch t := tok.(type) {
		case xml.StartElement:
			return t.Name.Local == "BlastOutput"
		case xml.CharData:
			if len(bytes.TrimSpace(t)) > 0 {
				return false
			}
		}
	}
}

// native converts a nucleotide query length or coordinate to amino-acid units
func native(t seq.Type, n int) int {
	if t == seq.Nucleotide {
		return n / 3
	}
	return n
}

// checkAlignment enforces equal lengths of the gapped alignment strings
func checkAlignment(h seq.Hsp) error {
	if h.QueryAlignment == "" || h.HitAlignment == "" {
		return nil
	}
	if len(h.QueryAlignment) != len(h.HitAlignment) {
		return fmt.Errorf("query alignment has %d columns, hit alignment %d",
			len(h.QueryAlignment), len(h.HitAlignment))
	}
	if h.AlignmentLength > 0 && h.AlignmentLength != len(h.QueryAlignment) {
		return fmt.Errorf("alignment length %d does not match %d alignment columns",
			h.AlignmentLength, len(h.QueryAlignment))
	}
	return nil
}
