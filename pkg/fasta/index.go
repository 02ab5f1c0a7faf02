// Package fasta indexes multi-record FASTA files by byte offset so any query
// can be read back without scanning the file.
package fasta

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"strings"
)

// MalformedInputError is returned when the query file cannot be indexed or
// when a query number falls outside of it
type MalformedInputError struct {
	Reason string
}

func (e *MalformedInputError) Error() string {
	return "malformed query file: " + e.Reason
}

// Index holds the offset of every record-start marker plus a sentinel equal
// to the file length. It is immutable once built and safe for concurrent use.
type Index struct {
	src     io.ReaderAt
	offsets []int64
}

// NewIndex scans size bytes of src for lines starting with '>'
func NewIndex(src io.ReaderAt, size int64) (*Index, error) {
	offsets, err := scanOffsets(io.NewSectionReader(src, 0, size))
	if err != nil {
		return nil, err
	}
	if len(offsets) == 0 {
		return nil, &MalformedInputError{Reason: "no '>' record header found"}
	}

	return &Index{
		src:     src,
		offsets: append(offsets, size),
	}, nil
}

// NewIndexBytes indexes in-memory FASTA content
func NewIndexBytes(content []byte) (*Index, error) {
	return NewIndex(bytes.NewReader(content), int64(len(content)))
}

// scanOffsets returns the offset of every '>' at the start of a line
func scanOffsets(r io.Reader) ([]int64, error) {
	var (
		offsets   []int64
		pos       int64
		lineStart = true
	)

	br := bufio.NewReaderSize(r, 1<<20)
	for {
		chunk, err := br.ReadSlice('\n')
		if len(chunk) > 0 {
			if lineStart && chunk[0] == '>' {
				offsets = append(offsets, pos)
			}
			pos += int64(len(chunk))
			lineStart = chunk[len(chunk)-1] == '\n'
		}

		switch err {
		case nil, bufio.ErrBufferFull:
			continue
		case io.EOF:
			return offsets, nil
		default:
			return nil, fmt.Errorf("failed to scan query file: %w", err)
		}
	}
}

// Len returns the number of records
func (x *Index) Len() int {
	return len(x.offsets) - 1
}

// Offsets returns a copy of the record offsets including the trailing sentinel
func (x *Index) Offsets() []int64 {
	return append([]int64(nil), x.offsets...)
}

// Span returns the byte range [start, end) of the 1-based query i
func (x *Index) Span(i int) (start, end int64, err error) {
	if i < 1 || i > x.Len() {
		return 0, 0, &MalformedInputError{
			Reason: fmt.Sprintf("query %d requested but the file holds %d records", i, x.Len()),
		}
	}
	return x.offsets[i-1], x.offsets[i], nil
}

// Extract returns exactly the bytes of the 1-based query i, header included
func (x *Index) Extract(i int) ([]byte, error) {
	start, end, err := x.Span(i)
	if err != nil {
		return nil, err
	}

	buf := make([]byte, end-start)
	n, err := x.src.ReadAt(buf, start)
	if n == len(buf) {
		return buf, nil
	}
	if err == nil || err == io.EOF {
		err = io.ErrUnexpectedEOF
	}
	return nil, fmt.Errorf("failed to read query %d: %w", i, err)
}

// Record is a query read back from the index
type Record struct {
	// Header is the text after '>' on the first line
	Header string

	// Residues is every following line with whitespace removed
	Residues string
}

// ID returns the first word of the header
func (r Record) ID() string {
	if fields := strings.Fields(r.Header); len(fields) > 0 {
		return fields[0]
	}
	return ""
}

// Read extracts query i and splits it into header and residues
func (x *Index) Read(i int) (Record, error) {
	raw, err := x.Extract(i)
	if err != nil {
		return Record{}, err
	}
	return ParseRecord(raw), nil
}

// ParseRecord strips the header line of a raw record and joins its residue lines
func ParseRecord(raw []byte) Record {
	header, body := raw, []byte(nil)
	if nl := bytes.IndexByte(raw, '\n'); nl >= 0 {
		header, body = raw[:nl], raw[nl+1:]
	}

	residues := bytes.Map(func(r rune) rune {
		switch r {
		case '\n', '\r', ' ', '\t':
			return -1
		}
		return r
	}, body)

	return Record{
		Header:   strings.TrimSpace(strings.TrimPrefix(string(header), ">")),
		Residues: string(residues),
	}
}
