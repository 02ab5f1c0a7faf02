// Package seq holds the sequence records shared by the parser, the
// coordinator and the validation rules.
package seq

import (
	"errors"
	"fmt"
	"strings"
)

// Type is the residue alphabet of a sequence
type Type int

const (
	// Unknown is returned when the composition is too short to decide
	Unknown Type = iota
	Nucleotide
	Protein
)

func (t Type) String() string {
	switch t {
	case Nucleotide:
		return "nucleotide"
	case Protein:
		return "protein"
	default:
		return "unknown"
	}
}

// ParseType parses a user supplied sequence type ("nucleotide" or "protein")
func ParseType(s string) (Type, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "nucleotide", "nucl", "dna":
		return Nucleotide, nil
	case "protein", "prot":
		return Protein, nil
	}
	return Unknown, fmt.Errorf("invalid sequence type %q (expected nucleotide or protein)", s)
}

// ErrResiduesSet is returned when the raw residues of a prediction are set twice
var ErrResiduesSet = errors.New("raw residues already set")

// Hsp is a single high-scoring local alignment between a subject and the query.
//
// Query coordinates of nucleotide queries are stored in amino-acid units.
type Hsp struct {
	EValue          float64
	HitFrom         int
	HitTo           int
	QueryFrom       int
	QueryTo         int
	ReadingFrame    int // sign is the strand, magnitude the frame offset
	HitAlignment    string
	QueryAlignment  string
	AlignmentLength int
}

// Sequence is either an aligned subject (hit) or the query prediction
type Sequence struct {
	// Length is in amino-acid units (nucleotide lengths are divided by 3)
	Length     int
	Definition string
	Type       Type

	// Subject only
	Identifier string
	Accession  string

	Hsps []Hsp

	raw    string
	rawSet bool
}

// RawResidues returns the residues recovered from the query file, if any
func (s *Sequence) RawResidues() string {
	return s.raw
}

// HasRawResidues reports whether SetRawResidues has been called
func (s *Sequence) HasRawResidues() bool {
	return s.rawSet
}

// SetRawResidues populates the residues of a prediction. It may only be called once.
func (s *Sequence) SetRawResidues(residues string) error {
	if s.rawSet {
		return ErrResiduesSet
	}
	s.raw = residues
	s.rawSet = true
	return nil
}

// QuerySpan returns the smallest and largest query coordinate covered by the HSPs
func (s *Sequence) QuerySpan() (from, to int, ok bool) {
	for i, h := range s.Hsps {
		lo, hi := h.QueryFrom, h.QueryTo
		if lo > hi {
			lo, hi = hi, lo
		}
		if i == 0 || lo < from {
			from = lo
		}
		if i == 0 || hi > to {
			to = hi
		}
	}
	return from, to, len(s.Hsps) > 0
}
