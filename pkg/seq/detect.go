package seq

import (
	"bytes"
	"fmt"
	"strings"
	"unicode"
)

const (
	// minClassifiable is the number of unambiguous residues needed to classify
	minClassifiable = 10

	// nucleotideFraction is the ACGTU fraction above which a sequence is nucleotide
	nucleotideFraction = 0.9
)

// maxNamed caps the offending records listed in a MixedSequenceTypeError message
const maxNamed = 5

// Fragment names one classified record
type Fragment struct {
	// Name is the first word of the record header, or "#n" for a record
	// without one
	Name string
	Type Type
}

// MixedSequenceTypeError is returned when records of one file disagree on their type
type MixedSequenceTypeError struct {
	// First is the first classifiable record, which sets the expected type
	First Fragment
	// Fragments are the records whose type differs from First
	Fragments []Fragment
}

func (e *MixedSequenceTypeError) Error() string {
	if len(e.Fragments) == 0 {
		return "input mixes nucleotide and protein sequences"
	}
	names := make([]string, 0, maxNamed)
	for _, f := range e.Fragments {
		if len(names) == maxNamed {
			break
		}
		names = append(names, f.Name)
	}
	msg := fmt.Sprintf("input mixes nucleotide and protein sequences: %s is %s, but %d record(s) are %s (%s",
		e.First.Name, e.First.Type, len(e.Fragments), e.Fragments[0].Type, strings.Join(names, ", "))
	if n := len(e.Fragments) - len(names); n > 0 {
		msg += fmt.Sprintf(" and %d more", n)
	}
	return msg + ")"
}

// SequenceTypeMismatchError is returned when the declared type contradicts the file content
type SequenceTypeMismatchError struct {
	Declared Type
	Detected Type
}

func (e *SequenceTypeMismatchError) Error() string {
	return fmt.Sprintf("declared sequence type %s but input looks like %s", e.Declared, e.Detected)
}

// Clean strips every non-letter character and the ambiguity codes N and X
func Clean(residues string) string {
	var b strings.Builder
	b.Grow(len(residues))
	for _, r := range residues {
		if r > unicode.MaxASCII || !unicode.IsLetter(r) {
			continue
		}
		switch r {
		case 'N', 'n', 'X', 'x':
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Classify guesses the type of raw residue text from its composition.
// Unknown is returned when fewer than ten unambiguous residues remain.
func Classify(residues string) Type {
	cleaned := Clean(residues)
	if len(cleaned) < minClassifiable {
		return Unknown
	}

	var na int
	for i := 0; i < len(cleaned); i++ {
		switch cleaned[i] {
		case 'A', 'C', 'G', 'T', 'U', 'a', 'c', 'g', 't', 'u':
			na++
		}
	}

	if float64(na) > nucleotideFraction*float64(len(cleaned)) {
		return Nucleotide
	}
	return Protein
}

// ClassifyFile splits FASTA content on its header lines, classifies every
// record and collapses the result to one type
func ClassifyFile(content []byte) (Type, error) {
	var (
		first     Fragment
		offending []Fragment
	)

	for _, r := range splitRecords(content) {
		t := Classify(r.residues)
		if t == Unknown {
			continue
		}
		if first.Type == Unknown {
			first = Fragment{Name: r.name, Type: t}
		} else if t != first.Type {
			offending = append(offending, Fragment{Name: r.name, Type: t})
		}
	}

	if len(offending) > 0 {
		return Unknown, &MixedSequenceTypeError{First: first, Fragments: offending}
	}
	return first.Type, nil
}

// CheckDeclared cross-checks the user declared type against the file content.
// Content too short to classify does not contradict the declaration.
func CheckDeclared(declared Type, content []byte) (Type, error) {
	detected, err := ClassifyFile(content)
	if err != nil {
		return Unknown, err
	}
	if detected != Unknown && detected != declared {
		return detected, &SequenceTypeMismatchError{Declared: declared, Detected: detected}
	}
	return detected, nil
}

type record struct {
	name     string
	residues string
}

// splitRecords returns the non-empty records between header lines. The first
// record does not need a header.
func splitRecords(content []byte) []record {
	var (
		records []record
		name    string
		n       int
		current bytes.Buffer
	)
	flush := func() {
		if current.Len() > 0 {
			if name == "" {
				name = fmt.Sprintf("#%d", n+1)
			}
			records = append(records, record{name: name, residues: current.String()})
			current.Reset()
		}
	}

	for _, line := range bytes.SplitAfter(content, []byte("\n")) {
		if bytes.HasPrefix(line, []byte(">")) {
			flush()
			n++
			name = ""
			if f := strings.Fields(string(line[1:])); len(f) > 0 {
				name = f[0]
			}
			continue
		}
		current.Write(line)
	}
	flush()

	return records
}
