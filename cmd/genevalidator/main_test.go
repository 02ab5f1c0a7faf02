package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
	"gopkg.in/yaml.v3"

	"github.com/flopezo/genevalidator/pkg/blast"
	"github.com/flopezo/genevalidator/pkg/config"
	"github.com/flopezo/genevalidator/pkg/fasta"
	"github.com/flopezo/genevalidator/pkg/pipeline"
	"github.com/flopezo/genevalidator/pkg/seq"
	"github.com/flopezo/genevalidator/pkg/validate"
)

const queries = `>g1 first gene
MKVLAAGICLLWTPEQRSTV
>g2 second gene
MKVLAAGICLLWTPEQRSTV
>g3 third gene
MKVLAAGICLLWTPEQRSTV
`

const results = `# BLASTP 2.14.0+
# Query: g1 first gene
# Fields: query id, subject id, subject acc., subject length, q. start, q. end, s. start, s. end, alignment length, query frame, % identity, evalue
# 6 hits found
g1	s1	A1	100	1	20	1	20	20	1	99.0	1e-10
g1	s2	A2	100	1	20	1	20	20	1	99.0	1e-10
g1	s3	A3	100	1	20	1	20	20	1	99.0	1e-10
g1	s4	A4	100	1	20	1	20	20	1	99.0	1e-10
g1	s5	A5	100	1	20	1	20	20	1	99.0	1e-10
g1	s6	A6	100	1	20	1	20	20	2	99.0	1e-10
# BLASTP 2.14.0+
# Query: g2 second gene
# 0 hits found
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func decodeReports(t *testing.T, r io.Reader) []queryDoc {
	t.Helper()
	var docs []queryDoc
	dec := yaml.NewDecoder(r)
	for {
		var d queryDoc
		err := dec.Decode(&d)
		if errors.Is(err, io.EOF) {
			return docs
		}
		if err != nil {
			t.Fatalf("decoding reports: %v", err)
		}
		docs = append(docs, d)
	}
}

func TestRunValidate(t *testing.T) {
	dir := t.TempDir()
	v := config.NewViper()
	v.Set("fasta", writeFile(t, dir, "q.fa", queries))
	v.Set("results", writeFile(t, dir, "q.tsv", results))
	v.Set("type", "protein")
	v.Set("rules", []string{"frame"})
	v.Set("report.out", filepath.Join(dir, "reports.yaml"))
	cfg, err := config.New(v)
	if err != nil {
		t.Fatalf("config.New() error = %v", err)
	}

	st, err := runValidate(context.Background(), cfg, log.New(io.Discard), io.Discard)
	if err != nil {
		t.Fatalf("runValidate() error = %v", err)
	}
	if st.Current != 3 || st.Tail != 1 || st.Validated != 1 {
		t.Errorf("state = %+v", st)
	}

	f, err := os.Open(filepath.Join(dir, "reports.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	docs := decodeReports(t, f)

	want := []queryDoc{
		{Index: 1, Definition: "g1 first gene", Length: 20, Hits: 6, Validations: []reportDoc{
			{Rule: "frame", Status: "fail", Message: "1:5; 2:1; "},
		}},
		{Index: 2, Definition: "g2 second gene", Length: 20, Validations: []reportDoc{
			{Rule: "frame", Status: "inconclusive", Reason: pipeline.NoAlignmentEvidence},
		}},
		{Index: 3, Definition: "g3 third gene", Length: 20, Validations: []reportDoc{
			{Rule: "frame", Status: "inconclusive", Reason: pipeline.NoAlignmentEvidence},
		}},
	}
	if !reflect.DeepEqual(docs, want) {
		t.Errorf("reports = %+v, want %+v", docs, want)
	}
}

func TestRunValidateMissingInput(t *testing.T) {
	dir := t.TempDir()
	v := config.NewViper()
	v.Set("fasta", writeFile(t, dir, "q.fa", queries))
	v.Set("results", filepath.Join(dir, "absent.xml"))
	cfg, err := config.New(v)
	if err != nil {
		t.Fatal(err)
	}
	_, err = runValidate(context.Background(), cfg, log.New(io.Discard), io.Discard)
	var mie *pipeline.MissingInputError
	if !errors.As(err, &mie) || !strings.HasSuffix(mie.Path, "absent.xml") {
		t.Errorf("runValidate() error = %v, want MissingInputError", err)
	}
}

func TestReportSinkStdout(t *testing.T) {
	var out bytes.Buffer
	sink, err := newReportSink(context.Background(), "-", &out)
	if err != nil {
		t.Fatal(err)
	}
	q := pipeline.Query{
		Index:     4,
		Predicted: &seq.Sequence{Definition: "g4", Length: 120},
		Hits:      []*seq.Sequence{{}, {}},
		Reports:   []validate.Report{validate.Passed("frame", "1:2; ")},
	}
	if err := sink.Report(q); err != nil {
		t.Fatal(err)
	}
	if err := sink.Close(); err != nil {
		t.Fatal(err)
	}

	want := "index: 4\ndefinition: g4\nlength: 120\nhits: 2\nvalidations:\n  - rule: frame\n    status: pass\n    message: '1:2; '\n"
	if out.String() != want {
		t.Errorf("report =\n%s\nwant\n%s", out.String(), want)
	}
}

func TestPrintOffsets(t *testing.T) {
	idx, err := fasta.NewIndexBytes([]byte(queries))
	if err != nil {
		t.Fatal(err)
	}
	var out bytes.Buffer
	if err := printOffsets(&out, idx); err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 4 {
		t.Fatalf("got %d lines, want header and 3 records:\n%s", len(lines), out.String())
	}
	if got := strings.Fields(lines[2]); !reflect.DeepEqual(got, []string{"2", "36", "36", "g2"}) {
		t.Errorf("record 2 = %q", got)
	}
}

func TestDiagnose(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{fmt.Errorf("load: %w", &pipeline.MissingInputError{Path: "x.fa"}), "x.fa was not found"},
		{&seq.SequenceTypeMismatchError{Declared: seq.Protein, Detected: seq.Nucleotide}, "declared protein but look like nucleotide"},
		{&seq.MixedSequenceTypeError{}, "mixes nucleotide and protein"},
		{&blast.MalformedResultError{Reason: "empty result stream"}, "-outfmt 5"},
		{&fasta.MalformedInputError{Reason: "no records"}, "does not match the BLAST results"},
		{&pipeline.InvalidStartIndexError{Index: 0}, "1 or greater"},
		{errors.New("boom"), "Error: boom"},
	}
	for _, tt := range tests {
		if got := diagnose(tt.err); !strings.Contains(got, tt.want) {
			t.Errorf("diagnose(%v) = %q, want it to contain %q", tt.err, got, tt.want)
		}
	}
}

func TestNewLogger(t *testing.T) {
	if _, err := newLogger("debug"); err != nil {
		t.Errorf("newLogger(debug) error = %v", err)
	}
	if _, err := newLogger("chatty"); err == nil {
		t.Error("newLogger(chatty) succeeded")
	}
}
