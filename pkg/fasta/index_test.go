package fasta

import (
	"bytes"
	"errors"
	"reflect"
	"strings"
	"sync"
	"testing"
)

const threeQueries = ">q1 first query\nMKVLAAGIVG\nLLLAQ\n>q2\nMSTWER\n>q3 last > marker inside\nGGHW\nKK"

func TestNewIndex_offsets(t *testing.T) {
	x, err := NewIndexBytes([]byte(threeQueries))
	if err != nil {
		t.Fatalf("NewIndexBytes() error = %v", err)
	}

	want := []int64{0, 33, 44, int64(len(threeQueries))}
	if got := x.Offsets(); !reflect.DeepEqual(got, want) {
		t.Errorf("Offsets() = %v, want %v", got, want)
	}
	if x.Len() != 3 {
		t.Errorf("Len() = %d, want 3", x.Len())
	}
}

func TestIndex_Extract_concatenation(t *testing.T) {
	inputs := []string{
		threeQueries,
		">only\nACGT\n",
		">a\n\n>b\nAC\n\n>c\n",
		">crlf\r\nACGT\r\n>second\r\nTTTT\r\n",
	}
	for _, in := range inputs {
		x, err := NewIndexBytes([]byte(in))
		if err != nil {
			t.Fatalf("NewIndexBytes(%q) error = %v", in, err)
		}

		var joined bytes.Buffer
		for i := 1; i <= x.Len(); i++ {
			raw, err := x.Extract(i)
			if err != nil {
				t.Fatalf("Extract(%d) error = %v", i, err)
			}
			if raw[0] != '>' {
				t.Errorf("Extract(%d) = %q, does not start at a marker", i, raw)
			}
			joined.Write(raw)
		}
		if joined.String() != in {
			t.Errorf("concatenated records = %q, want %q", joined.String(), in)
		}
	}
}

func TestIndex_Extract_bounds(t *testing.T) {
	x, err := NewIndexBytes([]byte(threeQueries))
	if err != nil {
		t.Fatal(err)
	}

	for _, i := range []int{0, 4, -1} {
		_, err := x.Extract(i)
		var malformed *MalformedInputError
		if !errors.As(err, &malformed) {
			t.Errorf("Extract(%d) error = %v, want MalformedInputError", i, err)
		}
	}
}

func TestNewIndex_noMarker(t *testing.T) {
	for _, in := range []string{"", "ACGT\nACGT\n", "  >not at line start\n"} {
		_, err := NewIndexBytes([]byte(in))
		var malformed *MalformedInputError
		if !errors.As(err, &malformed) {
			t.Errorf("NewIndexBytes(%q) error = %v, want MalformedInputError", in, err)
		}
	}
}

func TestIndex_Read(t *testing.T) {
	x, err := NewIndexBytes([]byte(threeQueries))
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		i    int
		want Record
		id   string
	}{
		{1, Record{Header: "q1 first query", Residues: "MKVLAAGIVGLLLAQ"}, "q1"},
		{2, Record{Header: "q2", Residues: "MSTWER"}, "q2"},
		{3, Record{Header: "q3 last > marker inside", Residues: "GGHWKK"}, "q3"},
	}
	for _, tt := range tests {
		got, err := x.Read(tt.i)
		if err != nil {
			t.Fatalf("Read(%d) error = %v", tt.i, err)
		}
		if got != tt.want {
			t.Errorf("Read(%d) = %+v, want %+v", tt.i, got, tt.want)
		}
		if got.ID() != tt.id {
			t.Errorf("Read(%d).ID() = %q, want %q", tt.i, got.ID(), tt.id)
		}
	}
}

func TestIndex_concurrentExtract(t *testing.T) {
	x, err := NewIndexBytes([]byte(threeQueries))
	if err != nil {
		t.Fatal(err)
	}
	want := make([]Record, x.Len()+1)
	for i := 1; i <= x.Len(); i++ {
		want[i], _ = x.Read(i)
	}

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 1; i <= x.Len(); i++ {
				got, err := x.Read(i)
				if err != nil || got != want[i] {
					t.Errorf("concurrent Read(%d) = %+v, %v", i, got, err)
				}
			}
		}()
	}
	wg.Wait()
}

func TestIndex_WriteFAI(t *testing.T) {
	x, err := NewIndexBytes([]byte(">q1 desc\nACGT\nAC\n>q2\nMKVL\n"))
	if err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if err := x.WriteFAI(&buf); err != nil {
		t.Fatalf("WriteFAI() error = %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("WriteFAI() wrote %d lines, want 2:\n%s", len(lines), buf.String())
	}
	for _, line := range lines {
		fields := strings.Split(line, "\t")
		if len(fields) != 5 {
			t.Errorf("fai line %q has %d fields, want 5", line, len(fields))
		}
	}
}
