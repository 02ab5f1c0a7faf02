package validate

import (
	"errors"
	"reflect"
	"testing"

	"github.com/flopezo/genevalidator/pkg/seq"
)

// hitsWithFrames builds one hit per frame occurrence, in the order given
func hitsWithFrames(frames ...[2]int) []*seq.Sequence {
	var hits []*seq.Sequence
	for _, fc := range frames {
		for i := 0; i < fc[1]; i++ {
			hits = append(hits, &seq.Sequence{
				Identifier: "hit",
				Hsps:       []seq.Hsp{{ReadingFrame: fc[0], QueryFrom: 1, QueryTo: 50}},
			})
		}
	}
	return hits
}

func TestReadingFrame_Run(t *testing.T) {
	predicted := &seq.Sequence{Definition: "q1", Length: 100}

	tests := []struct {
		name    string
		hits    []*seq.Sequence
		status  Status
		message string
	}{
		{
			"frameshift on the forward strand",
			hitsWithFrames([2]int{1, 10}, [2]int{2, 1}, [2]int{-1, 5}),
			Fail,
			"1:10; 2:1; -1:5; ",
		},
		{
			"one frame per strand",
			hitsWithFrames([2]int{1, 10}, [2]int{-1, 5}),
			Pass,
			"1:10; -1:5; ",
		},
		{
			"two reverse frames",
			hitsWithFrames([2]int{-3, 4}, [2]int{-1, 2}),
			Fail,
			"-3:4; -1:2; ",
		},
		{
			"protein frames are strand neutral",
			hitsWithFrames([2]int{0, 6}),
			Pass,
			"0:6; ",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := &ReadingFrame{MinHits: 5}
			got, err := v.Run(predicted, tt.hits)
			if err != nil {
				t.Fatalf("Run() error = %v", err)
			}
			if got.Status != tt.status || got.Message != tt.message {
				t.Errorf("Run() = %v %q, want %v %q", got.Status, got.Message, tt.status, tt.message)
			}
		})
	}
}

func TestReadingFrame_insufficientEvidence(t *testing.T) {
	v := &ReadingFrame{MinHits: 5}
	if _, err := v.Run(&seq.Sequence{}, hitsWithFrames([2]int{1, 4})); !errors.Is(err, ErrInsufficientEvidence) {
		t.Errorf("Run() with 4 hits error = %v, want ErrInsufficientEvidence", err)
	}
	if _, err := v.Run(nil, hitsWithFrames([2]int{1, 6})); !errors.Is(err, ErrInsufficientEvidence) {
		t.Errorf("Run() without prediction error = %v, want ErrInsufficientEvidence", err)
	}
}

func spanHits(n, from, to int) []*seq.Sequence {
	hits := make([]*seq.Sequence, n)
	for i := range hits {
		hits[i] = &seq.Sequence{Hsps: []seq.Hsp{
			{QueryFrom: from + i%3, QueryTo: (from+to)/2},
			{QueryFrom: (from+to)/2 + 1, QueryTo: to - i%2},
		}}
	}
	return hits
}

func TestGeneMerge_Run(t *testing.T) {
	predicted := &seq.Sequence{Definition: "q1", Length: 300}

	tests := []struct {
		name   string
		hits   []*seq.Sequence
		status Status
	}{
		{"two disjoint groups", append(spanHits(5, 1, 100), spanHits(5, 200, 300)...), Fail},
		{"one group", spanHits(10, 1, 300), Pass},
		{"overlapping groups", append(spanHits(5, 1, 200), spanHits(5, 50, 250)...), Pass},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := &GeneMerge{MinHits: 5, MinClusterFraction: 0.1}
			got, err := v.Run(predicted, tt.hits)
			if err != nil {
				t.Fatalf("Run() error = %v", err)
			}
			if got.Status != tt.status {
				t.Errorf("Run() = %v (%s), want %v", got.Status, got.Message, tt.status)
			}
		})
	}

	v := &GeneMerge{MinHits: 5}
	if _, err := v.Run(predicted, spanHits(3, 1, 100)); !errors.Is(err, ErrInsufficientEvidence) {
		t.Errorf("Run() with 3 hits error = %v, want ErrInsufficientEvidence", err)
	}
}

type stubRule struct {
	name   string
	report Report
	err    error
	panic  bool
}

func (r *stubRule) Name() string { return r.name }

func (r *stubRule) Run(*seq.Sequence, []*seq.Sequence) (Report, error) {
	if r.panic {
		panic("index out of range")
	}
	return r.report, r.err
}

func TestEngine_Validate(t *testing.T) {
	engine := NewEngine(
		&stubRule{name: "ok", report: Passed("", "fine")},
		&stubRule{name: "broken", panic: true},
		&stubRule{name: "short", err: ErrInsufficientEvidence},
		&stubRule{name: "bad", report: Failed("", "shifted")},
	)

	got := engine.Validate(&seq.Sequence{}, nil)
	want := []Report{
		{Rule: "ok", Status: Pass, Message: "fine"},
		{Rule: "broken", Status: Inconclusive, Reason: NotEnoughEvidence},
		{Rule: "short", Status: Inconclusive, Reason: NotEnoughEvidence},
		{Rule: "bad", Status: Fail, Message: "shifted"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Validate() = %v, want %v", got, want)
	}

	if names := engine.Rules(); !reflect.DeepEqual(names, []string{"ok", "broken", "short", "bad"}) {
		t.Errorf("Rules() = %v", names)
	}
}

func TestSelect(t *testing.T) {
	rules, err := Select([]string{"merge", " Frame "}, DefaultOptions())
	if err != nil {
		t.Fatalf("Select() error = %v", err)
	}
	if len(rules) != 2 || rules[0].Name() != MergeRuleName || rules[1].Name() != FrameRuleName {
		t.Errorf("Select() = %v", rules)
	}
	if frame := rules[1].(*ReadingFrame); frame.MinHits != 5 {
		t.Errorf("frame MinHits = %d, want 5", frame.MinHits)
	}

	if _, err := Select([]string{"duplication"}, DefaultOptions()); err == nil {
		t.Error("Select() with an unknown rule returned no error")
	}
}
