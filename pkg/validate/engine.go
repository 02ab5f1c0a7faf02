package validate

import (
	"fmt"
	"sort"
	"strings"

	"github.com/flopezo/genevalidator/pkg/seq"
)

// Rule checks one property of a prediction against its hits
type Rule interface {
	// Name is the short name used in configuration and reports
	Name() string

	// Run returns the rule's report. Returning an error downgrades the
	// report to inconclusive.
	Run(predicted *seq.Sequence, hits []*seq.Sequence) (Report, error)
}

// Engine runs an ordered set of rules against the same query
type Engine struct {
	rules []Rule
}

// NewEngine creates an engine that runs rules in the given order
func NewEngine(rules ...Rule) *Engine {
	return &Engine{rules: rules}
}

// Rules returns the names of the registered rules
func (e *Engine) Rules() []string {
	names := make([]string, len(e.rules))
	for i, r := range e.rules {
		names[i] = r.Name()
	}
	return names
}

// Validate runs every rule and returns one report per rule, in rule order.
// A rule that errors or panics never stops the remaining rules.
func (e *Engine) Validate(predicted *seq.Sequence, hits []*seq.Sequence) []Report {
	reports := make([]Report, len(e.rules))
	for i, r := range e.rules {
		reports[i] = runRule(r, predicted, hits)
	}
	return reports
}

// InconclusiveAll returns one inconclusive report per rule with the same reason
func (e *Engine) InconclusiveAll(reason string) []Report {
	reports := make([]Report, len(e.rules))
	for i, r := range e.rules {
		reports[i] = NewInconclusive(r.Name(), reason)
	}
	return reports
}

func runRule(r Rule, predicted *seq.Sequence, hits []*seq.Sequence) (report Report) {
	defer func() {
		if p := recover(); p != nil {
			report = NewInconclusive(r.Name(), NotEnoughEvidence)
		}
	}()

	result, err := r.Run(predicted, hits)
	if err != nil {
		return NewInconclusive(r.Name(), NotEnoughEvidence)
	}
	result.Rule = r.Name()
	return result
}

// Options tunes the built-in rules
type Options struct {
	FrameMinHits int

	MergeMinHits int
	// MergeThreshold is the merge distance in amino-acid units. Zero uses
	// a tenth of the predicted length.
	MergeThreshold     float64
	MergeMinClusterPct float64
}

// DefaultOptions returns the thresholds used when nothing is configured
func DefaultOptions() Options {
	return Options{
		FrameMinHits:       5,
		MergeMinHits:       5,
		MergeMinClusterPct: 0.1,
	}
}

var builtin = map[string]func(Options) Rule{
	FrameRuleName: func(o Options) Rule { return &ReadingFrame{MinHits: o.FrameMinHits} },
	MergeRuleName: func(o Options) Rule {
		return &GeneMerge{MinHits: o.MergeMinHits, Threshold: o.MergeThreshold, MinClusterFraction: o.MergeMinClusterPct}
	},
}

// Available lists the names of the built-in rules
func Available() []string {
	names := make([]string, 0, len(builtin))
	for name := range builtin {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Select builds the named built-in rules in order
func Select(names []string, opts Options) ([]Rule, error) {
	rules := make([]Rule, 0, len(names))
	for _, name := range names {
		build, ok := builtin[strings.ToLower(strings.TrimSpace(name))]
		if !ok {
			return nil, fmt.Errorf("unknown validation %q (available: %s)", name, strings.Join(Available(), ", "))
		}
		rules = append(rules, build(opts))
	}
	return rules, nil
}
