// Package validate runs pluggable rules over a prediction and its BLAST hits.
package validate

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInsufficientEvidence is returned by rules whose preconditions are not met
var ErrInsufficientEvidence = errors.New("not enough evidence")

// NotEnoughEvidence is the reason attached to downgraded rule reports
const NotEnoughEvidence = "Not enough evidence"

// Status is the outcome of one rule
type Status int

const (
	Inconclusive Status = iota
	Pass
	Fail
)

func (s Status) String() string {
	switch s {
	case Pass:
		return "pass"
	case Fail:
		return "fail"
	default:
		return "inconclusive"
	}
}

// Report is the immutable result of one rule on one query
type Report struct {
	// Rule is the short name of the rule that produced the report
	Rule    string
	Status  Status
	Message string

	// Reason explains an inconclusive status
	Reason string
}

// Passed builds a passing report
func Passed(rule, msg string) Report {
	return Report{Rule: rule, Status: Pass, Message: msg}
}

// Failed builds a failing report
func Failed(rule, msg string) Report {
	return Report{Rule: rule, Status: Fail, Message: msg}
}

// NewInconclusive builds an inconclusive report
func NewInconclusive(rule, reason string) Report {
	return Report{Rule: rule, Status: Inconclusive, Reason: reason}
}

func (r Report) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s", r.Rule, r.Status)
	if r.Reason != "" {
		fmt.Fprintf(&b, " (%s)", r.Reason)
	}
	if r.Message != "" {
		fmt.Fprintf(&b, " %s", r.Message)
	}
	return b.String()
}
