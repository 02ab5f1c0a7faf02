package validate

import (
	"fmt"
	"strings"

	"github.com/flopezo/genevalidator/pkg/seq"
)

// FrameRuleName is the configuration name of the reading frame rule
const FrameRuleName = "frame"

// ReadingFrame fails when the HSPs of the hits use more than one reading
// frame on the same strand, which points at a frameshift in the prediction.
// Frame 0 (protein queries) belongs to neither strand.
type ReadingFrame struct {
	MinHits int
}

func (v *ReadingFrame) Name() string {
	return FrameRuleName
}

func (v *ReadingFrame) Run(predicted *seq.Sequence, hits []*seq.Sequence) (Report, error) {
	if predicted == nil || len(hits) < v.MinHits {
		return Report{}, ErrInsufficientEvidence
	}

	histo := newFrameHistogram()
	for _, hit := range hits {
		for _, hsp := range hit.Hsps {
			histo.add(hsp.ReadingFrame)
		}
	}

	var countP, countN int
	for _, frame := range histo.frames {
		if frame > 0 {
			countP++
		} else if frame < 0 {
			countN++
		}
	}

	msg := histo.String()
	if countP > 1 || countN > 1 {
		return Failed(v.Name(), msg), nil
	}
	return Passed(v.Name(), msg), nil
}

// frameHistogram counts frames in order of first appearance
type frameHistogram struct {
	frames []int
	counts map[int]int
}

func newFrameHistogram() *frameHistogram {
	return &frameHistogram{counts: make(map[int]int)}
}

func (h *frameHistogram) add(frame int) {
	if _, seen := h.counts[frame]; !seen {
		h.frames = append(h.frames, frame)
	}
	h.counts[frame]++
}

// String renders "frame:count; " for every frame
func (h *frameHistogram) String() string {
	var b strings.Builder
	for _, frame := range h.frames {
		fmt.Fprintf(&b, "%d:%d; ", frame, h.counts[frame])
	}
	return b.String()
}
