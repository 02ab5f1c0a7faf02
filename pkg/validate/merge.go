package validate

import (
	"fmt"
	"math"

	"github.com/flopezo/genevalidator/pkg/cluster"
	"github.com/flopezo/genevalidator/pkg/seq"
)

// MergeRuleName is the configuration name of the gene merge rule
const MergeRuleName = "merge"

// GeneMerge clusters the query spans covered by each hit. Two well supported
// clusters over disjoint parts of the prediction suggest two adjacent genes
// were predicted as one.
type GeneMerge struct {
	MinHits int

	// Threshold is the merge distance; zero means 10% of the predicted length
	Threshold float64

	// MinClusterFraction is the fraction of hits a cluster needs to count
	MinClusterFraction float64
}

func (v *GeneMerge) Name() string {
	return MergeRuleName
}

func (v *GeneMerge) Run(predicted *seq.Sequence, hits []*seq.Sequence) (Report, error) {
	if predicted == nil || len(hits) < v.MinHits {
		return Report{}, ErrInsufficientEvidence
	}

	var spans []cluster.Pair
	for _, hit := range hits {
		if from, to, ok := hit.QuerySpan(); ok {
			spans = append(spans, cluster.Pair{X: float64(from), Y: float64(to)})
		}
	}
	if len(spans) < v.MinHits {
		return Report{}, ErrInsufficientEvidence
	}

	threshold := v.Threshold
	if threshold <= 0 {
		threshold = 0.1 * float64(predicted.Length)
	}
	if threshold <= 0 {
		return Report{}, ErrInsufficientEvidence
	}

	minSize := int(math.Ceil(v.MinClusterFraction * float64(len(spans))))
	if minSize < 2 {
		minSize = 2
	}

	clusters := cluster.Agglomerate(spans, threshold, minSize)
	if len(clusters) < 2 {
		return Passed(v.Name(), fmt.Sprintf("%d supported cluster(s) of query spans", len(clusters))), nil
	}

	a, b := clusters[0].Mean(), clusters[1].Mean()
	msg := fmt.Sprintf("query spans %.0f-%.0f (%d hits) and %.0f-%.0f (%d hits)",
		a.X, a.Y, clusters[0].Weight(), b.X, b.Y, clusters[1].Weight())
	if a.Y < b.X || b.Y < a.X {
		return Failed(v.Name(), msg), nil
	}
	return Passed(v.Name(), msg), nil
}
