// Package ranking scores a predicted list of paper ids against ground truth
// with binary relevance.
package ranking

import "math"

// truncate keeps the first k ids; k <= 0 keeps everything.
func truncate(predicted []string, k int) []string {
	if k > 0 && len(predicted) > k {
		return predicted[:k]
	}
	return predicted
}

func set(ids []string) map[string]struct{} {
	m := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		m[id] = struct{}{}
	}
	return m
}

// matches counts distinct predicted ids found in truth.
func matches(predicted []string, truth map[string]struct{}) int {
	seen := make(map[string]struct{}, len(predicted))
	n := 0
	for _, id := range predicted {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if _, ok := truth[id]; ok {
			n++
		}
	}
	return n
}

// NDCG is DCG over the truncated prediction divided by the DCG of
// min(|groundTruth|, |truncated|) relevant hits. Empty ground truth scores 0.
// A repeated id only counts at its first position.
func NDCG(predicted, groundTruth []string, k int) float64 {
	predicted = truncate(predicted, k)
	truth := set(groundTruth)

	var dcg float64
	seen := make(map[string]struct{}, len(predicted))
	for i, id := range predicted {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if _, ok := truth[id]; ok {
			dcg += 1 / math.Log2(float64(i+2))
		}
	}

	var idcg float64
	for i := range min(len(truth), len(predicted)) {
		idcg += 1 / math.Log2(float64(i+2))
	}

	if idcg == 0 {
		return 0
	}
	return dcg / idcg
}

// Recall is the share of ground truth found in the truncated prediction.
func Recall(predicted, groundTruth []string, k int) float64 {
	truth := set(groundTruth)
	if len(truth) == 0 {
		return 0
	}
	return float64(matches(truncate(predicted, k), truth)) / float64(len(truth))
}

// Precision is the share of the truncated prediction that is relevant.
func Precision(predicted, groundTruth []string, k int) float64 {
	predicted = truncate(predicted, k)
	if len(predicted) == 0 {
		return 0
	}
	return float64(matches(predicted, set(groundTruth))) / float64(len(predicted))
}

// Scores holds every metric at the unbounded, 5 and 10 cutoffs.
type Scores struct {
	NDCG        float64 `json:"ndcg"`
	NDCG5       float64 `json:"ndcg5"`
	NDCG10      float64 `json:"ndcg10"`
	Recall      float64 `json:"recall"`
	Recall5     float64 `json:"recall5"`
	Recall10    float64 `json:"recall10"`
	Precision   float64 `json:"precision"`
	Precision5  float64 `json:"precision5"`
	Precision10 float64 `json:"precision10"`
}

func Evaluate(predicted, groundTruth []string) Scores {
	return Scores{
		NDCG:        NDCG(predicted, groundTruth, 0),
		NDCG5:       NDCG(predicted, groundTruth, 5),
		NDCG10:      NDCG(predicted, groundTruth, 10),
		Recall:      Recall(predicted, groundTruth, 0),
		Recall5:     Recall(predicted, groundTruth, 5),
		Recall10:    Recall(predicted, groundTruth, 10),
		Precision:   Precision(predicted, groundTruth, 0),
		Precision5:  Precision(predicted, groundTruth, 5),
		Precision10: Precision(predicted, groundTruth, 10),
	}
}

// Add returns the element-wise sum.
func (s Scores) Add(o Scores) Scores {
	return Scores{
		NDCG: s.NDCG + o.NDCG, NDCG5: s.NDCG5 + o.NDCG5, NDCG10: s.NDCG10 + o.NDCG10,
		Recall: s.Recall + o.Recall, Recall5: s.Recall5 + o.Recall5, Recall10: s.Recall10 + o.Recall10,
		Precision: s.Precision + o.Precision, Precision5: s.Precision5 + o.Precision5, Precision10: s.Precision10 + o.Precision10,
	}
}

// Scale multiplies every metric by f.
func (s Scores) Scale(f float64) Scores {
	return Scores{
		NDCG: s.NDCG * f, NDCG5: s.NDCG5 * f, NDCG10: s.NDCG10 * f,
		Recall: s.Recall * f, Recall5: s.Recall5 * f, Recall10: s.Recall10 * f,
		Precision: s.Precision * f, Precision5: s.Precision5 * f, Precision10: s.Precision10 * f,
	}
}
