package evaluation

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/mikeboe/paper-search/pkg/ranking"
)

// Summary aggregates a run. Averages cover successful records only.
type Summary struct {
	Total        int            `json:"total"`
	Successful   int            `json:"successful"`
	Failed       int            `json:"failed"`
	Average      ranking.Scores `json:"average"`
	AverageTurns float64        `json:"averageTurns"`
	Failures     []Record       `json:"failures,omitempty"`
}

func Summarize(records []Record) Summary {
	s := Summary{Total: len(records)}

	var sum ranking.Scores
	var turns int
	for _, r := range records {
		if r.Failed() {
			s.Failures = append(s.Failures, r)
			continue
		}
		s.Successful++
		sum = sum.Add(r.Scores)
		turns += r.Turns
	}
	s.Failed = len(s.Failures)

	if s.Successful > 0 {
		n := float64(s.Successful)
		s.Average = sum.Scale(1 / n)
		s.AverageTurns = float64(turns) / n
	}
	return s
}

var (
	rule      = strings.Repeat("=", 80)
	innerRule = "[" + strings.Repeat("=", 76) + "]"
)

// WriteReport prints the per-query details, the aggregate block and the
// list of failed queries.
func WriteReport(w io.Writer, records []Record, s Summary) error {
	p := &printer{w: w}

	p.printf("\n\n%s\nDETAILED RESULTS\n%s\n\n", rule, rule)
	for i, r := range records {
		p.printf("\n%s\nQuery %d/%d\n%s\n", innerRule, i+1, len(records), innerRule)
		p.printf("Query: %s\n", r.Query)
		p.printf("Ground truth papers: %d - [%s]\n", len(r.GroundTruth), strings.Join(r.GroundTruth, ", "))

		if r.Failed() {
			p.printf("\nERROR: %s\n", r.Error)
			continue
		}

		predicted := "none"
		if len(r.Predicted) > 0 {
			predicted = strings.Join(r.Predicted, ", ")
		}
		p.printf("\nPredicted papers: %d\n", len(r.Predicted))
		p.printf("Predicted IDs: %s\n", predicted)
		p.printf("\nMetrics:\n")
		p.printf("  NDCG:        %.4f  (NDCG@5: %.4f, NDCG@10: %.4f)\n", r.NDCG, r.NDCG5, r.NDCG10)
		p.printf("  Recall:      %.4f  (Recall@5: %.4f, Recall@10: %.4f)\n", r.Recall, r.Recall5, r.Recall10)
		p.printf("  Precision:   %.4f  (Precision@5: %.4f, Precision@10: %.4f)\n", r.Precision, r.Precision5, r.Precision10)
		p.printf("  Turns:       %d\n", r.Turns)
	}

	p.printf("\n\n%s\nFINAL AGGREGATE METRICS\n%s\n\n", rule, rule)
	if s.Successful > 0 {
		a := s.Average
		p.printf("Total queries:        %d\n", s.Total)
		p.printf("Successful:           %d\n", s.Successful)
		p.printf("Failed:               %d\n\n", s.Failed)
		p.printf("Average NDCG:         %.4f\n", a.NDCG)
		p.printf("Average NDCG@5:       %.4f\n", a.NDCG5)
		p.printf("Average NDCG@10:      %.4f\n\n", a.NDCG10)
		p.printf("Average Recall:       %.4f\n", a.Recall)
		p.printf("Average Recall@5:     %.4f\n", a.Recall5)
		p.printf("Average Recall@10:    %.4f\n\n", a.Recall10)
		p.printf("Average Precision:    %.4f\n", a.Precision)
		p.printf("Average Precision@5:  %.4f\n", a.Precision5)
		p.printf("Average Precision@10: %.4f\n\n", a.Precision10)
		p.printf("Average Turns:        %.2f\n", s.AverageTurns)
	} else {
		p.printf("All queries failed!\n")
	}

	if s.Failed > 0 {
		p.printf("\n%s\nFAILED QUERIES (%d)\n%s\n\n", rule, s.Failed, rule)
		for i, r := range s.Failures {
			p.printf("%d. %s\n   Error: %s\n\n", i+1, r.Query, r.Error)
		}
	}

	p.printf("\n%s\n\n", rule)
	return p.err
}

// WriteJSON writes the records and summary as one indented document.
func WriteJSON(w io.Writer, records []Record, s Summary) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(struct {
		Records []Record `json:"records"`
		Summary Summary  `json:"summary"`
	}{records, s})
}

// printer keeps the first write error so the report reads linearly.
type printer struct {
	w   io.Writer
	err error
}

func (p *printer) printf(format string, args ...any) {
	if p.err != nil {
		return
	}
	_, p.err = fmt.Fprintf(p.w, format, args...)
}
