// Package quality scores how well an extraction run covered a document.
package quality

import "github.com/sells-group/freight-cli/internal/model"

// Summary aggregates the per-trip figures reported alongside the score.
type Summary struct {
	Accepted       int     `json:"accepted"`
	Rejected       int     `json:"rejected"`
	Unmatched      int     `json:"unmatched"`
	MeanConfidence float64 `json:"mean_confidence"`
	MinConfidence  float64 `json:"min_confidence"`
	TotalWeight    float64 `json:"total_weight"`
	TotalAmount    float64 `json:"total_amount"`
}

// Score is coverage times precision: the share of data lines that became
// accepted trips, weighted by the mean confidence of those trips. Furniture
// lines are not in the denominator. Result is clamped to [0, 1].
func Score(accepted []model.TripRecord, rejected, unmatched int) float64 {
	denom := len(accepted) + rejected + unmatched
	if denom < 1 {
		denom = 1
	}
	coverage := float64(len(accepted)) / float64(denom)
	score := coverage * meanConfidence(accepted)
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

// Summarize computes the stats for a finished run.
func Summarize(accepted []model.TripRecord, rejected, unmatched int) Summary {
	s := Summary{
		Accepted:  len(accepted),
		Rejected:  rejected,
		Unmatched: unmatched,
	}
	if len(accepted) == 0 {
		return s
	}
	s.MinConfidence = accepted[0].ExtractionConfidence
	for _, t := range accepted {
		s.MeanConfidence += t.ExtractionConfidence
		if t.ExtractionConfidence < s.MinConfidence {
			s.MinConfidence = t.ExtractionConfidence
		}
		s.TotalWeight += t.WeightTons
		s.TotalAmount += t.TotalAmount
	}
	s.MeanConfidence /= float64(len(accepted))
	return s
}

func meanConfidence(trips []model.TripRecord) float64 {
	if len(trips) == 0 {
		return 0
	}
	var sum float64
	for _, t := range trips {
		sum += t.ExtractionConfidence
	}
	return sum / float64(len(trips))
}
