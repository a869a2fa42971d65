package opportunity

// Badge is a categorical label derived from search-performance signals.
// Precedence, low to high: position-band default, low_ctr, high_impact.
type Badge string

const (
	BadgeNewOpportunity Badge = "new_opportunity"
	BadgeQuickWin       Badge = "quick_win"
	BadgeLowCTR         Badge = "low_ctr"
	BadgeHighImpact     Badge = "high_impact"
)

// Signal is one external query-performance tuple, e.g. a Search Console row.
type Signal struct {
	Keyword     string  `json:"keyword"`
	Impressions int64   `json:"impressions"`
	AvgPosition float64 `json:"avg_position"`
	CTR         float64 `json:"ctr"`
}

// Result is the derived opportunity metric used to bias topic selection.
type Result struct {
	Score int   `json:"score"`
	Badge Badge `json:"badge"`
}

// Score converts a query-performance tuple into a point score and badge.
// The accumulation rule is deterministic and order-sensitive:
//
//  1. base points from impressions
//  2. position band (assigns the badge for ranks 7-20 and 21-50; pages
//     already ranking at 6 or better gain points but keep the default badge)
//  3. low-CTR override
//  4. high-impact override when the total reaches 80
//
// The pre-assignment default badge is new_opportunity.
func Score(impressions int64, avgPosition float64, ctr float64) Result {
	score := 0
	badge := BadgeNewOpportunity

	switch {
	case impressions >= 1000:
		score += 40
	case impressions >= 500:
		score += 30
	case impressions >= 100:
		score += 20
	default:
		score += 10
	}

	switch {
	case avgPosition >= 7 && avgPosition <= 20:
		score += 35
		badge = BadgeQuickWin
	case avgPosition > 20 && avgPosition <= 50:
		score += 20
		badge = BadgeNewOpportunity
	case avgPosition > 0 && avgPosition <= 6:
		// Already ranking; points only, badge unchanged.
		score += 10
	}

	if ctr < 0.02 && impressions > 500 {
		score += 25
		badge = BadgeLowCTR
	}

	if score >= 80 {
		badge = BadgeHighImpact
	}

	return Result{Score: score, Badge: badge}
}

// ScoredSignal pairs a raw signal with its derived score.
type ScoredSignal struct {
	Signal Signal `json:"signal"`
	Result Result `json:"result"`
}

// ScoreSignals scores a batch and keys results by keyword for planner lookup.
// Keys are lowercased so matching against plan item keywords is
// case-insensitive.
func ScoreSignals(signals []Signal) map[string]ScoredSignal {
	if len(signals) == 0 {
		return nil
	}
	out := make(map[string]ScoredSignal, len(signals))
	for _, s := range signals {
		out[normalizeKeyword(s.Keyword)] = ScoredSignal{
			Signal: s,
			Result: Score(s.Impressions, s.AvgPosition, s.CTR),
		}
	}
	return out
}
