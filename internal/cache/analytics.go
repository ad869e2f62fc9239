package cache

// Stats holds aggregated cache counters.
type Stats struct {
	Hits          int64 `json:"hits"`
	Misses        int64 `json:"misses"`
	Invalidations int64 `json:"invalidations"`
	APICallsSaved int64 `json:"api_calls_saved"`
}

// Analytics summarizes cache performance for callers.
type Analytics struct {
	TotalEntries   int     `json:"total_entries"`
	HitRate        float64 `json:"hit_rate"`
	MissRate       float64 `json:"miss_rate"`
	TotalSizeMB    float64 `json:"total_size_mb"`
	CostSavingsUSD float64 `json:"cost_savings_usd"`
	APICallsSaved  int64   `json:"api_calls_saved"`
}

// Analytics computes aggregate cache performance figures using the
// given cost model.
func (s *Store) Analytics(cost CostModel) Analytics {
	s.mu.Lock()
	defer s.mu.Unlock()

	total := s.stats.Hits + s.stats.Misses
	hitRate := 0.0
	if total > 0 {
		hitRate = float64(s.stats.Hits) / float64(total) * 100
	}

	var totalSize int64
	for _, meta := range s.index {
		totalSize += meta.SizeBytes
	}

	return Analytics{
		TotalEntries:   len(s.index),
		HitRate:        hitRate,
		MissRate:       100 - hitRate,
		TotalSizeMB:    float64(totalSize) / (1024 * 1024),
		CostSavingsUSD: cost.SavingsForCalls(s.stats.APICallsSaved),
		APICallsSaved:  s.stats.APICallsSaved,
	}
}

// StatsSnapshot returns a copy of the raw counters.
func (s *Store) StatsSnapshot() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// CostModel estimates the dollar value of avoided API calls from a
// per-1K-token price and an average token count per call.
type CostModel struct {
	InputCostPer1K  float64 `json:"input_cost_per_1k"`
	OutputCostPer1K float64 `json:"output_cost_per_1k"`
	AvgTokensPerCall int    `json:"avg_tokens_per_call"`
}

// DefaultCostModel returns a model based on typical large-model pricing.
func DefaultCostModel() CostModel {
	return CostModel{
		InputCostPer1K:  0.03,
		OutputCostPer1K: 0.06,
		AvgTokensPerCall: 2000,
	}
}

// SavingsForCalls estimates dollars saved by the given number of
// avoided API calls. Token volume is split evenly between input and
// output for the estimate.
func (m CostModel) SavingsForCalls(calls int64) float64 {
	if calls <= 0 || m.AvgTokensPerCall <= 0 {
		return 0
	}
	tokens := float64(calls) * float64(m.AvgTokensPerCall)
	half := tokens / 2
	return (half/1000)*m.InputCostPer1K + (half/1000)*m.OutputCostPer1K
}

// MonthlyProjection extrapolates current savings to a 30-day month from
// the observed number of days.
func (m CostModel) MonthlyProjection(savings float64, observedDays float64) float64 {
	if observedDays <= 0 {
		return 0
	}
	return savings / observedDays * 30
}
