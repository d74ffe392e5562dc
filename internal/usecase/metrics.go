package usecase

import "context"

// MetricsSummary represents aggregated decision insights.
type MetricsSummary struct {
	TotalDecisions             int64   `json:"total_decisions"`
	VerifiedDecisions          int64   `json:"verified_decisions"`
	ManualReviewDecisions      int64   `json:"manual_review_decisions"`
	VerificationRate           float64 `json:"verification_rate"`
	AverageConfidence          float64 `json:"average_confidence"`
	AverageProcessingLatencyMs float64 `json:"average_processing_latency_ms"`
}

// GetMetricsSummary aggregates decision metrics from persisted logs.
func (uc *VerificationUseCase) GetMetricsSummary(ctx context.Context) (*MetricsSummary, error) {
	aggregation, err := uc.repo.AggregateMetrics(ctx)
	if err != nil {
		return nil, err
	}

	summary := &MetricsSummary{
		TotalDecisions:             aggregation.TotalCount,
		VerifiedDecisions:          aggregation.VerifiedCount,
		ManualReviewDecisions:      aggregation.ManualReviewCount,
		AverageConfidence:          aggregation.AverageConfidence,
		AverageProcessingLatencyMs: aggregation.AverageLatencyMs,
	}

	if aggregation.TotalCount > 0 {
		summary.VerificationRate = float64(aggregation.VerifiedCount) / float64(aggregation.TotalCount)
	}

	return summary, nil
}
