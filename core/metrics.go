package core

import "context"

const (
	metricAttemptTotal    = "faceverify.attempt.total"
	metricAttemptDuration = "faceverify.attempt.duration_ms"
)

// NopMetricsRecorder drops every sample.
type NopMetricsRecorder struct{}

func (NopMetricsRecorder) IncCounter(context.Context, string, int64, map[string]string)       {}
func (NopMetricsRecorder) ObserveHistogram(context.Context, string, float64, map[string]string) {}

// attemptTags labels attempt metrics. Only low-cardinality fields go in;
// user and attempt ids stay in the logs.
func attemptTags(att *attempt, outcome Outcome) map[string]string {
	tags := map[string]string{"outcome": string(outcome.Kind)}
	if att != nil {
		tags["claim_type"] = string(att.request.ClaimType)
		tags["assurance_type"] = string(att.request.AssuranceType)
	}
	return tags
}
