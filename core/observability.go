package core

import (
	"context"
	"sort"
	"strings"
	"time"
)

func (o *Orchestrator) observeOutcome(ctx context.Context, att *attempt, outcome Outcome, finishedAt time.Time) {
	if o == nil || att == nil {
		return
	}
	duration := finishedAt.Sub(att.startedAt)
	if duration < 0 {
		duration = 0
	}

	fields := map[string]any{
		"attempt_id":     att.id,
		"user_id":        att.request.UserID,
		"claim_type":     string(att.request.ClaimType),
		"assurance_type": string(att.request.AssuranceType),
		"outcome":        string(outcome.Kind),
		"retry_count":    outcome.RetryCount,
		"duration_ms":    duration.Milliseconds(),
	}
	if outcome.FeedbackCode != "" {
		fields["feedback_code"] = outcome.FeedbackCode
	}
	if outcome.Message != "" {
		fields["message"] = outcome.Message
	}

	o.recordCounter(ctx, metricAttemptTotal, attemptTags(att, outcome))
	o.recordHistogram(ctx, metricAttemptDuration, float64(duration.Milliseconds()), attemptTags(att, outcome))

	switch outcome.Kind {
	case OutcomeSucceeded, OutcomeCanceled:
		o.logInfo(ctx, "verification attempt "+string(outcome.Kind), fields)
	default:
		o.logError(ctx, "verification attempt "+string(outcome.Kind), fields)
	}
}

func (o *Orchestrator) logDebug(ctx context.Context, message string, fields map[string]any) {
	o.logWithLevel(ctx, "debug", message, fields)
}

func (o *Orchestrator) logInfo(ctx context.Context, message string, fields map[string]any) {
	o.logWithLevel(ctx, "info", message, fields)
}

func (o *Orchestrator) logError(ctx context.Context, message string, fields map[string]any) {
	o.logWithLevel(ctx, "error", message, fields)
}

func (o *Orchestrator) logWithLevel(ctx context.Context, level string, message string, fields map[string]any) {
	if o == nil || o.logger == nil {
		return
	}
	fields = RedactSensitiveMap(fields)
	logger := o.logger
	if ctx != nil {
		logger = logger.WithContext(ctx)
	}
	if fieldsLogger, ok := logger.(FieldsLogger); ok {
		logger = fieldsLogger.WithFields(cloneFields(fields))
	}
	args := flattenFields(fields)
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "error":
		logger.Error(message, args...)
	case "debug":
		logger.Debug(message, args...)
	default:
		logger.Info(message, args...)
	}
}

func (o *Orchestrator) recordCounter(ctx context.Context, name string, tags map[string]string) {
	if o == nil || o.metrics == nil {
		return
	}
	o.metrics.IncCounter(ctx, name, 1, tags)
}

func (o *Orchestrator) recordHistogram(ctx context.Context, name string, value float64, tags map[string]string) {
	if o == nil || o.metrics == nil {
		return
	}
	o.metrics.ObserveHistogram(ctx, name, value, tags)
}

func cloneFields(fields map[string]any) map[string]any {
	if len(fields) == 0 {
		return map[string]any{}
	}
	copied := make(map[string]any, len(fields))
	for key, value := range fields {
		copied[key] = value
	}
	return copied
}

func flattenFields(fields map[string]any) []any {
	if len(fields) == 0 {
		return nil
	}
	keys := make([]string, 0, len(fields))
	for key := range fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	args := make([]any, 0, len(keys)*2)
	for _, key := range keys {
		args = append(args, key, fields[key])
	}
	return args
}
