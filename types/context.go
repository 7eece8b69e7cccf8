package types

import "context"

// contextKey is used for storing values in context.Context.
type contextKey string

const (
	keyRunID  contextKey = "run_id"
	keyTaskID contextKey = "task_id"
)

// WithRunID adds the workflow run ID to context.
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, keyRunID, runID)
}

// RunID extracts the workflow run ID from context.
func RunID(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(keyRunID).(string)
	return v, ok && v != ""
}

// WithTaskID adds an upstream generation task ID to context.
func WithTaskID(ctx context.Context, taskID string) context.Context {
	return context.WithValue(ctx, keyTaskID, taskID)
}

// TaskID extracts the upstream generation task ID from context.
func TaskID(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(keyTaskID).(string)
	return v, ok && v != ""
}
