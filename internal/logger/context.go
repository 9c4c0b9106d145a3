package logger

import (
	"context"

	"github.com/google/uuid"
)

type contextKey int

const (
	requestIDKey contextKey = iota
	userIDKey
	runIDKey
	itemKey
	loggerKey
)

// contextFields lists the values copied onto every entry by WithContext, in
// output order
var contextFields = []struct {
	key  contextKey
	name string
}{
	{requestIDKey, "request_id"},
	{runIDKey, "run_id"},
	{userIDKey, "user_id"},
	{itemKey, "item_name"},
}

func stringValue(ctx context.Context, key contextKey) string {
	v, _ := ctx.Value(key).(string)
	return v
}

// WithRequestID tags ctx with an HTTP request ID, generating one when empty
func WithRequestID(ctx context.Context, requestID string) context.Context {
	if requestID == "" {
		requestID = uuid.NewString()
	}
	return context.WithValue(ctx, requestIDKey, requestID)
}

func RequestIDFromContext(ctx context.Context) string { return stringValue(ctx, requestIDKey) }

// WithUserID tags ctx with the household whose data is being handled
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

func UserIDFromContext(ctx context.Context) string { return stringValue(ctx, userIDKey) }

// WithRunID tags ctx with an analysis run. An empty runID starts a new run.
func WithRunID(ctx context.Context, runID string) context.Context {
	if runID == "" {
		runID = uuid.NewString()
	}
	return context.WithValue(ctx, runIDKey, runID)
}

func RunIDFromContext(ctx context.Context) string { return stringValue(ctx, runIDKey) }

// WithItem tags ctx with the inventory item under analysis
func WithItem(ctx context.Context, itemName string) context.Context {
	return context.WithValue(ctx, itemKey, itemName)
}

func ItemFromContext(ctx context.Context) string { return stringValue(ctx, itemKey) }

// WithLogger attaches l so FromContext and Ctx use it instead of Default
func WithLogger(ctx context.Context, l Logger) context.Context {
	return context.WithValue(ctx, loggerKey, l)
}

// FromContext returns the attached logger or Default
func FromContext(ctx context.Context) Logger {
	if l, ok := ctx.Value(loggerKey).(Logger); ok {
		return l
	}
	return Default()
}

func extractContextFields(ctx context.Context) []Field {
	var fields []Field
	for _, cf := range contextFields {
		if v := stringValue(ctx, cf.key); v != "" {
			fields = append(fields, String(cf.name, v))
		}
	}
	return fields
}

// Ctx is FromContext(ctx) carrying ctx's tagged values
func Ctx(ctx context.Context) Logger {
	return FromContext(ctx).WithContext(ctx)
}
