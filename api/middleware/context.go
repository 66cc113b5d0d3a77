package middleware

import "context"

type contextKey uint8

const (
	ctxUserID contextKey = iota + 1
	ctxAccessID
	ctxRequestID
)

func stringValue(ctx context.Context, key contextKey) string {
	if ctx == nil {
		return ""
	}
	v, _ := ctx.Value(key).(string)
	return v
}

func withValue(ctx context.Context, key contextKey, value string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, key, value)
}

// UserIDFromContext returns the authenticated account id, or "".
func UserIDFromContext(ctx context.Context) string { return stringValue(ctx, ctxUserID) }

// AccessIDFromContext returns the session id carried by the access token.
func AccessIDFromContext(ctx context.Context) string { return stringValue(ctx, ctxAccessID) }

// RequestIDFromContext returns the correlation id assigned by RequestID.
func RequestIDFromContext(ctx context.Context) string { return stringValue(ctx, ctxRequestID) }

// WithUserID injects the user identifier into the context.
func WithUserID(ctx context.Context, userID string) context.Context {
	return withValue(ctx, ctxUserID, userID)
}

func withAccessID(ctx context.Context, accessID string) context.Context {
	return withValue(ctx, ctxAccessID, accessID)
}

func withRequestID(ctx context.Context, id string) context.Context {
	return withValue(ctx, ctxRequestID, id)
}
