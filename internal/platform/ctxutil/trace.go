package ctxutil

import "context"

type traceDataKey struct{}
type formSessionKey struct{}

type TraceData struct {
	TraceID   string
	RequestID string
}

func WithTraceData(ctx context.Context, td *TraceData) context.Context {
	return context.WithValue(ctx, traceDataKey{}, td)
}

func GetTraceData(ctx context.Context) *TraceData {
	if td, ok := ctx.Value(traceDataKey{}).(*TraceData); ok {
		return td
	}
	return nil
}

// WithFormSession records the training-form session serving this request.
func WithFormSession(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, formSessionKey{}, id)
}

func FormSession(ctx context.Context) string {
	id, _ := ctx.Value(formSessionKey{}).(string)
	return id
}
