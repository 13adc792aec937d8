package middleware

import "context"

type contextKey string

const ctxCaller contextKey = "caller"

// Caller kinds recorded by the auth middleware.
const (
	CallerQStash = "qstash"
	CallerCron   = "cron"
	CallerIntake = "intake"
	CallerAdmin  = "admin"
	CallerOpen   = "open"
)

// CallerFromContext reports which credential admitted the request.
func CallerFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxCaller).(string); ok {
		return v
	}
	return ""
}

func WithCaller(ctx context.Context, caller string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxCaller, caller)
}
