package httpx

import "context"

type ctxKey string

const (
	CtxKeyVoterID ctxKey = "voter_id"
	CtxKeyRole    ctxKey = "role"
	CtxKeyClaims  ctxKey = "claims"
)

// VoterIDFromContext returns the authenticated voter ID, or "" if the
// request did not pass through AuthnMiddleware.
func VoterIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(CtxKeyVoterID).(string); ok {
		return v
	}
	return ""
}

func roleFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(CtxKeyRole).(string); ok {
		return v
	}
	return ""
}
