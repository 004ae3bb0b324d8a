package grpcx

import (
	"context"

	"github.com/md-rashed-zaman/apptcrm/libs/httpx"
)

type ctxKey int

const (
	ctxKeyRequestID ctxKey = iota
)

// RequestIDMetadataKey is the canonical key used for request id propagation over gRPC metadata.
// Lowercase is recommended by gRPC metadata conventions.
const RequestIDMetadataKey = "x-request-id"

func RequestIDFromContext(ctx context.Context) string {
	v, _ := ctx.Value(ctxKeyRequestID).(string)
	return v
}

// WithRequestID stores id under both the gRPC and HTTP keys so shared components
// (access logs, outbound calls) find it regardless of the transport that accepted the request.
func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	ctx = context.WithValue(ctx, ctxKeyRequestID, id)
	return httpx.ContextWithRequestID(ctx, id)
}
