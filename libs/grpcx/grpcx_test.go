package grpcx

import (
	"context"
	"testing"

	"github.com/md-rashed-zaman/apptcrm/libs/httpx"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
)

func TestServerRequestIDFromMetadata(t *testing.T) {
	ic := UnaryServerRequestIDInterceptor()
	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs(RequestIDMetadataKey, "req-1"))

	var gotGRPC, gotHTTP string
	_, err := ic(ctx, nil, &grpc.UnaryServerInfo{FullMethod: "/x.Y/Z"}, func(ctx context.Context, req any) (any, error) {
		gotGRPC = RequestIDFromContext(ctx)
		gotHTTP = httpx.RequestIDFromContext(ctx)
		return nil, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotGRPC != "req-1" || gotHTTP != "req-1" {
		t.Fatalf("expected req-1 in both keys, got grpc=%q http=%q", gotGRPC, gotHTTP)
	}
}

func TestServerRequestIDGenerated(t *testing.T) {
	ic := UnaryServerRequestIDInterceptor()
	var got string
	_, _ = ic(context.Background(), nil, &grpc.UnaryServerInfo{}, func(ctx context.Context, req any) (any, error) {
		got = RequestIDFromContext(ctx)
		return nil, nil
	})
	if len(got) != 32 {
		t.Fatalf("expected generated 32 char id, got %q", got)
	}
}

func TestClientRequestIDPrefersHTTP(t *testing.T) {
	ic := UnaryClientRequestIDInterceptor()
	ctx := httpx.ContextWithRequestID(context.Background(), "from-http")
	err := ic(ctx, "/x.Y/Z", nil, nil, nil, func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, opts ...grpc.CallOption) error {
		md, _ := metadata.FromOutgoingContext(ctx)
		if v := md.Get(RequestIDMetadataKey); len(v) != 1 || v[0] != "from-http" {
			t.Fatalf("unexpected outgoing metadata: %v", md)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
