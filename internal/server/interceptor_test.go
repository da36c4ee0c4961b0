package server

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/go-tangra/go-tangra-sysinfo/internal/protocol"
)

func TestClientSecretInterceptor(t *testing.T) {
	ok := func(context.Context, any) (any, error) { return "ok", nil }
	submit := &grpc.UnaryServerInfo{FullMethod: protocol.SubmitSnapshotMethod}
	other := &grpc.UnaryServerInfo{FullMethod: "/sysinfo.collector.v1.CollectorService/DeleteEverything"}
	withSecret := func(s string) context.Context {
		return metadata.NewIncomingContext(context.Background(), metadata.Pairs("x-client-secret", s))
	}

	tests := []struct {
		name   string
		secret string
		ctx    context.Context
		info   *grpc.UnaryServerInfo
		code   codes.Code
	}{
		{"auth disabled", "", context.Background(), other, codes.OK},
		{"valid", "s3cret", withSecret("s3cret"), submit, codes.OK},
		{"no metadata", "s3cret", context.Background(), submit, codes.Unauthenticated},
		{"missing header", "s3cret", metadata.NewIncomingContext(context.Background(), metadata.MD{}), submit, codes.Unauthenticated},
		{"wrong secret", "s3cret", withSecret("guess"), submit, codes.Unauthenticated},
		{"method not allowed", "s3cret", withSecret("s3cret"), other, codes.PermissionDenied},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ClientSecretInterceptor(tt.secret)(tt.ctx, nil, tt.info, ok)
			assert.Equal(t, tt.code, status.Code(err))
		})
	}
}

type fakeStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (s fakeStream) Context() context.Context { return s.ctx }

func TestClientSecretStreamInterceptor(t *testing.T) {
	ok := func(any, grpc.ServerStream) error { return nil }
	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs("x-client-secret", "s3cret"))
	icpt := ClientSecretStreamInterceptor("s3cret")

	err := icpt(nil, fakeStream{ctx: ctx}, &grpc.StreamServerInfo{FullMethod: protocol.StreamCommandsMethod}, ok)
	assert.NoError(t, err)

	err = icpt(nil, fakeStream{ctx: ctx}, &grpc.StreamServerInfo{FullMethod: protocol.SubmitSnapshotMethod}, ok)
	assert.Equal(t, codes.PermissionDenied, status.Code(err))

	err = icpt(nil, fakeStream{ctx: context.Background()}, &grpc.StreamServerInfo{FullMethod: protocol.StreamCommandsMethod}, ok)
	assert.Equal(t, codes.Unauthenticated, status.Code(err))
}
