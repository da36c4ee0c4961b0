package sender

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"

	"github.com/go-tangra/go-tangra-sysinfo/internal/codec"
	"github.com/go-tangra/go-tangra-sysinfo/internal/protocol"
)

const submitTimeout = 30 * time.Second

// SecretHeader carries the shared client secret.
const SecretHeader = "x-client-secret"

// Send connects to the collector at addr and submits one snapshot.
// When secret is non-empty, it is sent as the x-client-secret gRPC metadata header.
// Returns the stored snapshot IDs, one per category result.
func Send(ctx context.Context, addr, secret string, req *protocol.SubmitSnapshotRequest, opts ...grpc.DialOption) ([]int64, error) {
	conn, err := Dial(addr, opts...)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	return Submit(ctx, protocol.NewCollectorServiceClient(conn, codec.CallOption()), secret, req)
}

// Dial opens a plaintext connection to the collector. Extra options come
// after the defaults and can override them.
func Dial(addr string, opts ...grpc.DialOption) (*grpc.ClientConn, error) {
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to collector: %w", err)
	}
	return conn, nil
}

// WithSecret attaches the client secret to outgoing calls on ctx.
func WithSecret(ctx context.Context, secret string) context.Context {
	if secret == "" {
		return ctx
	}
	return metadata.AppendToOutgoingContext(ctx, SecretHeader, secret)
}

// Submit sends req over an existing client.
func Submit(ctx context.Context, client protocol.CollectorServiceClient, secret string, req *protocol.SubmitSnapshotRequest) ([]int64, error) {
	ctx, cancel := context.WithTimeout(ctx, submitTimeout)
	defer cancel()

	resp, err := client.SubmitSnapshot(WithSecret(ctx, secret), req)
	if err != nil {
		return nil, fmt.Errorf("submit snapshot: %w", err)
	}
	return resp.SnapshotIDs, nil
}
