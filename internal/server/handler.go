package server

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/go-tangra/go-tangra-sysinfo/internal/protocol"
	"github.com/go-tangra/go-tangra-sysinfo/internal/store"
)

// Handler implements the CollectorService gRPC service.
type Handler struct {
	protocol.UnimplementedCollectorServiceServer
	store  *store.Store
	cmdReg *CommandRegistry
}

// NewHandler creates a new gRPC handler backed by the given store.
func NewHandler(s *store.Store, reg *CommandRegistry) *Handler {
	return &Handler{store: s, cmdReg: reg}
}

func (h *Handler) SubmitSnapshot(ctx context.Context, req *protocol.SubmitSnapshotRequest) (*protocol.SubmitSnapshotResponse, error) {
	if req.Hostname == "" {
		return nil, status.Error(codes.InvalidArgument, "hostname is required")
	}

	collectedAt := req.CollectedTime()
	if req.CollectedAt == 0 {
		collectedAt = time.Now()
	}

	snaps := make([]*store.Snapshot, len(req.Results))
	for i, r := range req.Results {
		if r.CategoryID == "" {
			return nil, status.Errorf(codes.InvalidArgument, "result %d: category_id is required", i)
		}
		snaps[i] = &store.Snapshot{
			ClientID:     req.ClientID,
			HostID:       req.HostID,
			Hostname:     req.Hostname,
			CategoryID:   string(r.CategoryID),
			Payload:      r.Payload,
			CollectError: r.Error,
			CollectedAt:  collectedAt,
		}
	}

	if err := h.store.InsertAll(ctx, snaps); err != nil {
		return nil, status.Errorf(codes.Internal, "store snapshot: %v", err)
	}

	ids := make([]int64, len(snaps))
	for i, s := range snaps {
		ids[i] = s.ID
	}

	zap.L().Info("snapshot stored",
		zap.String("hostname", req.Hostname),
		zap.String("client_id", req.ClientID),
		zap.String("command_id", req.CommandID),
		zap.Int("categories", len(snaps)),
	)

	return &protocol.SubmitSnapshotResponse{SnapshotIDs: ids}, nil
}

func (h *Handler) StreamCommands(req *protocol.StreamCommandsRequest, stream grpc.ServerStreamingServer[protocol.Command]) error {
	if req.ClientID == "" {
		return status.Error(codes.InvalidArgument, "client_id is required")
	}

	sub := h.cmdReg.Register(req.ClientID, req.Hostname, req.ClientVersion)
	defer h.cmdReg.Unregister(req.ClientID, sub)

	log := zap.L().With(zap.String("client_id", req.ClientID), zap.String("hostname", req.Hostname))
	log.Info("agent connected", zap.String("version", req.ClientVersion))

	for {
		select {
		case cmd := <-sub.C:
			if err := stream.Send(cmd); err != nil {
				return err
			}
		case <-sub.Done:
			log.Info("agent replaced by a newer connection")
			return nil
		case <-stream.Context().Done():
			log.Info("agent disconnected")
			return stream.Context().Err()
		}
	}
}

// Refresh queues cmd for the agent addressed by target, a client ID or a
// hostname.
func (h *Handler) Refresh(target string, cmd *protocol.Command) error {
	clientID, ok := h.cmdReg.Resolve(target)
	if !ok {
		return fmt.Errorf("%w: %q", errNotConnected, target)
	}
	if err := h.cmdReg.Send(clientID, cmd); err != nil {
		return err
	}
	zap.L().Info("sent refresh command",
		zap.String("command_id", cmd.CommandID),
		zap.String("client_id", clientID),
		zap.Int("categories", len(cmd.CategoryIDs)),
	)
	return nil
}
