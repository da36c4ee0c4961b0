package daemon

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"

	"github.com/go-tangra/go-tangra-sysinfo/internal/category"
	"github.com/go-tangra/go-tangra-sysinfo/internal/codec"
	"github.com/go-tangra/go-tangra-sysinfo/internal/collector"
	"github.com/go-tangra/go-tangra-sysinfo/internal/hostid"
	"github.com/go-tangra/go-tangra-sysinfo/internal/protocol"
	"github.com/go-tangra/go-tangra-sysinfo/internal/sender"
)

// Config holds daemon-mode configuration.
type Config struct {
	CollectorAddr string
	ClientSecret  string
	ClientID      string
	Version       string

	Registry    *category.Registry
	Identity    hostid.Identity
	Concurrency int

	// DialOptions are added to every connection to the collector.
	DialOptions []grpc.DialOption
}

const (
	baseBackoff = 1 * time.Second
	maxBackoff  = 2 * time.Minute
)

// Run performs an initial collect-and-send, then enters a reconnect loop
// that streams commands from the collector.
func Run(ctx context.Context, cfg Config) error {
	if cfg.Registry == nil {
		return fmt.Errorf("daemon: no category registry")
	}
	if cfg.ClientID == "" {
		cfg.ClientID = cfg.Identity.ID()
	}

	ids, err := collectAndSend(ctx, cfg, cfg.Registry.All(), "")
	if err != nil {
		return fmt.Errorf("initial snapshot submit: %w", err)
	}
	zap.L().Info("initial snapshot submitted; entering daemon mode", zap.Int("categories", len(ids)))

	reconnectLoop(ctx, cfg)
	return nil
}

func reconnectLoop(ctx context.Context, cfg Config) {
	attempt := 0
	for {
		select {
		case <-ctx.Done():
			zap.L().Info("daemon shutting down")
			return
		default:
		}

		connected, err := streamLoop(ctx, cfg)
		if ctx.Err() != nil {
			zap.L().Info("daemon shutting down")
			return
		}
		if connected {
			attempt = 0
		}

		attempt++
		backoff := calcBackoff(attempt)
		zap.L().Warn("command stream disconnected",
			zap.Int("attempt", attempt),
			zap.Duration("retry_in", backoff),
			zap.Error(err),
		)

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
	}
}

// streamLoop reports whether it received at least one command before the
// stream broke, so a long-lived connection resets the backoff.
func streamLoop(ctx context.Context, cfg Config) (bool, error) {
	conn, err := sender.Dial(cfg.CollectorAddr, cfg.DialOptions...)
	if err != nil {
		return false, err
	}
	defer conn.Close()

	client := protocol.NewCollectorServiceClient(conn, codec.CallOption())

	stream, err := client.StreamCommands(sender.WithSecret(ctx, cfg.ClientSecret), &protocol.StreamCommandsRequest{
		ClientID:      cfg.ClientID,
		ClientVersion: cfg.Version,
		Hostname:      cfg.Identity.Hostname,
	})
	if err != nil {
		return false, fmt.Errorf("open stream: %w", err)
	}

	zap.L().Info("connected to collector; waiting for commands", zap.String("addr", cfg.CollectorAddr))

	received := false
	for {
		cmd, err := stream.Recv()
		if err != nil {
			return received, fmt.Errorf("recv: %w", err)
		}
		received = true

		switch cmd.Type {
		case protocol.CommandTypeRefresh:
			zap.L().Info("received refresh command",
				zap.String("command_id", cmd.CommandID),
				zap.Int("categories", len(cmd.CategoryIDs)),
			)
			handleRefresh(ctx, cfg, cmd)
		default:
			zap.L().Warn("ignoring unknown command",
				zap.Stringer("type", cmd.Type),
				zap.String("command_id", cmd.CommandID),
			)
		}
	}
}

func handleRefresh(ctx context.Context, cfg Config, cmd *protocol.Command) {
	cats, unknown := cfg.Registry.Select(cmd.CategoryIDs)
	for _, id := range unknown {
		zap.L().Warn("refresh names an unknown category", zap.String("category_id", string(id)))
	}
	if len(cats) == 0 {
		zap.L().Warn("refresh selects no known category; nothing to collect", zap.String("command_id", cmd.CommandID))
		return
	}

	if _, err := collectAndSend(ctx, cfg, cats, cmd.CommandID); err != nil {
		zap.L().Error("refresh failed", zap.String("command_id", cmd.CommandID), zap.Error(err))
		return
	}
	zap.L().Info("refresh complete; snapshot re-submitted", zap.String("command_id", cmd.CommandID))
}

// Snapshot collects cats on this host and packs them into a submission.
func Snapshot(ctx context.Context, cfg Config, cats []category.Category, commandID string) *protocol.SubmitSnapshotRequest {
	at := time.Now()
	results := collector.Collect(ctx, cats, collector.Options{Concurrency: cfg.Concurrency})
	for _, r := range collector.Failed(results) {
		zap.L().Warn("category not collected", zap.String("category", r.Name), zap.Error(r.Err))
	}

	return &protocol.SubmitSnapshotRequest{
		ClientID:    cfg.ClientID,
		HostID:      cfg.Identity.ID(),
		Hostname:    cfg.Identity.Hostname,
		CommandID:   commandID,
		CollectedAt: at.UnixMilli(),
		Results:     protocol.ResultsFrom(results),
	}
}

func collectAndSend(ctx context.Context, cfg Config, cats []category.Category, commandID string) ([]int64, error) {
	req := Snapshot(ctx, cfg, cats, commandID)
	return sender.Send(ctx, cfg.CollectorAddr, cfg.ClientSecret, req, cfg.DialOptions...)
}

// calcBackoff doubles from baseBackoff per attempt up to maxBackoff.
func calcBackoff(attempt int) time.Duration {
	shift := min(max(attempt-1, 0), 16)
	return min(baseBackoff<<shift, maxBackoff)
}
