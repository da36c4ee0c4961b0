package protocol

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"
	"pgregory.net/rapid"

	"github.com/go-tangra/go-tangra-sysinfo/internal/category"
	"github.com/go-tangra/go-tangra-sysinfo/internal/collector"
)

func TestSubmitSnapshotRequest_RoundTrip(t *testing.T) {
	at := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	in := SubmitSnapshotRequest{
		ClientID:    "web-01",
		HostID:      "4c4c4544-0042",
		Hostname:    "web-01",
		CommandID:   "cmd-1",
		CollectedAt: at.UnixMilli(),
		Results: []CategoryResult{
			{CategoryID: "606C70BE-0C6C-4CB6-90E6-D374760FC5EE", Payload: []byte{0x0a, 0x00}},
			{CategoryID: "3E160E27-BE2E-45DB-8292-C3786C9533AB"},
			{CategoryID: "BE3143AB-67C3-4EFE-97F5-FA0C84F338C3", Error: "access denied"},
		},
	}

	var out SubmitSnapshotRequest
	require.NoError(t, out.UnmarshalWire(in.MarshalWire()))
	assert.Equal(t, in, out)
	assert.True(t, at.Equal(out.CollectedTime()))
}

func TestResultsFrom(t *testing.T) {
	got := ResultsFrom([]collector.Result{
		{ID: "A", Payload: []byte{1}},
		{ID: "B", Payload: []byte{2}, Err: errors.New("boom")},
	})
	assert.Equal(t, []CategoryResult{
		{CategoryID: "A", Payload: []byte{1}},
		{CategoryID: "B", Error: "boom"},
	}, got)
}

func TestSubmitSnapshotResponse_PackedAndUnpacked(t *testing.T) {
	in := SubmitSnapshotResponse{SnapshotIDs: []int64{1, 2, 300}}
	var out SubmitSnapshotResponse
	require.NoError(t, out.UnmarshalWire(in.MarshalWire()))
	assert.Equal(t, in, out)

	var b []byte
	for _, v := range []int64{7, 8} {
		b = protowire.AppendTag(b, 1, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(v))
	}
	require.NoError(t, out.UnmarshalWire(b))
	assert.Equal(t, []int64{7, 8}, out.SnapshotIDs)
}

func TestCommand_RoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		in := Command{
			CommandID: rapid.StringMatching(`[a-f0-9-]{0,36}`).Draw(t, "id"),
			Type:      CommandType(rapid.Int32Range(0, 3).Draw(t, "type")),
		}
		for _, id := range rapid.SliceOf(rapid.StringMatching(`[A-F0-9-]{1,36}`)).Draw(t, "categories") {
			in.CategoryIDs = append(in.CategoryIDs, category.ID(id))
		}

		var out Command
		if err := out.UnmarshalWire(in.MarshalWire()); err != nil {
			t.Fatal(err)
		}
		if out.CommandID != in.CommandID || out.Type != in.Type || len(out.CategoryIDs) != len(in.CategoryIDs) {
			t.Fatalf("got %+v want %+v", out, in)
		}
		for i := range in.CategoryIDs {
			if out.CategoryIDs[i] != in.CategoryIDs[i] {
				t.Fatalf("category %d: got %q want %q", i, out.CategoryIDs[i], in.CategoryIDs[i])
			}
		}
	})
}

func TestStreamCommandsRequest_RoundTrip(t *testing.T) {
	in := StreamCommandsRequest{ClientID: "c", ClientVersion: "1.2.0", Hostname: "web-01"}
	var out StreamCommandsRequest
	require.NoError(t, out.UnmarshalWire(in.MarshalWire()))
	assert.Equal(t, in, out)
}

func TestCommandType_String(t *testing.T) {
	assert.Equal(t, "REFRESH", CommandTypeRefresh.String())
	assert.Equal(t, "UNSPECIFIED", CommandTypeUnspecified.String())
	assert.Equal(t, "UNKNOWN", CommandType(9).String())
}

func TestSubmitSnapshotRequest_Truncated(t *testing.T) {
	b := (&SubmitSnapshotRequest{Hostname: "web-01", Results: []CategoryResult{{CategoryID: "A", Payload: []byte{1, 2, 3}}}}).MarshalWire()
	var out SubmitSnapshotRequest
	assert.Error(t, out.UnmarshalWire(b[:len(b)-1]))
}
