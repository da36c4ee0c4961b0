// Package protocol defines the messages and the gRPC service between the
// agent and the collector. Messages are encoded with the wire package and
// carried by the codec registered in internal/codec.
package protocol

import (
	"time"

	"github.com/go-tangra/go-tangra-sysinfo/internal/category"
	"github.com/go-tangra/go-tangra-sysinfo/internal/collector"
	"github.com/go-tangra/go-tangra-sysinfo/internal/wire"
)

// CategoryResult is one category of a snapshot. Error is set instead of
// Payload when the agent could not collect the category.
type CategoryResult struct {
	CategoryID category.ID
	Payload    []byte
	Error      string
}

func (m *CategoryResult) MarshalWire() []byte {
	var e wire.Encoder
	e.String(1, string(m.CategoryID))
	e.Blob(2, m.Payload)
	e.String(3, m.Error)
	return e.Bytes()
}

func (m *CategoryResult) UnmarshalWire(b []byte) error {
	*m = CategoryResult{}
	r := wire.NewReader(b)
	for r.Next() {
		switch r.Field() {
		case 1:
			var id string
			r.String(&id)
			m.CategoryID = category.ID(id)
		case 2:
			r.Blob(&m.Payload)
		case 3:
			r.String(&m.Error)
		}
	}
	return r.Err()
}

// SubmitSnapshotRequest carries the results of one collection run.
type SubmitSnapshotRequest struct {
	ClientID  string
	HostID    string
	Hostname  string
	CommandID string
	// CollectedAt is in unix milliseconds.
	CollectedAt int64
	Results     []CategoryResult
}

func (m *SubmitSnapshotRequest) MarshalWire() []byte {
	var e wire.Encoder
	e.String(1, m.ClientID)
	e.String(2, m.HostID)
	e.String(3, m.Hostname)
	e.String(4, m.CommandID)
	e.Int64(5, m.CollectedAt)
	for i := range m.Results {
		e.Message(6, &m.Results[i])
	}
	return e.Bytes()
}

func (m *SubmitSnapshotRequest) UnmarshalWire(b []byte) error {
	*m = SubmitSnapshotRequest{}
	r := wire.NewReader(b)
	for r.Next() {
		switch r.Field() {
		case 1:
			r.String(&m.ClientID)
		case 2:
			r.String(&m.HostID)
		case 3:
			r.String(&m.Hostname)
		case 4:
			r.String(&m.CommandID)
		case 5:
			r.Int64(&m.CollectedAt)
		case 6:
			var res CategoryResult
			if r.Message(&res) {
				m.Results = append(m.Results, res)
			}
		}
	}
	return r.Err()
}

// CollectedTime returns CollectedAt as a time.
func (m *SubmitSnapshotRequest) CollectedTime() time.Time {
	return time.UnixMilli(m.CollectedAt).UTC()
}

// ResultsFrom converts a collection run to its wire form.
func ResultsFrom(results []collector.Result) []CategoryResult {
	out := make([]CategoryResult, 0, len(results))
	for _, r := range results {
		cr := CategoryResult{CategoryID: r.ID, Payload: r.Payload}
		if r.Err != nil {
			cr.Payload = nil
			cr.Error = r.Err.Error()
		}
		out = append(out, cr)
	}
	return out
}

// SubmitSnapshotResponse returns the stored row of every category, in
// request order.
type SubmitSnapshotResponse struct {
	SnapshotIDs []int64
}

func (m *SubmitSnapshotResponse) MarshalWire() []byte {
	var e wire.Encoder
	e.Int64s(1, m.SnapshotIDs)
	return e.Bytes()
}

func (m *SubmitSnapshotResponse) UnmarshalWire(b []byte) error {
	*m = SubmitSnapshotResponse{}
	r := wire.NewReader(b)
	for r.Next() {
		if r.Field() == 1 {
			r.AppendInt64(&m.SnapshotIDs)
		}
	}
	return r.Err()
}

type StreamCommandsRequest struct {
	ClientID      string
	ClientVersion string
	Hostname      string
}

func (m *StreamCommandsRequest) MarshalWire() []byte {
	var e wire.Encoder
	e.String(1, m.ClientID)
	e.String(2, m.ClientVersion)
	e.String(3, m.Hostname)
	return e.Bytes()
}

func (m *StreamCommandsRequest) UnmarshalWire(b []byte) error {
	*m = StreamCommandsRequest{}
	r := wire.NewReader(b)
	for r.Next() {
		switch r.Field() {
		case 1:
			r.String(&m.ClientID)
		case 2:
			r.String(&m.ClientVersion)
		case 3:
			r.String(&m.Hostname)
		}
	}
	return r.Err()
}

type CommandType int32

const (
	CommandTypeUnspecified CommandType = 0
	CommandTypeRefresh     CommandType = 1
)

func (t CommandType) String() string {
	switch t {
	case CommandTypeUnspecified:
		return "UNSPECIFIED"
	case CommandTypeRefresh:
		return "REFRESH"
	default:
		return "UNKNOWN"
	}
}

// Command is pushed from the collector to a connected agent. An empty
// CategoryIDs list means every category.
type Command struct {
	CommandID   string
	Type        CommandType
	CategoryIDs []category.ID
}

func (m *Command) MarshalWire() []byte {
	var e wire.Encoder
	e.String(1, m.CommandID)
	e.Enum(2, int32(m.Type))
	ids := make([]string, len(m.CategoryIDs))
	for i, id := range m.CategoryIDs {
		ids[i] = string(id)
	}
	e.Strings(3, ids)
	return e.Bytes()
}

func (m *Command) UnmarshalWire(b []byte) error {
	*m = Command{}
	r := wire.NewReader(b)
	for r.Next() {
		switch r.Field() {
		case 1:
			r.String(&m.CommandID)
		case 2:
			var v int32
			r.Enum(&v)
			m.Type = CommandType(v)
		case 3:
			var ids []string
			r.AppendString(&ids)
			for _, id := range ids {
				m.CategoryIDs = append(m.CategoryIDs, category.ID(id))
			}
		}
	}
	return r.Err()
}
