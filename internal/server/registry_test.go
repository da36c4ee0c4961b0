package server

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-tangra/go-tangra-sysinfo/internal/protocol"
)

func TestCommandRegistry_SendAndReceive(t *testing.T) {
	r := NewCommandRegistry()
	sub := r.Register("c-1", "web-01", "1.0")

	require.NoError(t, r.Send("c-1", &protocol.Command{CommandID: "x"}))
	cmd := <-sub.C
	assert.Equal(t, "x", cmd.CommandID)

	assert.Error(t, r.Send("c-2", &protocol.Command{}))
}

func TestCommandRegistry_Resolve(t *testing.T) {
	r := NewCommandRegistry()
	r.Register("c-1", "web-01", "1.0")
	time.Sleep(time.Millisecond)
	r.Register("c-2", "web-01", "1.1")

	id, ok := r.Resolve("c-1")
	require.True(t, ok)
	assert.Equal(t, "c-1", id)

	id, ok = r.Resolve("web-01")
	require.True(t, ok)
	assert.Equal(t, "c-2", id)

	_, ok = r.Resolve("db-01")
	assert.False(t, ok)
}

func TestCommandRegistry_ReconnectKeepsNewChannel(t *testing.T) {
	r := NewCommandRegistry()
	old := r.Register("c-1", "web-01", "1.0")
	fresh := r.Register("c-1", "web-01", "1.0")

	select {
	case <-old.Done:
	default:
		t.Fatal("previous connection is not ended on reconnect")
	}
	select {
	case <-fresh.Done:
		t.Fatal("new connection ended")
	default:
	}

	// The old stream exits after the new one registered.
	r.Unregister("c-1", old)
	assert.True(t, r.IsConnected("c-1"))

	r.Unregister("c-1", fresh)
	assert.False(t, r.IsConnected("c-1"))
}

func TestCommandRegistry_SendTimesOutWhenFull(t *testing.T) {
	if testing.Short() {
		t.Skip("waits for the send timeout")
	}
	r := NewCommandRegistry()
	r.Register("c-1", "web-01", "1.0")
	for range commandChannelBufferSize {
		require.NoError(t, r.Send("c-1", &protocol.Command{}))
	}
	assert.ErrorContains(t, r.Send("c-1", &protocol.Command{}), "timeout")
}

func TestCommandRegistry_ListConnected(t *testing.T) {
	r := NewCommandRegistry()
	r.Register("b", "host-b", "2")
	r.Register("a", "host-a", "1")

	agents := r.ListConnected()
	require.Len(t, agents, 2)
	assert.Equal(t, "a", agents[0].ClientID)
	assert.Equal(t, "host-a", agents[0].Hostname)
	assert.Equal(t, "b", agents[1].ClientID)
}

func TestCommandRegistry_SendDuringDisconnect(t *testing.T) {
	r := NewCommandRegistry()
	sub := r.Register("c-1", "web-01", "1.0")
	for range commandChannelBufferSize {
		require.NoError(t, r.Send("c-1", &protocol.Command{}))
	}

	errc := make(chan error, 1)
	go func() { errc <- r.Send("c-1", &protocol.Command{CommandID: "late"}) }()
	time.Sleep(10 * time.Millisecond)
	r.Unregister("c-1", sub)

	select {
	case err := <-errc:
		assert.ErrorContains(t, err, "disconnected")
	case <-time.After(commandSendTimeout / 2):
		t.Fatal("send kept waiting after the agent left")
	}
	assert.False(t, r.IsConnected("c-1"))
}
