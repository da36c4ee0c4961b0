package server

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/go-tangra/go-tangra-sysinfo/internal/protocol"
)

const (
	commandChannelBufferSize = 16
	commandSendTimeout       = 5 * time.Second
)

// connectedAgent holds the command channel and metadata for a connected agent.
// ch is never closed; done is closed when the agent unregisters or a newer
// connection replaces it.
type connectedAgent struct {
	ch          chan *protocol.Command
	done        chan struct{}
	hostname    string
	version     string
	connectedAt time.Time
}

// ConnectedAgentInfo is a read-only snapshot of a connected agent's metadata.
type ConnectedAgentInfo struct {
	ClientID    string    `json:"client_id"`
	Hostname    string    `json:"hostname"`
	Version     string    `json:"version"`
	ConnectedAt time.Time `json:"connected_at"`
}

// Subscription is the receiving side of one agent connection.
type Subscription struct {
	C    <-chan *protocol.Command
	Done <-chan struct{}

	agent *connectedAgent
}

// CommandRegistry manages in-memory command channels for connected agents.
type CommandRegistry struct {
	mu     sync.RWMutex
	agents map[string]*connectedAgent
}

// NewCommandRegistry creates a new CommandRegistry.
func NewCommandRegistry() *CommandRegistry {
	return &CommandRegistry{
		agents: make(map[string]*connectedAgent),
	}
}

// Register creates a buffered channel for the given agent. A previous
// connection of the same client is ended through its Done channel.
func (r *CommandRegistry) Register(clientID, hostname, version string) Subscription {
	r.mu.Lock()
	defer r.mu.Unlock()

	if old, ok := r.agents[clientID]; ok {
		close(old.done)
	}
	a := &connectedAgent{
		ch:          make(chan *protocol.Command, commandChannelBufferSize),
		done:        make(chan struct{}),
		hostname:    hostname,
		version:     version,
		connectedAt: time.Now(),
	}
	r.agents[clientID] = a
	return Subscription{C: a.ch, Done: a.done, agent: a}
}

// Unregister removes the agent, unless it has reconnected since and sub
// belongs to the replaced connection.
func (r *CommandRegistry) Unregister(clientID string, sub Subscription) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if a, ok := r.agents[clientID]; ok && a == sub.agent {
		close(a.done)
		delete(r.agents, clientID)
	}
}

// Send sends a command to a connected agent.
// Returns an error if the agent is not connected, disconnects while the
// command waits, or the channel stays full.
func (r *CommandRegistry) Send(clientID string, cmd *protocol.Command) error {
	r.mu.RLock()
	a, ok := r.agents[clientID]
	r.mu.RUnlock()

	if !ok {
		return fmt.Errorf("agent %s not connected", clientID)
	}

	select {
	case a.ch <- cmd:
		return nil
	case <-a.done:
		return fmt.Errorf("agent %s disconnected", clientID)
	case <-time.After(commandSendTimeout):
		return fmt.Errorf("timeout sending command to agent %s", clientID)
	}
}

// Resolve finds the agent addressed by target, which is either a client ID
// or a hostname. For a hostname with several agents the newest connection
// wins.
func (r *CommandRegistry) Resolve(target string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if _, ok := r.agents[target]; ok {
		return target, true
	}
	var (
		best   string
		bestAt time.Time
	)
	for id, a := range r.agents {
		if a.hostname == target && a.connectedAt.After(bestAt) {
			best, bestAt = id, a.connectedAt
		}
	}
	return best, best != ""
}

// IsConnected checks whether an agent has an active channel.
func (r *CommandRegistry) IsConnected(clientID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.agents[clientID]
	return ok
}

// ListConnected returns a snapshot of all currently connected agents,
// ordered by client ID.
func (r *CommandRegistry) ListConnected() []ConnectedAgentInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]ConnectedAgentInfo, 0, len(r.agents))
	for id, a := range r.agents {
		result = append(result, ConnectedAgentInfo{
			ClientID:    id,
			Hostname:    a.hostname,
			Version:     a.version,
			ConnectedAt: a.connectedAt,
		})
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ClientID < result[j].ClientID })
	return result
}
