// Package enumerator walks host state for the software categories.
//
// An Adapter is a finite cursor over flat records. A Source creates a fresh
// adapter on every call, so enumeration always restarts from the beginning
// and no cursor state is shared between collections.
package enumerator

import "errors"

// ErrUnsupported is returned by sources that have no implementation on the
// running platform.
var ErrUnsupported = errors.New("enumerator: not supported on this platform")

// Adapter is a cursor over records of type T.
type Adapter[T any] interface {
	IsAtEnd() bool
	Advance()
	// Record returns the record under the cursor. It must not be called
	// once IsAtEnd reports true.
	Record() T
	// Err reports a failure that ended the enumeration early.
	Err() error
}

// Source opens a new adapter.
type Source[T any] func() (Adapter[T], error)

// Drain runs a source to completion and returns the records in enumeration
// order.
func Drain[T any](src Source[T]) ([]T, error) {
	a, err := src()
	if err != nil {
		return nil, err
	}
	var out []T
	for ; !a.IsAtEnd(); a.Advance() {
		out = append(out, a.Record())
	}
	if err := a.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

type sliceAdapter[T any] struct {
	items []T
	pos   int
}

// FromSlice returns an adapter over items.
func FromSlice[T any](items []T) Adapter[T] {
	return &sliceAdapter[T]{items: items}
}

func (s *sliceAdapter[T]) IsAtEnd() bool { return s.pos >= len(s.items) }
func (s *sliceAdapter[T]) Advance()      { s.pos++ }
func (s *sliceAdapter[T]) Record() T     { return s.items[s.pos] }
func (s *sliceAdapter[T]) Err() error    { return nil }

// Static returns a source that enumerates items on every call.
func Static[T any](items ...T) Source[T] {
	return func() (Adapter[T], error) {
		return FromSlice(items), nil
	}
}

// Failing returns a source whose every call fails with err.
func Failing[T any](err error) Source[T] {
	return func() (Adapter[T], error) {
		return nil, err
	}
}

// listing adapts a function that lists everything at once.
func listing[T any](list func() ([]T, error)) Source[T] {
	return func() (Adapter[T], error) {
		items, err := list()
		if err != nil {
			return nil, err
		}
		return FromSlice(items), nil
	}
}

// Program is an installed program.
type Program struct {
	Name            string
	Version         string
	Publisher       string
	InstallDate     string
	InstallLocation string
}

// ServiceStatus is the run state reported by the service manager.
type ServiceStatus int

const (
	StatusContinuePending ServiceStatus = iota
	StatusPausePending
	StatusPaused
	StatusRunning
	StatusStartPending
	StatusStopPending
	StatusStopped
)

// StartupType is how the service manager starts a service or driver.
type StartupType int

const (
	StartupAuto StartupType = iota
	StartupDemand
	StartupDisabled
	StartupBoot
	StartupSystem
)

// Scope selects between services and drivers on the same enumerator.
type Scope int

const (
	ScopeServices Scope = iota
	ScopeDrivers
)

func (s Scope) String() string {
	switch s {
	case ScopeServices:
		return "services"
	case ScopeDrivers:
		return "drivers"
	default:
		return "unknown"
	}
}

// Service is a service or driver known to the service manager.
type Service struct {
	Name        string
	DisplayName string
	Description string
	Status      ServiceStatus
	StartupType StartupType
	BinaryPath  string
	StartName   string
}

// Process is a running process. Memory figures are in bytes.
type Process struct {
	ProcessName string
	FilePath    string
	UsedMemory  uint64
	UsedSwap    uint64
	Description string
}

// Programs enumerates installed programs on this host.
func Programs() Source[Program] { return listing(listPrograms) }

// Services enumerates services or drivers on this host.
func Services(scope Scope) Source[Service] {
	return listing(func() ([]Service, error) { return listServices(scope) })
}

// Processes enumerates running processes on this host.
func Processes() Source[Process] { return listing(listProcesses) }
