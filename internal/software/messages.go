package software

import "github.com/go-tangra/go-tangra-sysinfo/internal/wire"

// ProgramItem is one entry of the Programs payload.
type ProgramItem struct {
	Name            string
	Version         string
	Publisher       string
	InstallDate     string
	InstallLocation string
}

func (m *ProgramItem) MarshalWire() []byte {
	var e wire.Encoder
	e.String(1, m.Name)
	e.String(2, m.Version)
	e.String(3, m.Publisher)
	e.String(4, m.InstallDate)
	e.String(5, m.InstallLocation)
	return e.Bytes()
}

func (m *ProgramItem) UnmarshalWire(b []byte) error {
	*m = ProgramItem{}
	r := wire.NewReader(b)
	for r.Next() {
		switch r.Field() {
		case 1:
			r.String(&m.Name)
		case 2:
			r.String(&m.Version)
		case 3:
			r.String(&m.Publisher)
		case 4:
			r.String(&m.InstallDate)
		case 5:
			r.String(&m.InstallLocation)
		}
	}
	return r.Err()
}

// Programs is the payload of the Programs category.
type Programs struct {
	Items []ProgramItem
}

func (m *Programs) MarshalWire() []byte {
	var e wire.Encoder
	for i := range m.Items {
		e.Message(1, &m.Items[i])
	}
	return e.Bytes()
}

func (m *Programs) UnmarshalWire(b []byte) error {
	*m = Programs{}
	r := wire.NewReader(b)
	for r.Next() {
		if r.Field() == 1 {
			var it ProgramItem
			if r.Message(&it) {
				m.Items = append(m.Items, it)
			}
		}
	}
	return r.Err()
}

// ServiceStatus is the wire enum of a service run state.
type ServiceStatus int32

const (
	StatusUnknown ServiceStatus = iota
	StatusContinuePending
	StatusPausePending
	StatusPaused
	StatusRunning
	StatusStartPending
	StatusStopPending
	StatusStopped
)

// StartupType is the wire enum of a service start mode.
type StartupType int32

const (
	StartupUnknown StartupType = iota
	StartupAutoStart
	StartupDemandStart
	StartupDisabled
	StartupBootStart
	StartupSystemStart
)

// ServiceItem is one entry of the Services payload. Drivers use the same
// message.
type ServiceItem struct {
	Name        string
	DisplayName string
	Description string
	Status      ServiceStatus
	StartupType StartupType
	BinaryPath  string
	StartName   string
}

func (m *ServiceItem) MarshalWire() []byte {
	var e wire.Encoder
	e.String(1, m.Name)
	e.String(2, m.DisplayName)
	e.String(3, m.Description)
	e.Enum(4, int32(m.Status))
	e.Enum(5, int32(m.StartupType))
	e.String(6, m.BinaryPath)
	e.String(7, m.StartName)
	return e.Bytes()
}

func (m *ServiceItem) UnmarshalWire(b []byte) error {
	*m = ServiceItem{}
	r := wire.NewReader(b)
	for r.Next() {
		switch r.Field() {
		case 1:
			r.String(&m.Name)
		case 2:
			r.String(&m.DisplayName)
		case 3:
			r.String(&m.Description)
		case 4:
			var v int32
			r.Enum(&v)
			m.Status = ServiceStatus(v)
		case 5:
			var v int32
			r.Enum(&v)
			m.StartupType = StartupType(v)
		case 6:
			r.String(&m.BinaryPath)
		case 7:
			r.String(&m.StartName)
		}
	}
	return r.Err()
}

// Services is the payload of the Services and Drivers categories.
type Services struct {
	Items []ServiceItem
}

func (m *Services) MarshalWire() []byte {
	var e wire.Encoder
	for i := range m.Items {
		e.Message(1, &m.Items[i])
	}
	return e.Bytes()
}

func (m *Services) UnmarshalWire(b []byte) error {
	*m = Services{}
	r := wire.NewReader(b)
	for r.Next() {
		if r.Field() == 1 {
			var it ServiceItem
			if r.Message(&it) {
				m.Items = append(m.Items, it)
			}
		}
	}
	return r.Err()
}

// ProcessItem is one entry of the Processes payload. Memory figures are
// in bytes.
type ProcessItem struct {
	ProcessName string
	FilePath    string
	UsedMemory  uint64
	UsedSwap    uint64
	Description string
}

func (m *ProcessItem) MarshalWire() []byte {
	var e wire.Encoder
	e.String(1, m.ProcessName)
	e.String(2, m.FilePath)
	e.Uint64(3, m.UsedMemory)
	e.Uint64(4, m.UsedSwap)
	e.String(5, m.Description)
	return e.Bytes()
}

func (m *ProcessItem) UnmarshalWire(b []byte) error {
	*m = ProcessItem{}
	r := wire.NewReader(b)
	for r.Next() {
		switch r.Field() {
		case 1:
			r.String(&m.ProcessName)
		case 2:
			r.String(&m.FilePath)
		case 3:
			r.Uint64(&m.UsedMemory)
		case 4:
			r.Uint64(&m.UsedSwap)
		case 5:
			r.String(&m.Description)
		}
	}
	return r.Err()
}

// Processes is the payload of the Processes category.
type Processes struct {
	Items []ProcessItem
}

func (m *Processes) MarshalWire() []byte {
	var e wire.Encoder
	for i := range m.Items {
		e.Message(1, &m.Items[i])
	}
	return e.Bytes()
}

func (m *Processes) UnmarshalWire(b []byte) error {
	*m = Processes{}
	r := wire.NewReader(b)
	for r.Next() {
		if r.Field() == 1 {
			var it ProcessItem
			if r.Message(&it) {
				m.Items = append(m.Items, it)
			}
		}
	}
	return r.Err()
}
