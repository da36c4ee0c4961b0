// Package software holds the categories of the Software group: installed
// programs, updates, services, drivers, processes and licenses.
package software

import (
	"fmt"

	"github.com/go-tangra/go-tangra-sysinfo/internal/category"
	"github.com/go-tangra/go-tangra-sysinfo/internal/enumerator"
	"github.com/go-tangra/go-tangra-sysinfo/internal/wire"
)

const (
	ProgramsID  category.ID = "606C70BE-0C6C-4CB6-90E6-D374760FC5EE"
	UpdatesID   category.ID = "3E160E27-BE2E-45DB-8292-C3786C9533AB"
	ServicesID  category.ID = "BE3143AB-67C3-4EFE-97F5-FA0C84F338C3"
	DriversID   category.ID = "8278DA10-227F-4484-9D5D-9A66C294CA82"
	ProcessesID category.ID = "14BB101B-EE61-49E6-B5B9-874C4DBEA03C"
	LicensesID  category.ID = "6BD88575-9D23-44BC-8A49-64D94CC3EE48"
)

const (
	IconSoftware      category.IconRef = "software"
	IconApplications  category.IconRef = "applications"
	IconGear          category.IconRef = "gear"
	IconPCI           category.IconRef = "pci"
	IconSystemMonitor category.IconRef = "system-monitor"
	IconLicenseKey    category.IconRef = "license-key"
)

// GroupName is the display name of the Software group.
const GroupName = "Software"

// Sources are the enumerators behind the categories. A nil source leaves
// the category able to Parse only, which is all the viewer needs.
type Sources struct {
	Programs  enumerator.Source[enumerator.Program]
	Services  enumerator.Source[enumerator.Service]
	Drivers   enumerator.Source[enumerator.Service]
	Processes enumerator.Source[enumerator.Process]
}

// HostSources returns the enumerators of the running platform.
func HostSources() Sources {
	return Sources{
		Programs:  enumerator.Programs(),
		Services:  enumerator.Services(enumerator.ScopeServices),
		Drivers:   enumerator.Services(enumerator.ScopeDrivers),
		Processes: enumerator.Processes(),
	}
}

// Group builds the Software group in display order.
func Group(src Sources) category.Group {
	return category.Group{
		Name: GroupName,
		Icon: IconSoftware,
		Categories: []category.Category{
			NewPrograms(src.Programs),
			NewUpdates(),
			NewServices(src.Services),
			NewDrivers(src.Drivers),
			NewProcesses(src.Processes),
			NewLicenses(),
		},
	}
}

// identity implements the pure part of category.Category.
type identity struct {
	name string
	icon category.IconRef
	id   category.ID
}

func (i identity) Name() string           { return i.name }
func (i identity) Icon() category.IconRef { return i.icon }
func (i identity) ID() category.ID        { return i.id }

func drain[T any](name string, src enumerator.Source[T]) ([]T, error) {
	if src == nil {
		return nil, fmt.Errorf("%s: %w", name, category.ErrNoSource)
	}
	records, err := enumerator.Drain(src)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", category.ErrEnumerate, name, err)
	}
	return records, nil
}

func decode(name string, m wire.Message, payload []byte) error {
	if err := m.UnmarshalWire(payload); err != nil {
		return fmt.Errorf("%w: %s: %w", category.ErrDecode, name, err)
	}
	return nil
}

func text(s string) category.Cell { return category.Cell{Text: s} }

// NewRegistry returns a registry holding the Software group.
func NewRegistry(src Sources) (*category.Registry, error) {
	return category.NewRegistry(Group(src))
}
