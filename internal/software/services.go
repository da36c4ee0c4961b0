package software

import (
	"github.com/go-tangra/go-tangra-sysinfo/internal/category"
	"github.com/go-tangra/go-tangra-sysinfo/internal/enumerator"
)

var serviceColumns = []category.Column{
	{Title: "Display Name", Width: 200},
	{Title: "Name", Width: 200},
	{Title: "Description", Width: 200},
	{Title: "Status", Width: 200},
	{Title: "Startup Type", Width: 200},
	{Title: "Account", Width: 200},
	{Title: "Executable File", Width: 200},
}

var driverColumns = []category.Column{
	{Title: "Display Name", Width: 200},
	{Title: "Name", Width: 200},
	{Title: "Description", Width: 200},
	{Title: "Status", Width: 200},
	{Title: "Startup Type", Width: 200},
	{Title: "Executable File", Width: 200},
}

// ServicesCategory covers both services and drivers. They share the
// Services payload and differ in enumerator scope and in the account
// column, which drivers do not have.
type ServicesCategory struct {
	identity
	src         enumerator.Source[enumerator.Service]
	withAccount bool
}

func NewServices(src enumerator.Source[enumerator.Service]) *ServicesCategory {
	return &ServicesCategory{
		identity:    identity{name: "Services", icon: IconGear, id: ServicesID},
		src:         src,
		withAccount: true,
	}
}

func NewDrivers(src enumerator.Source[enumerator.Service]) *ServicesCategory {
	return &ServicesCategory{
		identity: identity{name: "Drivers", icon: IconPCI, id: DriversID},
		src:      src,
	}
}

func (c *ServicesCategory) Columns() []category.Column {
	if c.withAccount {
		return append([]category.Column(nil), serviceColumns...)
	}
	return append([]category.Column(nil), driverColumns...)
}

func (c *ServicesCategory) Serialize() ([]byte, error) {
	records, err := drain(c.name, c.src)
	if err != nil {
		return nil, err
	}
	msg := Services{Items: make([]ServiceItem, 0, len(records))}
	for _, s := range records {
		msg.Items = append(msg.Items, ServiceItem{
			Name:        s.Name,
			DisplayName: s.DisplayName,
			Description: s.Description,
			Status:      toWireStatus(s.Status),
			StartupType: toWireStartup(s.StartupType),
			BinaryPath:  s.BinaryPath,
			StartName:   s.StartName,
		})
	}
	return msg.MarshalWire(), nil
}

func (c *ServicesCategory) Parse(payload []byte) ([]category.Row, error) {
	var msg Services
	if err := decode(c.name, &msg, payload); err != nil {
		return nil, err
	}
	rows := make([]category.Row, 0, len(msg.Items))
	for _, it := range msg.Items {
		cells := []category.Cell{
			text(it.DisplayName),
			text(it.Name),
			text(it.Description),
			text(StatusLabel(it.Status)),
			text(StartupTypeLabel(it.StartupType)),
		}
		if c.withAccount {
			cells = append(cells, text(it.StartName))
		}
		cells = append(cells, text(it.BinaryPath))
		rows = append(rows, category.Row{Icon: c.icon, Cells: cells})
	}
	return rows, nil
}
