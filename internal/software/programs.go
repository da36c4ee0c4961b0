package software

import (
	"github.com/go-tangra/go-tangra-sysinfo/internal/category"
	"github.com/go-tangra/go-tangra-sysinfo/internal/enumerator"
)

var programColumns = []category.Column{
	{Title: "Name", Width: 200},
	{Title: "Version", Width: 100},
	{Title: "Publisher", Width: 100},
	{Title: "Install Date", Width: 80},
	{Title: "Install Location", Width: 150},
}

// ProgramsCategory lists installed programs.
type ProgramsCategory struct {
	identity
	src enumerator.Source[enumerator.Program]
}

func NewPrograms(src enumerator.Source[enumerator.Program]) *ProgramsCategory {
	return &ProgramsCategory{
		identity: identity{name: "Programs", icon: IconApplications, id: ProgramsID},
		src:      src,
	}
}

func (c *ProgramsCategory) Columns() []category.Column {
	return append([]category.Column(nil), programColumns...)
}

func (c *ProgramsCategory) Serialize() ([]byte, error) {
	records, err := drain(c.name, c.src)
	if err != nil {
		return nil, err
	}
	msg := Programs{Items: make([]ProgramItem, 0, len(records))}
	for _, p := range records {
		msg.Items = append(msg.Items, ProgramItem{
			Name:            p.Name,
			Version:         p.Version,
			Publisher:       p.Publisher,
			InstallDate:     p.InstallDate,
			InstallLocation: p.InstallLocation,
		})
	}
	return msg.MarshalWire(), nil
}

func (c *ProgramsCategory) Parse(payload []byte) ([]category.Row, error) {
	var msg Programs
	if err := decode(c.name, &msg, payload); err != nil {
		return nil, err
	}
	rows := make([]category.Row, 0, len(msg.Items))
	for _, it := range msg.Items {
		rows = append(rows, category.Row{
			Icon: c.icon,
			Cells: []category.Cell{
				text(it.Name),
				text(it.Version),
				text(it.Publisher),
				text(it.InstallDate),
				text(it.InstallLocation),
			},
		})
	}
	return rows, nil
}
