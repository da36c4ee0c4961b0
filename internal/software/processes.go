package software

import (
	"strconv"

	"github.com/go-tangra/go-tangra-sysinfo/internal/category"
	"github.com/go-tangra/go-tangra-sysinfo/internal/enumerator"
)

var processColumns = []category.Column{
	{Title: "Process Name", Width: 150},
	{Title: "File Path", Width: 200},
	{Title: "Used Memory", Width: 80},
	{Title: "Used Swap", Width: 80},
	{Title: "Description", Width: 150},
}

// ProcessesCategory lists running processes.
type ProcessesCategory struct {
	identity
	src enumerator.Source[enumerator.Process]
}

func NewProcesses(src enumerator.Source[enumerator.Process]) *ProcessesCategory {
	return &ProcessesCategory{
		identity: identity{name: "Processes", icon: IconSystemMonitor, id: ProcessesID},
		src:      src,
	}
}

func (c *ProcessesCategory) Columns() []category.Column {
	return append([]category.Column(nil), processColumns...)
}

func (c *ProcessesCategory) Serialize() ([]byte, error) {
	records, err := drain(c.name, c.src)
	if err != nil {
		return nil, err
	}
	msg := Processes{Items: make([]ProcessItem, 0, len(records))}
	for _, p := range records {
		msg.Items = append(msg.Items, ProcessItem{
			ProcessName: p.ProcessName,
			FilePath:    p.FilePath,
			UsedMemory:  p.UsedMemory,
			UsedSwap:    p.UsedSwap,
			Description: p.Description,
		})
	}
	return msg.MarshalWire(), nil
}

func (c *ProcessesCategory) Parse(payload []byte) ([]category.Row, error) {
	var msg Processes
	if err := decode(c.name, &msg, payload); err != nil {
		return nil, err
	}
	rows := make([]category.Row, 0, len(msg.Items))
	for _, it := range msg.Items {
		rows = append(rows, category.Row{
			Icon: c.icon,
			Cells: []category.Cell{
				text(it.ProcessName),
				text(it.FilePath),
				kilobytes(it.UsedMemory),
				kilobytes(it.UsedSwap),
				text(it.Description),
			},
		})
	}
	return rows, nil
}

// kilobytes renders a byte count in kB, or an empty cell for zero.
func kilobytes(n uint64) category.Cell {
	if n == 0 {
		return category.Cell{}
	}
	return category.Cell{Text: strconv.FormatUint(n/1024, 10), Unit: "kB"}
}
