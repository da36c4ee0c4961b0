package software

import "github.com/go-tangra/go-tangra-sysinfo/internal/category"

// placeholder is a registered category that collects nothing yet. Serialize
// returns an empty payload and Parse accepts any input with no rows.
type placeholder struct {
	identity
}

func (placeholder) Columns() []category.Column { return nil }

func (placeholder) Serialize() ([]byte, error) { return []byte{}, nil }

func (placeholder) Parse([]byte) ([]category.Row, error) { return []category.Row{}, nil }

func (placeholder) Incomplete() bool { return true }

// UpdatesCategory is reserved for installed operating system updates.
type UpdatesCategory struct{ placeholder }

func NewUpdates() *UpdatesCategory {
	return &UpdatesCategory{placeholder{identity{name: "Updates", icon: IconApplications, id: UpdatesID}}}
}

// LicensesCategory is reserved for product license keys.
type LicensesCategory struct{ placeholder }

func NewLicenses() *LicensesCategory {
	return &LicensesCategory{placeholder{identity{name: "Licenses", icon: IconLicenseKey, id: LicensesID}}}
}
