// Package hostid identifies the machine the agent runs on.
package hostid

import (
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/siderolabs/go-smbios/smbios"
	"go.uber.org/zap"
)

// Identity is what the agent reports about itself.
type Identity struct {
	Hostname     string `json:"hostname"`
	SystemUUID   string `json:"system_uuid,omitempty"`
	Manufacturer string `json:"manufacturer,omitempty"`
	Product      string `json:"product,omitempty"`
}

// ID is the stable host key: the SMBIOS system UUID, or the hostname when
// the firmware does not provide one.
func (i Identity) ID() string {
	if i.SystemUUID != "" {
		return i.SystemUUID
	}
	return i.Hostname
}

var (
	readSMBIOS = smbios.New
	hostname   = os.Hostname

	unsetUUID = uuid.MustParse("ffffffff-ffff-ffff-ffff-ffffffffffff")
)

// Detect reads the hostname and the SMBIOS system information. SMBIOS is
// optional; without it only the hostname is filled in.
func Detect() (Identity, error) {
	name, err := hostname()
	if err != nil {
		return Identity{}, fmt.Errorf("read hostname: %w", err)
	}
	id := Identity{Hostname: name}

	s, err := readSMBIOS()
	if err != nil {
		zap.L().Debug("SMBIOS not readable, using hostname as host id", zap.Error(err))
		return id, nil
	}
	id.Manufacturer = strings.TrimSpace(s.SystemInformation.Manufacturer)
	id.Product = strings.TrimSpace(s.SystemInformation.ProductName)
	id.SystemUUID = normalizeUUID(s.SystemInformation.UUID)
	return id, nil
}

// normalizeUUID drops the all-zero and all-ones values firmware uses for
// "not set".
func normalizeUUID(s string) string {
	u, err := uuid.Parse(strings.TrimSpace(s))
	if err != nil || u == uuid.Nil || u == unsetUUID {
		return ""
	}
	return u.String()
}
