package enumerator

import (
	"bufio"
	"io"
	"strconv"
	"strings"
)

// dpkgPackage is one stanza of the dpkg status database.
type dpkgPackage struct {
	Name       string
	Arch       string
	Version    string
	Maintainer string
	Installed  bool
}

// Publisher strips the mail address from the maintainer field.
func (p dpkgPackage) Publisher() string {
	if i := strings.Index(p.Maintainer, " <"); i >= 0 {
		return p.Maintainer[:i]
	}
	return p.Maintainer
}

func newLineScanner(r io.Reader) *bufio.Scanner {
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 64*1024), 1<<20)
	return s
}

// parseDpkgStatus returns the packages of a dpkg status file in file order.
func parseDpkgStatus(r io.Reader) ([]dpkgPackage, error) {
	var (
		out []dpkgPackage
		cur dpkgPackage
	)
	flush := func() {
		if cur.Name != "" {
			out = append(out, cur)
		}
		cur = dpkgPackage{}
	}

	s := newLineScanner(r)
	for s.Scan() {
		line := s.Text()
		if line == "" {
			flush()
			continue
		}
		if line[0] == ' ' || line[0] == '\t' {
			continue
		}
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		value = strings.TrimSpace(value)
		switch key {
		case "Package":
			cur.Name = value
		case "Architecture":
			cur.Arch = value
		case "Version":
			cur.Version = value
		case "Maintainer":
			cur.Maintainer = value
		case "Status":
			cur.Installed = strings.HasSuffix(value, " installed")
		}
	}
	flush()
	return out, s.Err()
}

// procStatus holds the fields read from /proc/<pid>/status.
type procStatus struct {
	Name string
	RSS  uint64
	Swap uint64
}

// parseProcStatus reads a /proc/<pid>/status file. Sizes are returned in bytes.
func parseProcStatus(r io.Reader) (procStatus, error) {
	var st procStatus
	s := newLineScanner(r)
	for s.Scan() {
		key, value, ok := strings.Cut(s.Text(), ":")
		if !ok {
			continue
		}
		value = strings.TrimSpace(value)
		switch key {
		case "Name":
			st.Name = value
		case "VmRSS":
			st.RSS = parseKB(value)
		case "VmSwap":
			st.Swap = parseKB(value)
		}
	}
	return st, s.Err()
}

func parseKB(v string) uint64 {
	n, err := strconv.ParseUint(strings.TrimSpace(strings.TrimSuffix(v, "kB")), 10, 64)
	if err != nil {
		return 0
	}
	return n * 1024
}

// parseModules reads /proc/modules.
func parseModules(r io.Reader) ([]Service, error) {
	var out []Service
	s := newLineScanner(r)
	for s.Scan() {
		f := strings.Fields(s.Text())
		if len(f) < 5 {
			continue
		}
		out = append(out, Service{
			Name:        f[0],
			DisplayName: f[0],
			Status:      moduleState(f[4]),
			StartupType: StartupDemand,
		})
	}
	return out, s.Err()
}

func moduleState(s string) ServiceStatus {
	switch s {
	case "Live":
		return StatusRunning
	case "Loading":
		return StatusStartPending
	case "Unloading":
		return StatusStopPending
	default:
		return ServiceStatus(-1)
	}
}

// unitFile holds the keys of a systemd unit that describe a service.
type unitFile struct {
	Description string
	ExecStart   string
	User        string
}

func parseUnit(r io.Reader) (unitFile, error) {
	var (
		u       unitFile
		section string
	)
	s := newLineScanner(r)
	for s.Scan() {
		line := strings.TrimSpace(s.Text())
		if line == "" || line[0] == '#' || line[0] == ';' {
			continue
		}
		if line[0] == '[' && strings.HasSuffix(line, "]") {
			section = line[1 : len(line)-1]
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key, value = strings.TrimSpace(key), strings.TrimSpace(value)
		switch {
		case section == "Unit" && key == "Description":
			u.Description = value
		case section == "Service" && key == "ExecStart" && u.ExecStart == "":
			u.ExecStart = strings.TrimLeft(value, "-@+!:")
		case section == "Service" && key == "User":
			u.User = value
		}
	}
	return u, s.Err()
}

// formatInstallDate turns a YYYYMMDD registry value into YYYY-MM-DD.
func formatInstallDate(v string) string {
	if len(v) != 8 {
		return v
	}
	if _, err := strconv.Atoi(v); err != nil {
		return v
	}
	return v[0:4] + "-" + v[4:6] + "-" + v[6:8]
}
