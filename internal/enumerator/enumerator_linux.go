//go:build linux

package enumerator

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strconv"
	"strings"

	"github.com/shirou/gopsutil/v4/process"
)

var (
	dpkgStatusPath = "/var/lib/dpkg/status"
	dpkgInfoDir    = "/var/lib/dpkg/info"
	procRoot       = "/proc"
	cgroupRoot     = "/sys/fs/cgroup/system.slice"
	systemdEtc     = "/etc/systemd/system"
	systemdDirs    = []string{"/etc/systemd/system", "/run/systemd/system", "/usr/lib/systemd/system", "/lib/systemd/system"}
)

func listPrograms() ([]Program, error) {
	f, err := os.Open(dpkgStatusPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: no dpkg database", ErrUnsupported)
		}
		return nil, fmt.Errorf("open dpkg status: %w", err)
	}
	defer f.Close()

	pkgs, err := parseDpkgStatus(f)
	if err != nil {
		return nil, fmt.Errorf("read dpkg status: %w", err)
	}

	out := make([]Program, 0, len(pkgs))
	for _, p := range pkgs {
		if !p.Installed {
			continue
		}
		out = append(out, Program{
			Name:        p.Name,
			Version:     p.Version,
			Publisher:   p.Publisher(),
			InstallDate: dpkgInstallDate(p),
		})
	}
	return out, nil
}

// dpkgInstallDate uses the mtime of the package file list, which dpkg
// rewrites on install.
func dpkgInstallDate(p dpkgPackage) string {
	candidates := []string{p.Name + ".list"}
	if p.Arch != "" {
		candidates = append(candidates, p.Name+":"+p.Arch+".list")
	}
	for _, name := range candidates {
		if fi, err := os.Stat(filepath.Join(dpkgInfoDir, name)); err == nil {
			return fi.ModTime().Format("2006-01-02")
		}
	}
	return ""
}

func listServices(scope Scope) ([]Service, error) {
	if scope == ScopeDrivers {
		return listModules()
	}
	return listUnits()
}

func listModules() ([]Service, error) {
	f, err := os.Open(filepath.Join(procRoot, "modules"))
	if err != nil {
		return nil, fmt.Errorf("open modules: %w", err)
	}
	defer f.Close()

	mods, err := parseModules(f)
	if err != nil {
		return nil, fmt.Errorf("read modules: %w", err)
	}
	return mods, nil
}

func listUnits() ([]Service, error) {
	seen := make(map[string]bool)
	var (
		out   []Service
		found bool
	)
	for _, dir := range systemdDirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		found = true
		for _, e := range entries {
			name := e.Name()
			if !strings.HasSuffix(name, ".service") || strings.Contains(name, "@") || seen[name] {
				continue
			}
			seen[name] = true
			svc, ok := readUnit(filepath.Join(dir, name))
			if ok {
				out = append(out, svc)
			}
		}
	}
	if !found {
		return nil, fmt.Errorf("%w: no systemd unit directories", ErrUnsupported)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func readUnit(path string) (Service, bool) {
	name := filepath.Base(path)
	svc := Service{
		Name:        strings.TrimSuffix(name, ".service"),
		StartupType: StartupDemand,
		Status:      StatusStopped,
	}

	if target, err := os.Readlink(path); err == nil && target == "/dev/null" {
		svc.DisplayName = svc.Name
		svc.StartupType = StartupDisabled
		return svc, true
	}

	f, err := os.Open(path)
	if err != nil {
		return Service{}, false
	}
	defer f.Close()

	u, err := parseUnit(f)
	if err != nil {
		return Service{}, false
	}
	svc.DisplayName = u.Description
	if svc.DisplayName == "" {
		svc.DisplayName = svc.Name
	}
	svc.Description = u.Description
	svc.BinaryPath = u.ExecStart
	svc.StartName = u.User
	if svc.StartName == "" {
		svc.StartName = "root"
	}

	if wanted(name) {
		svc.StartupType = StartupAuto
	}
	if _, err := os.Stat(filepath.Join(cgroupRoot, name)); err == nil {
		svc.Status = StatusRunning
	}
	return svc, true
}

// wanted reports whether some target pulls the unit in at boot.
func wanted(unit string) bool {
	matches, _ := filepath.Glob(filepath.Join(systemdEtc, "*.wants", unit))
	return len(matches) > 0
}

// procHandle is the part of a gopsutil process the lister reads.
type procHandle interface {
	NameWithContext(ctx context.Context) (string, error)
	ExeWithContext(ctx context.Context) (string, error)
	CmdlineWithContext(ctx context.Context) (string, error)
	MemoryInfoWithContext(ctx context.Context) (*process.MemoryInfoStat, error)
}

var runningProcesses = func(ctx context.Context) ([]int32, func(pid int32) procHandle, error) {
	pids, err := process.PidsWithContext(ctx)
	if err != nil {
		return nil, nil, err
	}
	return pids, func(pid int32) procHandle { return &process.Process{Pid: pid} }, nil
}

func listProcesses() ([]Process, error) {
	ctx := context.Background()
	pids, open, err := runningProcesses(ctx)
	if err != nil {
		return nil, fmt.Errorf("list processes: %w", err)
	}
	slices.Sort(pids)

	out := make([]Process, 0, len(pids))
	for _, pid := range pids {
		if p, ok := readProcess(ctx, pid, open(pid)); ok {
			out = append(out, p)
		}
	}
	return out, nil
}

// readProcess skips processes that exit while being read. Fields the
// caller may not read (exe and cmdline of other users) stay empty.
func readProcess(ctx context.Context, pid int32, h procHandle) (Process, bool) {
	name, err := h.NameWithContext(ctx)
	if err != nil {
		return Process{}, false
	}
	p := Process{ProcessName: name}
	if exe, err := h.ExeWithContext(ctx); err == nil {
		p.FilePath = exe
	}
	if cmd, err := h.CmdlineWithContext(ctx); err == nil {
		p.Description = strings.TrimSpace(cmd)
	}
	if mi, err := h.MemoryInfoWithContext(ctx); err == nil && mi != nil {
		p.UsedMemory = mi.RSS
		p.UsedSwap = mi.Swap
	}
	// MemoryInfo reads statm, which carries no swap.
	if p.UsedSwap == 0 {
		p.UsedSwap = readSwap(pid)
	}
	return p, true
}

func readSwap(pid int32) uint64 {
	f, err := os.Open(filepath.Join(procRoot, strconv.Itoa(int(pid)), "status"))
	if err != nil {
		return 0
	}
	defer f.Close()
	st, err := parseProcStatus(f)
	if err != nil {
		return 0
	}
	return st.Swap
}
