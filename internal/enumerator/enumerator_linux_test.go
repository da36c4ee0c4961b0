//go:build linux

package enumerator

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/shirou/gopsutil/v4/process"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestListPrograms_Dpkg(t *testing.T) {
	dir := t.TempDir()
	dpkgStatusPath = filepath.Join(dir, "status")
	dpkgInfoDir = filepath.Join(dir, "info")
	t.Cleanup(func() {
		dpkgStatusPath = "/var/lib/dpkg/status"
		dpkgInfoDir = "/var/lib/dpkg/info"
	})

	writeFile(t, dpkgStatusPath, "Package: curl\nStatus: install ok installed\nArchitecture: amd64\nVersion: 7.88\nMaintainer: Alessandro Ghedini <ghedo@debian.org>\n")
	writeFile(t, filepath.Join(dpkgInfoDir, "curl:amd64.list"), "/usr/bin/curl\n")

	got, err := Drain(Programs())
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "curl", got[0].Name)
	assert.Equal(t, "7.88", got[0].Version)
	assert.Equal(t, "Alessandro Ghedini", got[0].Publisher)
	assert.Len(t, got[0].InstallDate, len("2006-01-02"))
}

func TestListPrograms_NoDatabase(t *testing.T) {
	dpkgStatusPath = filepath.Join(t.TempDir(), "missing")
	t.Cleanup(func() { dpkgStatusPath = "/var/lib/dpkg/status" })

	_, err := Drain(Programs())
	assert.ErrorIs(t, err, ErrUnsupported)
}

func TestListUnits(t *testing.T) {
	root := t.TempDir()
	etc := filepath.Join(root, "etc")
	lib := filepath.Join(root, "lib")
	systemdEtc = etc
	systemdDirs = []string{etc, lib}
	cgroupRoot = filepath.Join(root, "cgroup")
	t.Cleanup(func() {
		systemdEtc = "/etc/systemd/system"
		systemdDirs = []string{"/etc/systemd/system", "/run/systemd/system", "/usr/lib/systemd/system", "/lib/systemd/system"}
		cgroupRoot = "/sys/fs/cgroup/system.slice"
	})

	writeFile(t, filepath.Join(lib, "ssh.service"), "[Unit]\nDescription=SSH\n[Service]\nExecStart=/usr/sbin/sshd -D\n")
	writeFile(t, filepath.Join(lib, "cron.service"), "[Unit]\nDescription=Cron\n[Service]\nExecStart=/usr/sbin/cron\nUser=cron\n")
	writeFile(t, filepath.Join(lib, "getty@.service"), "[Unit]\nDescription=template\n")
	require.NoError(t, os.MkdirAll(filepath.Join(etc, "multi-user.target.wants"), 0o755))
	require.NoError(t, os.Symlink(filepath.Join(lib, "ssh.service"), filepath.Join(etc, "multi-user.target.wants", "ssh.service")))
	require.NoError(t, os.Symlink("/dev/null", filepath.Join(etc, "cups.service")))
	require.NoError(t, os.MkdirAll(filepath.Join(cgroupRoot, "ssh.service"), 0o755))

	got, err := Drain(Services(ScopeServices))
	require.NoError(t, err)
	require.Len(t, got, 3)

	assert.Equal(t, "cron", got[0].Name)
	assert.Equal(t, StatusStopped, got[0].Status)
	assert.Equal(t, StartupDemand, got[0].StartupType)
	assert.Equal(t, "cron", got[0].StartName)

	assert.Equal(t, "cups", got[1].Name)
	assert.Equal(t, StartupDisabled, got[1].StartupType)

	assert.Equal(t, "ssh", got[2].Name)
	assert.Equal(t, StatusRunning, got[2].Status)
	assert.Equal(t, StartupAuto, got[2].StartupType)
	assert.Equal(t, "/usr/sbin/sshd -D", got[2].BinaryPath)
	assert.Equal(t, "root", got[2].StartName)
}

type fakeProc struct {
	name, exe, cmdline string
	mem                *process.MemoryInfoStat
	gone, denied       bool
}

func (f fakeProc) NameWithContext(context.Context) (string, error) {
	if f.gone {
		return "", os.ErrNotExist
	}
	return f.name, nil
}

func (f fakeProc) ExeWithContext(context.Context) (string, error) {
	if f.denied {
		return "", os.ErrPermission
	}
	return f.exe, nil
}

func (f fakeProc) CmdlineWithContext(context.Context) (string, error) {
	if f.denied {
		return "", os.ErrPermission
	}
	return f.cmdline, nil
}

func (f fakeProc) MemoryInfoWithContext(context.Context) (*process.MemoryInfoStat, error) {
	if f.mem == nil {
		return nil, os.ErrNotExist
	}
	return f.mem, nil
}

func stubProcesses(t *testing.T, procs map[int32]fakeProc) {
	t.Helper()
	old := runningProcesses
	t.Cleanup(func() { runningProcesses = old })
	runningProcesses = func(context.Context) ([]int32, func(int32) procHandle, error) {
		pids := make([]int32, 0, len(procs))
		for pid := range procs {
			pids = append(pids, pid)
		}
		return pids, func(pid int32) procHandle { return procs[pid] }, nil
	}
}

func TestListProcesses(t *testing.T) {
	procRoot = t.TempDir()
	t.Cleanup(func() { procRoot = "/proc" })
	writeFile(t, filepath.Join(procRoot, "10", "status"), "Name:\tsecond\nVmSwap:\t4 kB\n")

	stubProcesses(t, map[int32]fakeProc{
		10: {name: "second", exe: "/usr/bin/second", cmdline: "second --flag", mem: &process.MemoryInfoStat{RSS: 8 * 1024}},
		9:  {name: "first", denied: true},
		11: {gone: true},
	})

	procs, err := Drain(Processes())
	require.NoError(t, err)
	require.Len(t, procs, 2)
	assert.Equal(t, Process{ProcessName: "first"}, procs[0])
	assert.Equal(t, Process{
		ProcessName: "second",
		FilePath:    "/usr/bin/second",
		UsedMemory:  8 * 1024,
		UsedSwap:    4 * 1024,
		Description: "second --flag",
	}, procs[1])
}

func TestListProcesses_Live(t *testing.T) {
	exe, err := os.Executable()
	require.NoError(t, err)

	procs, err := Drain(Processes())
	require.NoError(t, err)
	assert.True(t, slices.ContainsFunc(procs, func(p Process) bool {
		return p.FilePath == exe && p.UsedMemory > 0
	}), "test binary not listed")
}

func TestListModules(t *testing.T) {
	procRoot = t.TempDir()
	t.Cleanup(func() { procRoot = "/proc" })
	writeFile(t, filepath.Join(procRoot, "modules"), "ext4 1 0 - Live 0x0\n")

	mods, err := Drain(Services(ScopeDrivers))
	require.NoError(t, err)
	require.Len(t, mods, 1)
	assert.Equal(t, "ext4", mods[0].Name)
}
