//go:build windows

package enumerator

import (
	"errors"
	"fmt"
	"unsafe"

	"golang.org/x/sys/windows"
	"golang.org/x/sys/windows/registry"
	"golang.org/x/sys/windows/svc/mgr"
)

var uninstallKeys = []struct {
	root registry.Key
	path string
}{
	{registry.LOCAL_MACHINE, `SOFTWARE\Microsoft\Windows\CurrentVersion\Uninstall`},
	{registry.LOCAL_MACHINE, `SOFTWARE\WOW6432Node\Microsoft\Windows\CurrentVersion\Uninstall`},
	{registry.CURRENT_USER, `SOFTWARE\Microsoft\Windows\CurrentVersion\Uninstall`},
}

func listPrograms() ([]Program, error) {
	var (
		out    []Program
		opened int
		seen   = make(map[string]bool)
	)
	for _, u := range uninstallKeys {
		k, err := registry.OpenKey(u.root, u.path, registry.ENUMERATE_SUB_KEYS|registry.QUERY_VALUE)
		if err != nil {
			continue
		}
		opened++
		names, err := k.ReadSubKeyNames(-1)
		if err != nil {
			k.Close()
			return nil, fmt.Errorf("read %s: %w", u.path, err)
		}
		for _, name := range names {
			p, ok := readProgram(k, name)
			if !ok || seen[p.Name+"\x00"+p.Version] {
				continue
			}
			seen[p.Name+"\x00"+p.Version] = true
			out = append(out, p)
		}
		k.Close()
	}
	if opened == 0 {
		return nil, errors.New("open uninstall registry keys")
	}
	return out, nil
}

// readProgram skips system components and updates, which have their own
// entries under their parent product.
func readProgram(parent registry.Key, name string) (Program, bool) {
	k, err := registry.OpenKey(parent, name, registry.QUERY_VALUE)
	if err != nil {
		return Program{}, false
	}
	defer k.Close()

	display := stringValue(k, "DisplayName")
	if display == "" {
		return Program{}, false
	}
	if v, _, err := k.GetIntegerValue("SystemComponent"); err == nil && v == 1 {
		return Program{}, false
	}
	if stringValue(k, "ParentKeyName") != "" {
		return Program{}, false
	}
	return Program{
		Name:            display,
		Version:         stringValue(k, "DisplayVersion"),
		Publisher:       stringValue(k, "Publisher"),
		InstallDate:     formatInstallDate(stringValue(k, "InstallDate")),
		InstallLocation: stringValue(k, "InstallLocation"),
	}, true
}

func stringValue(k registry.Key, name string) string {
	v, _, err := k.GetStringValue(name)
	if err != nil {
		return ""
	}
	return v
}

var serviceStates = map[uint32]ServiceStatus{
	windows.SERVICE_CONTINUE_PENDING: StatusContinuePending,
	windows.SERVICE_PAUSE_PENDING:    StatusPausePending,
	windows.SERVICE_PAUSED:           StatusPaused,
	windows.SERVICE_RUNNING:          StatusRunning,
	windows.SERVICE_START_PENDING:    StatusStartPending,
	windows.SERVICE_STOP_PENDING:     StatusStopPending,
	windows.SERVICE_STOPPED:          StatusStopped,
}

var startTypes = map[uint32]StartupType{
	windows.SERVICE_AUTO_START:   StartupAuto,
	windows.SERVICE_DEMAND_START: StartupDemand,
	windows.SERVICE_DISABLED:     StartupDisabled,
	windows.SERVICE_BOOT_START:   StartupBoot,
	windows.SERVICE_SYSTEM_START: StartupSystem,
}

func listServices(scope Scope) ([]Service, error) {
	m, err := mgr.Connect()
	if err != nil {
		return nil, fmt.Errorf("connect to SCM: %w", err)
	}
	defer m.Disconnect()

	serviceType := uint32(windows.SERVICE_WIN32)
	if scope == ScopeDrivers {
		serviceType = windows.SERVICE_DRIVER
	}

	entries, err := enumServices(m.Handle, serviceType)
	if err != nil {
		return nil, fmt.Errorf("enumerate %s: %w", scope, err)
	}

	out := make([]Service, 0, len(entries))
	for _, e := range entries {
		name := windows.UTF16PtrToString(e.ServiceName)
		svc := Service{
			Name:        name,
			DisplayName: windows.UTF16PtrToString(e.DisplayName),
			Status:      statusOf(e.ServiceStatusProcess.CurrentState),
			StartupType: StartupType(-1),
		}
		if s, err := m.OpenService(name); err == nil {
			if cfg, err := s.Config(); err == nil {
				svc.Description = cfg.Description
				svc.BinaryPath = cfg.BinaryPathName
				svc.StartName = cfg.ServiceStartName
				if t, ok := startTypes[cfg.StartType]; ok {
					svc.StartupType = t
				}
			}
			s.Close()
		}
		out = append(out, svc)
	}
	return out, nil
}

func statusOf(state uint32) ServiceStatus {
	if s, ok := serviceStates[state]; ok {
		return s
	}
	return ServiceStatus(-1)
}

// enumServices is mgr.ListServices with a caller-chosen service type.
func enumServices(h windows.Handle, serviceType uint32) ([]windows.ENUM_SERVICE_STATUS_PROCESS, error) {
	var (
		bytesNeeded, count, resume uint32
		buf                        []byte
	)
	for {
		var p *byte
		if len(buf) > 0 {
			p = &buf[0]
		}
		err := windows.EnumServicesStatusEx(h, windows.SC_ENUM_PROCESS_INFO, serviceType,
			windows.SERVICE_STATE_ALL, p, uint32(len(buf)), &bytesNeeded, &count, &resume, nil)
		if err == nil {
			break
		}
		if err != windows.ERROR_MORE_DATA {
			return nil, err
		}
		if bytesNeeded <= uint32(len(buf)) {
			return nil, err
		}
		buf = make([]byte, bytesNeeded)
	}
	if count == 0 {
		return nil, nil
	}
	entries := unsafe.Slice((*windows.ENUM_SERVICE_STATUS_PROCESS)(unsafe.Pointer(&buf[0])), int(count))
	out := make([]windows.ENUM_SERVICE_STATUS_PROCESS, len(entries))
	copy(out, entries)
	return out, nil
}

var procGetProcessMemoryInfo = windows.NewLazySystemDLL("psapi.dll").NewProc("GetProcessMemoryInfo")

type processMemoryCounters struct {
	cb                         uint32
	PageFaultCount             uint32
	PeakWorkingSetSize         uintptr
	WorkingSetSize             uintptr
	QuotaPeakPagedPoolUsage    uintptr
	QuotaPagedPoolUsage        uintptr
	QuotaPeakNonPagedPoolUsage uintptr
	QuotaNonPagedPoolUsage     uintptr
	PagefileUsage              uintptr
	PeakPagefileUsage          uintptr
}

func listProcesses() ([]Process, error) {
	snap, err := windows.CreateToolhelp32Snapshot(windows.TH32CS_SNAPPROCESS, 0)
	if err != nil {
		return nil, fmt.Errorf("process snapshot: %w", err)
	}
	defer windows.CloseHandle(snap)

	var e windows.ProcessEntry32
	e.Size = uint32(unsafe.Sizeof(e))
	if err := windows.Process32First(snap, &e); err != nil {
		return nil, fmt.Errorf("first process: %w", err)
	}

	var out []Process
	for {
		p := Process{ProcessName: windows.UTF16ToString(e.ExeFile[:])}
		readProcessDetails(e.ProcessID, &p)
		out = append(out, p)

		if err := windows.Process32Next(snap, &e); err != nil {
			if err == windows.ERROR_NO_MORE_FILES {
				break
			}
			return nil, fmt.Errorf("next process: %w", err)
		}
	}
	return out, nil
}

// readProcessDetails fills what a limited-rights handle allows; protected
// processes keep only their name.
func readProcessDetails(pid uint32, p *Process) {
	h, err := windows.OpenProcess(windows.PROCESS_QUERY_LIMITED_INFORMATION|windows.PROCESS_VM_READ, false, pid)
	if err != nil {
		h, err = windows.OpenProcess(windows.PROCESS_QUERY_LIMITED_INFORMATION, false, pid)
		if err != nil {
			return
		}
	}
	defer windows.CloseHandle(h)

	buf := make([]uint16, windows.MAX_LONG_PATH)
	size := uint32(len(buf))
	if err := windows.QueryFullProcessImageName(h, 0, &buf[0], &size); err == nil {
		p.FilePath = windows.UTF16ToString(buf[:size])
	}

	var mc processMemoryCounters
	mc.cb = uint32(unsafe.Sizeof(mc))
	if r, _, _ := procGetProcessMemoryInfo.Call(uintptr(h), uintptr(unsafe.Pointer(&mc)), uintptr(mc.cb)); r != 0 {
		p.UsedMemory = uint64(mc.WorkingSetSize)
		p.UsedSwap = uint64(mc.PagefileUsage)
	}
}
