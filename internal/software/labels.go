package software

import "github.com/go-tangra/go-tangra-sysinfo/internal/enumerator"

// UnknownLabel is shown for any status or startup type outside the known set.
const UnknownLabel = "Unknown"

var statusLabels = map[ServiceStatus]string{
	StatusContinuePending: "Continue Pending",
	StatusPausePending:    "Pause Pending",
	StatusPaused:          "Paused",
	StatusRunning:         "Running",
	StatusStartPending:    "Start Pending",
	StatusStopPending:     "Stop Pending",
	StatusStopped:         "Stopped",
}

var startupLabels = map[StartupType]string{
	StartupAutoStart:   "Auto Start",
	StartupDemandStart: "Demand Start",
	StartupDisabled:    "Disabled",
	StartupBootStart:   "Boot Start",
	StartupSystemStart: "System Start",
}

// StatusLabel never fails: values outside the table are "Unknown".
func StatusLabel(s ServiceStatus) string {
	if l, ok := statusLabels[s]; ok {
		return l
	}
	return UnknownLabel
}

// StartupTypeLabel never fails: values outside the table are "Unknown".
func StartupTypeLabel(t StartupType) string {
	if l, ok := startupLabels[t]; ok {
		return l
	}
	return UnknownLabel
}

var wireStatus = map[enumerator.ServiceStatus]ServiceStatus{
	enumerator.StatusContinuePending: StatusContinuePending,
	enumerator.StatusPausePending:    StatusPausePending,
	enumerator.StatusPaused:          StatusPaused,
	enumerator.StatusRunning:         StatusRunning,
	enumerator.StatusStartPending:    StatusStartPending,
	enumerator.StatusStopPending:     StatusStopPending,
	enumerator.StatusStopped:         StatusStopped,
}

var wireStartup = map[enumerator.StartupType]StartupType{
	enumerator.StartupAuto:     StartupAutoStart,
	enumerator.StartupDemand:   StartupDemandStart,
	enumerator.StartupDisabled: StartupDisabled,
	enumerator.StartupBoot:     StartupBootStart,
	enumerator.StartupSystem:   StartupSystemStart,
}

func toWireStatus(s enumerator.ServiceStatus) ServiceStatus {
	if v, ok := wireStatus[s]; ok {
		return v
	}
	return StatusUnknown
}

func toWireStartup(t enumerator.StartupType) StartupType {
	if v, ok := wireStartup[t]; ok {
		return v
	}
	return StartupUnknown
}
