//go:build !windows

package winsvc

import (
	"context"
	"errors"

	"github.com/go-tangra/go-tangra-sysinfo/internal/logging"
)

var errUnsupported = errors.New("windows services are not supported on this platform")

// IsWindowsService always returns false on non-Windows platforms.
func IsWindowsService() bool { return false }

// RunService is not supported on non-Windows platforms.
func RunService(_ string, _ func(ctx context.Context) error) error {
	return errUnsupported
}

// EventLog is not supported on non-Windows platforms.
func EventLog(_ string) (logging.Sink, error) {
	return nil, errUnsupported
}

// Install is not supported on non-Windows platforms.
func Install(_ Spec) error {
	return errUnsupported
}

// Uninstall is not supported on non-Windows platforms.
func Uninstall(_ string) error {
	return errUnsupported
}
