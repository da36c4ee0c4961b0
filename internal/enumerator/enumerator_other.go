//go:build !linux && !windows

package enumerator

func listPrograms() ([]Program, error) { return nil, ErrUnsupported }

func listServices(Scope) ([]Service, error) { return nil, ErrUnsupported }

func listProcesses() ([]Process, error) { return nil, ErrUnsupported }
