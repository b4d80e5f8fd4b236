//go:build windows

package ffi

import (
	"fmt"

	"github.com/ebitengine/purego"
	"golang.org/x/sys/windows"
)

// dllModule is a library opened with LoadLibrary.
type dllModule struct {
	dll *windows.DLL
	crt *windows.DLL
}

// openLibrary loads a dynamic library on Windows
func openLibrary(path string) (Module, error) {
	dll, err := windows.LoadDLL(path)
	if err != nil {
		return nil, fmt.Errorf("LoadDLL failed: %w", err)
	}
	return &dllModule{dll: dll}, nil
}

func (m *dllModule) Lookup(name string) (uintptr, error) {
	proc, err := m.dll.FindProc(name)
	if err != nil {
		return 0, fmt.Errorf("FindProc(%s) failed: %w", name, err)
	}
	return proc.Addr(), nil
}

func (m *dllModule) Invoke(fn uintptr, args ...uintptr) uintptr {
	r1, _, _ := purego.SyscallN(fn, args...)
	return r1
}

// SystemFree resolves free from the C runtime the module's strings come from.
func (m *dllModule) SystemFree() (uintptr, error) {
	if m.crt == nil {
		crt, err := windows.LoadDLL("msvcrt.dll")
		if err != nil {
			return 0, fmt.Errorf("LoadDLL(msvcrt.dll) failed: %w", err)
		}
		m.crt = crt
	}
	proc, err := m.crt.FindProc("free")
	if err != nil {
		return 0, fmt.Errorf("FindProc(free) failed: %w", err)
	}
	return proc.Addr(), nil
}

func (m *dllModule) Close() error {
	if m.crt != nil {
		_ = m.crt.Release()
		m.crt = nil
	}
	return m.dll.Release()
}
