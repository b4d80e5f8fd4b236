//go:build darwin || linux || freebsd || ios || android

package ffi

import (
	"fmt"

	"github.com/ebitengine/purego"
)

// dlModule is a library opened with dlopen.
type dlModule struct {
	handle uintptr
}

// openLibrary loads a dynamic library on Unix-like systems. Symbols are bound
// eagerly so an incompatible library fails here rather than on first call.
func openLibrary(path string) (Module, error) {
	handle, err := purego.Dlopen(path, purego.RTLD_NOW|purego.RTLD_LOCAL)
	if err != nil {
		return nil, fmt.Errorf("dlopen failed: %w", err)
	}
	return &dlModule{handle: handle}, nil
}

func (m *dlModule) Lookup(name string) (uintptr, error) {
	return purego.Dlsym(m.handle, name)
}

func (m *dlModule) Invoke(fn uintptr, args ...uintptr) uintptr {
	r1, _, _ := purego.SyscallN(fn, args...)
	return r1
}

func (m *dlModule) SystemFree() (uintptr, error) {
	return purego.Dlsym(purego.RTLD_DEFAULT, "free")
}

func (m *dlModule) Close() error {
	return purego.Dlclose(m.handle)
}
