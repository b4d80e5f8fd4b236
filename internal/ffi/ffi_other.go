//go:build !darwin && !linux && !freebsd && !windows

package ffi

import (
	"fmt"
	"runtime"
)

func openLibrary(path string) (Module, error) {
	return nil, fmt.Errorf("dynamic modules are not supported on %s", runtime.GOOS)
}
