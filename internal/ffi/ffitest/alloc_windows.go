//go:build windows

package ffitest

import (
	"unsafe"

	"golang.org/x/sys/windows"
)

// allocText commits a private region holding s and a NUL terminator.
func allocText(s string) ([]byte, error) {
	n := uintptr(len(s) + 1)
	addr, err := windows.VirtualAlloc(0, n, windows.MEM_COMMIT|windows.MEM_RESERVE, windows.PAGE_READWRITE)
	if err != nil {
		return nil, err
	}
	b := unsafe.Slice((*byte)(*(*unsafe.Pointer)(unsafe.Pointer(&addr))), n)
	copy(b, s)
	return b, nil
}

func freeText(b []byte) error {
	return windows.VirtualFree(uintptr(unsafe.Pointer(&b[0])), 0, windows.MEM_RELEASE)
}
