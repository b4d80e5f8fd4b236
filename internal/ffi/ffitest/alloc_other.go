//go:build !unix && !windows

package ffitest

import "github.com/agiangrant/gobridge/internal/ffi"

func allocText(s string) ([]byte, error) {
	return ffi.CString(s), nil
}

func freeText([]byte) error { return nil }
