package ffi

import "unsafe"

// GoString copies the NUL-terminated string at ptr into Go memory.
// A zero ptr yields the empty string.
//
// ptr is reinterpreted in place, not converted from uintptr: checkptr rejects
// that conversion when ptr points into the Go heap.
func GoString(ptr uintptr) string {
	if ptr == 0 {
		return ""
	}
	p := *(*unsafe.Pointer)(unsafe.Pointer(&ptr))
	n := 0
	for *(*byte)(unsafe.Add(p, n)) != 0 {
		n++
	}
	return string(unsafe.Slice((*byte)(p), n))
}

// CString returns s as a NUL-terminated buffer on the Go heap.
func CString(s string) []byte {
	b := make([]byte, len(s)+1)
	copy(b, s)
	return b
}
