//go:build unix

package ffitest

import "golang.org/x/sys/unix"

// allocText maps an anonymous region holding s and a NUL terminator.
func allocText(s string) ([]byte, error) {
	b, err := unix.Mmap(-1, 0, len(s)+1, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, err
	}
	copy(b, s)
	return b, nil
}

func freeText(b []byte) error {
	return unix.Munmap(b)
}
