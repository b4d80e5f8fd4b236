// Package ffitest provides an in-process stand-in for a native module.
//
// Exports are Go functions registered under synthetic symbol addresses. The
// binding drives them through the same Lookup and Invoke path it uses for a
// real library, so argument lowering, result lifting and string release all
// run unchanged. String results are allocated outside the Go heap, as a
// real module's would be, and tracked until they come back through the
// fake's deallocator, which lets tests assert that every allocation is
// released exactly once.
package ffitest

import (
	"errors"
	"fmt"
	"sync"
	"unsafe"

	"github.com/agiangrant/gobridge/internal/ffi"
)

// Args are the raw argument registers of one invocation.
type Args []uintptr

// String reads argument n as a C string.
func (a Args) String(n int) string { return ffi.GoString(a[n]) }

// Int reads argument n as an int64.
func (a Args) Int(n int) int64 { return int64(a[n]) }

// Bool reads argument n as a one-byte bool.
func (a Args) Bool(n int) bool { return byte(a[n]) != 0 }

// Module is a fake native module. The zero value is not usable; call
// NewModule.
type Module struct {
	mu       sync.Mutex
	next     uintptr
	exports  map[string]uintptr
	funcs    map[uintptr]func(Args) uintptr
	names    map[uintptr]string
	live     map[uintptr][]byte
	freeAddr uintptr
	noFree   bool
	closed   bool
	closeErr error

	lookups  map[string]int
	calls    map[string]int
	allocs   int
	frees    int
	badFrees int
}

const freeName = "free"

// NewModule returns an empty fake module with a working system deallocator.
func NewModule() *Module {
	m := &Module{
		next:    0x1000,
		exports: make(map[string]uintptr),
		funcs:   make(map[uintptr]func(Args) uintptr),
		names:   make(map[uintptr]string),
		live:    make(map[uintptr][]byte),
		lookups: make(map[string]int),
		calls:   make(map[string]int),
	}
	m.freeAddr = m.register(freeName, m.release)
	return m
}

func (m *Module) register(name string, fn func(Args) uintptr) uintptr {
	m.next += 0x10
	addr := m.next
	m.funcs[addr] = fn
	m.names[addr] = name
	return addr
}

// Define exports fn under name.
func (m *Module) Define(name string, fn func(Args) uintptr) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.exports[name] = m.register(name, fn)
}

// DefineString exports a function returning a module-allocated string.
func (m *Module) DefineString(name string, fn func(Args) string) {
	m.Define(name, func(a Args) uintptr { return m.Alloc(fn(a)) })
}

// DefineNull exports a string function that returns a null pointer.
func (m *Module) DefineNull(name string) {
	m.Define(name, func(Args) uintptr { return 0 })
}

// DefineVoid exports a function without a result.
func (m *Module) DefineVoid(name string, fn func(Args)) {
	m.Define(name, func(a Args) uintptr {
		fn(a)
		return 0
	})
}

// DefineBool exports a function returning a one-byte bool. The upper bits of
// the result register are set to garbage.
func (m *Module) DefineBool(name string, fn func(Args) bool) {
	m.Define(name, func(a Args) uintptr {
		if fn(a) {
			return 0xABCD01
		}
		return 0xABCD00
	})
}

// DefineInt exports a function returning an int64.
func (m *Module) DefineInt(name string, fn func(Args) int64) {
	m.Define(name, func(a Args) uintptr { return uintptr(fn(a)) })
}

// ExportFree makes the deallocator visible under name, for modules that
// export their own.
func (m *Module) ExportFree(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.exports[name] = m.freeAddr
}

// WithoutSystemFree makes SystemFree fail.
func (m *Module) WithoutSystemFree() *Module {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.noFree = true
	return m
}

// FailClose makes Close return err.
func (m *Module) FailClose(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closeErr = err
}

// Alloc copies s into a module-owned NUL-terminated buffer outside the Go
// heap. It panics if the memory cannot be mapped.
func (m *Module) Alloc(s string) uintptr {
	buf, err := allocText(s)
	if err != nil {
		panic(fmt.Sprintf("ffitest: alloc %d bytes: %v", len(s)+1, err))
	}
	addr := addrOf(buf)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.live[addr] = buf
	m.allocs++
	return addr
}

func addrOf(b []byte) uintptr {
	return uintptr(unsafe.Pointer(&b[0]))
}

func (m *Module) release(a Args) uintptr {
	m.mu.Lock()
	defer m.mu.Unlock()
	if buf, ok := m.live[a[0]]; ok {
		delete(m.live, a[0])
		m.frees++
		if err := freeText(buf); err != nil {
			panic(fmt.Sprintf("ffitest: release %#x: %v", a[0], err))
		}
	} else {
		m.badFrees++
	}
	return 0
}

// Lookup implements ffi.Module.
func (m *Module) Lookup(name string) (uintptr, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lookups[name]++
	if m.closed {
		return 0, errors.New("ffitest: module closed")
	}
	addr, ok := m.exports[name]
	if !ok {
		return 0, fmt.Errorf("ffitest: symbol %s not found", name)
	}
	return addr, nil
}

// Invoke implements ffi.Module. Invoking after Close or through an address
// the module never handed out panics, as a dangling call into a real library
// would crash.
func (m *Module) Invoke(fn uintptr, args ...uintptr) uintptr {
	m.mu.Lock()
	f, ok := m.funcs[fn]
	closed := m.closed
	if ok {
		m.calls[m.names[fn]]++
	}
	m.mu.Unlock()

	if closed {
		panic("ffitest: invoke after close")
	}
	if !ok {
		panic(fmt.Sprintf("ffitest: invoke of unknown address %#x", fn))
	}
	return f(Args(args))
}

// SystemFree implements ffi.Module.
func (m *Module) SystemFree() (uintptr, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.noFree {
		return 0, errors.New("ffitest: no system allocator")
	}
	return m.freeAddr, nil
}

// Close implements ffi.Module.
func (m *Module) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return m.closeErr
}

// Closed reports whether the module was unloaded.
func (m *Module) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// Lookups returns how often name was resolved.
func (m *Module) Lookups(name string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lookups[name]
}

// Calls returns how often the export name was invoked.
func (m *Module) Calls(name string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[name]
}

// TotalCalls returns the number of export invocations, deallocator excluded.
func (m *Module) TotalCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for name, c := range m.calls {
		if name != freeName {
			n += c
		}
	}
	return n
}

// Allocs returns the number of strings handed out.
func (m *Module) Allocs() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.allocs
}

// Frees returns the number of strings released.
func (m *Module) Frees() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.frees
}

// BadFrees returns releases of pointers that were not live: double frees and
// frees of foreign memory.
func (m *Module) BadFrees() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.badFrees
}

// Live returns the number of strings not yet released.
func (m *Module) Live() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.live)
}

// Loader hands out a fixed Module, or Err.
type Loader struct {
	mu     sync.Mutex
	Module *Module
	Err    error
	paths  []string
}

// NewLoader returns a loader serving m.
func NewLoader(m *Module) *Loader {
	return &Loader{Module: m}
}

// Failing returns a loader whose Open always fails with err.
func Failing(err error) *Loader {
	return &Loader{Err: err}
}

// Open implements ffi.Loader.
func (l *Loader) Open(path string) (ffi.Module, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.paths = append(l.paths, path)
	if l.Err != nil {
		return nil, l.Err
	}
	return l.Module, nil
}

// Paths returns the paths Open was called with.
func (l *Loader) Paths() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.paths...)
}
