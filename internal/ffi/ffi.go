// Package ffi binds a dynamically loaded native module and calls its exports
// through a closed catalogue of call shapes.
//
// Loading uses purego on Unix-like systems and LoadLibrary on Windows, so no
// cgo is required. A Binding owns exactly one module handle; every call
// resolves its export by name against that handle, lowers Go values into the
// export's native calling convention, and copies string results back into Go
// memory before releasing the module's allocation.
//
// The method router goes through the generic Binding.Call, which checks its
// values against the shape's Signature. The typed adapters in shapes.go and
// Resolve are for callers that bind individual exports directly.
package ffi

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"unsafe"

	"go.uber.org/zap"

	"github.com/agiangrant/gobridge/internal/bridgeerr"
)

var logger atomic.Pointer[zap.Logger]

// Logger returns the package logger used by bindings opened without
// WithLogger. It is a no-op logger by default.
func Logger() *zap.Logger {
	if l := logger.Load(); l != nil {
		return l
	}
	return zap.NewNop()
}

// SetLogger configures the package logger. Bindings already open keep the
// logger they were opened with.
func SetLogger(l *zap.Logger) {
	logger.Store(l)
}

// State is the lifecycle state of a Binding.
type State int32

const (
	StateUnloaded State = iota
	StateLoaded
)

func (s State) String() string {
	if s == StateLoaded {
		return "loaded"
	}
	return "unloaded"
}

var errUnloaded = errors.New("module was unloaded")

// Binding owns one loaded native module.
//
// Calls hold the read side of mu for the duration of one native invocation;
// Close takes the write side, so teardown waits for in-flight calls and
// every later call observes StateUnloaded.
type Binding struct {
	mu      sync.RWMutex
	state   State
	module  Module
	free    uintptr
	path    string
	loadErr error
	logger  *zap.Logger
}

type options struct {
	loader     Loader
	freeExport string
	logger     *zap.Logger
}

// Option configures Open.
type Option func(*options)

// WithLoader replaces the system loader.
func WithLoader(l Loader) Option {
	return func(o *options) { o.loader = l }
}

// WithFreeExport names the module export that releases strings the module
// returns. Without it the C allocator's free is used.
func WithFreeExport(name string) Option {
	return func(o *options) { o.freeExport = name }
}

// WithLogger sets the logger for this binding.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

// Open loads the module at path. A load failure does not fail construction:
// the binding stays unloaded, LoadErr reports why, and every call fails with
// a backend-unavailable error.
func Open(path string, opts ...Option) *Binding {
	o := options{loader: systemLoader{}}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = Logger()
	}

	b := &Binding{path: path, logger: o.logger}

	if unsafe.Sizeof(uintptr(0)) != 8 {
		b.loadErr = bridgeerr.ModuleLoad(path, errors.New("64-bit integer arguments need a 64-bit host"))
		b.logger.Error("ffi: module not loaded", zap.String("path", path), zap.Error(b.loadErr))
		return b
	}

	m, err := o.loader.Open(path)
	if err != nil {
		b.loadErr = bridgeerr.ModuleLoad(path, err)
		b.logger.Error("ffi: module not loaded", zap.String("path", path), zap.Error(err))
		return b
	}

	free, err := resolveFree(m, o.freeExport)
	if err != nil {
		if closeErr := m.Close(); closeErr != nil {
			b.logger.Warn("ffi: close after failed load", zap.String("path", path), zap.Error(closeErr))
		}
		b.loadErr = bridgeerr.ModuleLoad(path, err)
		b.logger.Error("ffi: module not loaded", zap.String("path", path), zap.Error(err))
		return b
	}

	b.module = m
	b.free = free
	b.state = StateLoaded
	b.logger.Info("ffi: module loaded", zap.String("path", path))
	return b
}

func resolveFree(m Module, export string) (uintptr, error) {
	if export != "" {
		addr, err := m.Lookup(export)
		if err != nil {
			return 0, fmt.Errorf("deallocator %s: %w", export, err)
		}
		return addr, nil
	}
	addr, err := m.SystemFree()
	if err != nil {
		return 0, fmt.Errorf("system deallocator: %w", err)
	}
	return addr, nil
}

// Path returns the path the binding was opened with.
func (b *Binding) Path() string {
	return b.path
}

// State returns the current lifecycle state.
func (b *Binding) State() State {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.state
}

// LoadErr returns the error that kept the module from loading, if any.
func (b *Binding) LoadErr() error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.loadErr
}

// Close unloads the module. It is idempotent and safe on a binding whose
// load failed.
func (b *Binding) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state != StateLoaded {
		return nil
	}
	m := b.module
	b.state = StateUnloaded
	b.module = nil
	b.free = 0
	b.loadErr = errUnloaded

	if err := m.Close(); err != nil {
		return fmt.Errorf("unload %s: %w", b.path, err)
	}
	b.logger.Info("ffi: module unloaded", zap.String("path", b.path))
	return nil
}

// Missing returns the names the loaded module does not export.
func (b *Binding) Missing(names []string) ([]string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.state != StateLoaded {
		return nil, bridgeerr.Unavailable("", b.loadErr)
	}
	var missing []string
	for _, name := range names {
		if _, err := b.module.Lookup(name); err != nil {
			missing = append(missing, name)
		}
	}
	return missing, nil
}

// Func is an export paired with the shape it is called through.
type Func struct {
	b      *Binding
	export string
	shape  Shape
}

// Resolve checks that export is present and returns a Func for it. The
// symbol is looked up again on every call, so a Func never outlives the
// module it was resolved from.
func (b *Binding) Resolve(export string, shape Shape) (Func, error) {
	if _, ok := shape.Signature(); !ok {
		return Func{}, bridgeerr.InvalidArgument("unknown call shape %d", shape)
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.state != StateLoaded {
		return Func{}, bridgeerr.Unavailable(export, b.loadErr)
	}
	if _, err := b.module.Lookup(export); err != nil {
		return Func{}, bridgeerr.ExportNotFound(export, err)
	}
	return Func{b: b, export: export, shape: shape}, nil
}

// Name returns the export name.
func (f Func) Name() string { return f.export }

// Shape returns the call shape.
func (f Func) Shape() Shape { return f.shape }

// Call invokes the export with values.
func (f Func) Call(values ...any) (Result, error) {
	return f.b.Call(f.export, f.shape, values...)
}
