package ffi

import (
	"runtime"
	"unsafe"

	"go.uber.org/zap"

	"github.com/agiangrant/gobridge/internal/bridgeerr"
)

// Result is the lifted return value of one native call.
type Result struct {
	Kind Kind
	Str  string
	Int  int64
	Bool bool
}

// Value returns the result as a string, int64 or bool, or nil for void.
func (r Result) Value() any {
	switch r.Kind {
	case KindString:
		return r.Str
	case KindInt:
		return r.Int
	case KindBool:
		return r.Bool
	default:
		return nil
	}
}

// Call invokes export through shape. values must match the shape's parameter
// kinds exactly: string, int64 or bool. Mismatches are rejected before any
// native code runs.
//
// The export is resolved on every call. A string result is copied into Go
// memory and the module's allocation released exactly once; a null string
// result is the empty string.
func (b *Binding) Call(export string, shape Shape, values ...any) (Result, error) {
	sig, ok := shape.Signature()
	if !ok {
		return Result{}, bridgeerr.InvalidArgument("unknown call shape %d", shape)
	}
	if err := sig.Check(values); err != nil {
		return Result{}, bridgeerr.InvalidArgument("%s %s: %v", export, shape, err)
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.state != StateLoaded {
		return Result{}, bridgeerr.Unavailable(export, b.loadErr)
	}
	fn, err := b.module.Lookup(export)
	if err != nil {
		return Result{}, bridgeerr.ExportNotFound(export, err)
	}

	if ce := b.logger.Check(zap.DebugLevel, "ffi: call"); ce != nil {
		ce.Write(zap.String("export", export), zap.Stringer("shape", shape))
	}

	argv, keep := lower(sig.Params, values)
	r := b.module.Invoke(fn, argv...)
	runtime.KeepAlive(keep)

	res := Result{Kind: sig.Result}
	switch sig.Result {
	case KindString:
		owned := ownedString{ptr: r, module: b.module, free: b.free}
		defer owned.Release()
		res.Str = owned.String()
	case KindInt:
		res.Int = int64(r)
	case KindBool:
		res.Bool = byte(r) != 0
	}
	return res, nil
}

// lower converts checked values into argument registers. String buffers are
// returned in keep and must stay reachable until the call returns.
func lower(params []Kind, values []any) (argv []uintptr, keep [][]byte) {
	argv = make([]uintptr, len(values))
	for n, v := range values {
		switch params[n] {
		case KindString:
			buf := CString(v.(string))
			keep = append(keep, buf)
			argv[n] = uintptr(unsafe.Pointer(&buf[0]))
		case KindInt:
			argv[n] = uintptr(v.(int64))
		case KindBool:
			if v.(bool) {
				argv[n] = 1
			}
		}
	}
	return argv, keep
}

// ownedString is a string allocated by the module. Release hands it back to
// the module's deallocator and is a no-op after the first call.
type ownedString struct {
	ptr    uintptr
	module Module
	free   uintptr
}

func (o *ownedString) String() string {
	return GoString(o.ptr)
}

func (o *ownedString) Release() {
	if o.ptr == 0 {
		return
	}
	ptr := o.ptr
	o.ptr = 0
	o.module.Invoke(o.free, ptr)
}
