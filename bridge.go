// Package gobridge routes named method calls to the exports of a dynamically
// loaded native module.
//
// A frontend sends a MethodCall on one of two channels. The backend channel
// serves the full method catalogue: each method name maps to one export, a
// call shape and an argument plan that reads the call's argument bag. The
// audio channel serves a small FFmpeg sub-API that most platforms stub out.
//
//	cfg, _ := gobridge.LoadConfig("")
//	b := gobridge.New(cfg, gobridge.WithLogger(logger))
//	defer b.Close()
//
//	resp := b.HandleBackend(gobridge.MethodCall{
//		Method: "searchSpotify",
//		Args:   map[string]any{"query": "daft punk", "limit": 5},
//	})
//
// Failures never escape as panics. They come back as a Response with
// StatusError, a machine-readable code and a message.
package gobridge

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/agiangrant/gobridge/internal/bridgeerr"
	"github.com/agiangrant/gobridge/internal/ffi"
)

// MethodCall is one inbound request.
type MethodCall struct {
	// ID correlates the call in logs. Optional.
	ID     string
	Method string
	// Args is the argument bag (map[string]any), raw text for methods that
	// take a serialized request, or nil.
	Args any
}

// Status is the outcome of a call.
type Status uint8

const (
	StatusSuccess Status = iota
	StatusError
	// StatusNotImplemented is a routing miss, not a call failure.
	StatusNotImplemented
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusError:
		return "error"
	case StatusNotImplemented:
		return "not_implemented"
	default:
		return fmt.Sprintf("Status(%d)", uint8(s))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Status) UnmarshalText(text []byte) error {
	switch string(text) {
	case "success":
		*s = StatusSuccess
	case "error":
		*s = StatusError
	case "not_implemented":
		*s = StatusNotImplemented
	default:
		return fmt.Errorf("unknown status %q", text)
	}
	return nil
}

// Response is the outcome of one MethodCall. Result is a string, bool,
// int32, map[string]any or nil on success. Code and Message are set on
// error.
type Response struct {
	Status  Status `json:"status"`
	Result  any    `json:"result"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

// Success returns a successful response carrying v.
func Success(v any) Response {
	return Response{Status: StatusSuccess, Result: v}
}

// Failure converts err into an error response.
func Failure(err error) Response {
	return Response{
		Status:  StatusError,
		Code:    bridgeerr.KindOf(err).Code(),
		Message: bridgeerr.MessageOf(err),
	}
}

// NotImplemented is the response for an unknown method or channel.
func NotImplemented() Response {
	return Response{Status: StatusNotImplemented}
}

// Bridge routes method calls to one native module.
type Bridge struct {
	cfg      Config
	binding  *ffi.Binding
	routes   map[string]*route
	platform Platform
	caps     Capabilities
	logger   *zap.Logger
}

type bridgeOptions struct {
	logger   *zap.Logger
	loader   ffi.Loader
	platform *Platform
	caps     *Capabilities
}

// Option configures New.
type Option func(*bridgeOptions)

// WithLogger sets the bridge logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(o *bridgeOptions) { o.logger = l }
}

// WithLoader replaces the system module loader.
func WithLoader(l ffi.Loader) Option {
	return func(o *bridgeOptions) { o.loader = l }
}

// WithPlatform overrides platform detection and configuration. The
// platform's default capabilities apply unless WithCapabilities is also given.
func WithPlatform(p Platform) Option {
	return func(o *bridgeOptions) { o.platform = &p }
}

// WithCapabilities overrides the platform's capabilities.
func WithCapabilities(c Capabilities) Option {
	return func(o *bridgeOptions) { o.caps = &c }
}

// New loads the module named by cfg and returns a bridge for it. A module
// that fails to load does not fail construction: the bridge stays up and
// every backend call reports BACKEND_UNAVAILABLE.
//
// New panics if the built-in method table is inconsistent with the call
// shapes it names.
func New(cfg Config, opts ...Option) *Bridge {
	o := bridgeOptions{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}

	b := &Bridge{
		cfg:    cfg,
		routes: routeTable(),
		logger: o.logger,
	}

	platform, caps, err := cfg.Platform.Resolve()
	if err != nil {
		b.logger.Warn("bridge: ignoring platform override", zap.Error(err))
		platform = CurrentPlatform()
		caps = platform.Capabilities()
	}
	if o.platform != nil {
		platform = *o.platform
		caps = platform.Capabilities()
	}
	if o.caps != nil {
		caps = *o.caps
	}
	b.platform = platform
	b.caps = caps

	ffiOpts := []ffi.Option{ffi.WithLogger(b.logger.Named("ffi"))}
	if o.loader != nil {
		ffiOpts = append(ffiOpts, ffi.WithLoader(o.loader))
	}
	if cfg.Module.FreeExport != "" {
		ffiOpts = append(ffiOpts, ffi.WithFreeExport(cfg.Module.FreeExport))
	}
	b.binding = ffi.Open(cfg.Module.ResolvePath(), ffiOpts...)

	for _, info := range Methods() {
		if len(info.Unforwarded) > 0 {
			b.logger.Warn("bridge: export does not receive every method argument",
				zap.String("method", info.Method),
				zap.String("export", info.Export),
				zap.Strings("unforwarded", info.Unforwarded))
		}
	}

	if cfg.Module.VerifyExports && b.binding.State() == ffi.StateLoaded {
		missing, err := b.binding.Missing(Exports())
		if err != nil {
			b.logger.Warn("bridge: export verification failed", zap.Error(err))
		}
		for _, name := range missing {
			b.logger.Warn("bridge: module does not export routed function", zap.String("export", name))
		}
	}

	b.logger.Info("bridge: ready",
		zap.String("platform", string(b.platform)),
		zap.Stringer("module", b.binding.State()),
		zap.Bool("foreground_service", b.caps.ForegroundService),
		zap.Bool("audio_processor", b.caps.AudioProcessor))
	return b
}

// Close unloads the module. Calls in flight complete first; later calls
// report BACKEND_UNAVAILABLE.
func (b *Bridge) Close() error {
	return b.binding.Close()
}

// Platform returns the effective platform.
func (b *Bridge) Platform() Platform { return b.platform }

// Capabilities returns the effective platform capabilities.
func (b *Bridge) Capabilities() Capabilities { return b.caps }

// ModuleState reports whether the module is loaded.
func (b *Bridge) ModuleState() ffi.State { return b.binding.State() }

// ModulePath returns the path the module was loaded from.
func (b *Bridge) ModulePath() string { return b.binding.Path() }

// LoadErr returns why the module is not loaded, if it isn't.
func (b *Bridge) LoadErr() error { return b.binding.LoadErr() }

// MissingExports returns routed exports the loaded module lacks.
func (b *Bridge) MissingExports() ([]string, error) {
	return b.binding.Missing(Exports())
}

// Channels returns the configured backend and audio channel names.
func (b *Bridge) Channels() (backend, audio string) {
	return b.cfg.Channels.Backend, b.cfg.Channels.Audio
}

// Dispatch routes call to the handler for channel. Unknown channels are not
// implemented.
func (b *Bridge) Dispatch(channel string, call MethodCall) Response {
	switch channel {
	case b.cfg.Channels.Backend:
		return b.HandleBackend(call)
	case b.cfg.Channels.Audio:
		return b.HandleAudio(call)
	default:
		return NotImplemented()
	}
}

// HandleBackend serves one call on the backend channel.
func (b *Bridge) HandleBackend(call MethodCall) (resp Response) {
	log := b.logger.With(zap.String("method", call.Method))
	if call.ID != "" {
		log = log.With(zap.String("call_id", call.ID))
	}

	if v, ok := serviceStubs[call.Method]; ok && !b.caps.ForegroundService {
		return Success(v)
	}

	r, ok := b.routes[call.Method]
	if !ok {
		log.Debug("bridge: method not implemented")
		return NotImplemented()
	}
	log = log.With(zap.String("export", r.export))

	defer func() {
		if p := recover(); p != nil {
			err := bridgeerr.Native(r.export, fmt.Errorf("panic: %v", p))
			log.Error("bridge: native call panicked", zap.Error(err))
			resp = Failure(err)
		}
	}()

	values, err := r.extract(call.Args)
	if err != nil {
		log.Warn("bridge: bad arguments", zap.Error(err))
		return Failure(err)
	}

	result, err := b.binding.Call(r.export, r.shape, values...)
	if err != nil {
		log.Warn("bridge: call failed", zap.Stringer("shape", r.shape), zap.Error(err))
		return Failure(err)
	}

	log.Debug("bridge: call succeeded")
	return Success(r.convert.apply(result))
}

// HandleAudio serves one call on the audio channel. Without a host audio
// processor execute and getVersion answer with fixed payloads and never reach
// the module.
func (b *Bridge) HandleAudio(call MethodCall) Response {
	if b.caps.AudioProcessor {
		return NotImplemented()
	}

	name := b.platform.DisplayName()
	switch call.Method {
	case "execute":
		return Success(map[string]any{
			"success":    false,
			"returnCode": int32(-1),
			"output":     "FFmpeg is not yet implemented on " + name + ". Please use the extension system for audio conversion.",
		})
	case "getVersion":
		return Success("FFmpeg not available on " + name)
	default:
		return NotImplemented()
	}
}
