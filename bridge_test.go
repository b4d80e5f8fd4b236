package gobridge

import (
	"encoding/json"
	"errors"
	"math"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/agiangrant/gobridge/internal/ffi"
	"github.com/agiangrant/gobridge/internal/ffi/ffitest"
)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Module.Path = "libgobackend.so"
	cfg.Module.VerifyExports = false
	return cfg
}

func newBridge(t *testing.T, m *ffitest.Module, opts ...Option) *Bridge {
	t.Helper()
	opts = append([]Option{WithLoader(ffitest.NewLoader(m)), WithPlatform(PlatformWindows)}, opts...)
	b := New(testConfig(), opts...)
	require.Equal(t, ffi.StateLoaded, b.ModuleState(), "load error: %v", b.LoadErr())
	t.Cleanup(func() { _ = b.Close() })
	return b
}

func call(method string, args any) MethodCall {
	return MethodCall{Method: method, Args: args}
}

func TestHandleBackend_IntegerDefaults(t *testing.T) {
	m := ffitest.NewModule()
	var got []int64
	m.DefineString("SearchSpotify", func(a ffitest.Args) string {
		got = append(got, a.Int(1))
		return "[]"
	})
	m.DefineString("SearchSpotifyAll", func(a ffitest.Args) string {
		got = append(got, a.Int(1), a.Int(2))
		return "{}"
	})
	b := newBridge(t, m)

	resp := b.HandleBackend(call("searchSpotify", map[string]any{"query": "x"}))
	assert.Equal(t, Success("[]"), resp)

	resp = b.HandleBackend(call("searchSpotifyAll", map[string]any{"query": "x", "track_limit": int32(10)}))
	assert.Equal(t, Success("{}"), resp)

	assert.Equal(t, []int64{10, 10, 3}, got)
}

func TestHandleBackend_WrongKindUsesDefault(t *testing.T) {
	m := ffitest.NewModule()
	var got string
	m.DefineString("ParseSpotifyURL", func(a ffitest.Args) string {
		got = a.String(0)
		return `{"type":"unknown"}`
	})
	b := newBridge(t, m)

	resp := b.HandleBackend(call("parseSpotifyUrl", map[string]any{"url": true}))
	assert.Equal(t, StatusSuccess, resp.Status)
	assert.Equal(t, "", got)
}

func TestHandleBackend_ExportNotFound(t *testing.T) {
	m := ffitest.NewModule()
	m.DefineString("SanitizeFilename", func(a ffitest.Args) string { return a.String(0) + "_" })
	b := newBridge(t, m)

	resp := b.HandleBackend(call("searchSpotify", map[string]any{"query": "x"}))
	assert.Equal(t, StatusError, resp.Status)
	assert.Equal(t, "EXPORT_NOT_FOUND", resp.Code)
	assert.True(t, strings.HasPrefix(resp.Message, "function not found: SearchSpotify"), resp.Message)

	resp = b.HandleBackend(call("sanitizeFilename", map[string]any{"filename": "a:b"}))
	assert.Equal(t, Success("a:b_"), resp)
	assert.Equal(t, ffi.StateLoaded, b.ModuleState())

	resp = b.HandleBackend(call("searchSpotify", map[string]any{"query": "x"}))
	assert.Equal(t, "EXPORT_NOT_FOUND", resp.Code)
	assert.Equal(t, m.Allocs(), m.Frees())
}

func TestHandleBackend_ModuleNotLoaded(t *testing.T) {
	b := New(testConfig(), WithLoader(ffitest.Failing(errors.New("image not found"))), WithPlatform(PlatformWindows))
	defer b.Close()

	assert.Equal(t, ffi.StateUnloaded, b.ModuleState())
	assert.ErrorIs(t, b.LoadErr(), ErrModuleLoad)

	for _, info := range Methods() {
		var a any = map[string]any{}
		if strings.HasPrefix(info.Method, "download") && info.Method != "downloadStoreExtension" {
			a = "{}"
		}
		resp := b.HandleBackend(call(info.Method, a))
		assert.Equal(t, StatusError, resp.Status, info.Method)
		assert.Equal(t, "BACKEND_UNAVAILABLE", resp.Code, info.Method)
		assert.Contains(t, resp.Message, "image not found", info.Method)
	}
}

func TestHandleBackend_RawText(t *testing.T) {
	m := ffitest.NewModule()
	var got []string
	for _, export := range []string{"DownloadTrack", "DownloadWithFallback", "DownloadWithExtensionsJSON"} {
		m.DefineString(export, func(a ffitest.Args) string {
			got = append(got, a.String(0))
			return `{"success":true}`
		})
	}
	b := newBridge(t, m)
	before := m.Lookups("DownloadTrack")

	for _, method := range []string{"downloadTrack", "downloadWithFallback", "downloadWithExtensions"} {
		t.Run(method, func(t *testing.T) {
			resp := b.HandleBackend(call(method, map[string]any{"isrc": "X"}))
			assert.Equal(t, Response{Status: StatusError, Code: "INVALID_ARGUMENT", Message: "Expected JSON string"}, resp)

			resp = b.HandleBackend(call(method, nil))
			assert.Equal(t, "INVALID_ARGUMENT", resp.Code)

			resp = b.HandleBackend(call(method, `{"isrc":"X"}`))
			assert.Equal(t, Success(`{"success":true}`), resp)
		})
	}

	assert.Equal(t, []string{`{"isrc":"X"}`, `{"isrc":"X"}`, `{"isrc":"X"}`}, got)
	assert.Equal(t, before+1, m.Lookups("DownloadTrack"), "rejected calls never resolve the export")
}

func TestHandleBackend_EmptyAsNil(t *testing.T) {
	m := ffitest.NewModule()
	pending := ""
	m.DefineString("GetExtensionPendingAuthJSON", func(ffitest.Args) string { return pending })
	m.DefineNull("GetPendingFFmpegCommandJSON")
	b := newBridge(t, m)

	resp := b.HandleBackend(call("getExtensionPendingAuth", map[string]any{"extension_id": "ext"}))
	assert.Equal(t, Success(nil), resp)

	pending = `{"auth_url":"https://example.com"}`
	resp = b.HandleBackend(call("getExtensionPendingAuth", map[string]any{"extension_id": "ext"}))
	assert.Equal(t, Success(pending), resp)

	resp = b.HandleBackend(call("getPendingFFmpegCommand", map[string]any{"command_id": "c1"}))
	assert.Equal(t, Success(nil), resp)
}

func TestHandleBackend_Int32Results(t *testing.T) {
	m := ffitest.NewModule()
	m.DefineInt("GetTrackCacheSize", func(ffitest.Args) int64 { return 42 })
	m.DefineInt("GetLogCount", func(ffitest.Args) int64 { return 1 << 40 })
	b := newBridge(t, m)

	assert.Equal(t, Success(int32(42)), b.HandleBackend(call("getTrackCacheSize", nil)))
	assert.Equal(t, Success(int32(math.MaxInt32)), b.HandleBackend(call("getLogCount", nil)))
}

func TestHandleBackend_BoolResult(t *testing.T) {
	m := ffitest.NewModule()
	m.DefineBool("CheckSpotifyCredentials", func(ffitest.Args) bool { return true })
	b := newBridge(t, m)

	assert.Equal(t, Success(true), b.HandleBackend(call("hasSpotifyCredentials", nil)))
}

func TestHandleBackend_ArgumentPlans(t *testing.T) {
	m := ffitest.NewModule()
	var (
		tokens []any
		proxy  []any
		store  string
	)
	m.DefineVoid("SetExtensionTokensByID", func(a ffitest.Args) {
		tokens = []any{a.String(0), a.String(1), a.String(2), a.Int(3), a.Int(4)}
	})
	m.DefineVoid("SetProxyConfigJSON", func(a ffitest.Args) {
		proxy = []any{a.String(0), a.String(1), a.String(2), a.Int(3), a.Int(4)}
	})
	m.DefineString("GetStoreExtensionsJSON", func(a ffitest.Args) string {
		store = a.String(0)
		return "[]"
	})
	b := newBridge(t, m)

	resp := b.HandleBackend(call("setExtensionTokens", map[string]any{
		"extension_id":  "spotify-web",
		"access_token":  "at",
		"refresh_token": "rt",
		"expires_in":    int64(3600),
	}))
	assert.Equal(t, Success(nil), resp)
	assert.Equal(t, []any{"spotify-web", "at", "rt", int64(3600), int64(0)}, tokens)

	resp = b.HandleBackend(call("setProxyConfig", map[string]any{
		"proxy_type": "socks5",
		"host":       "10.0.0.1",
		"port":       1080,
		"username":   "u",
		"password":   "p",
	}))
	assert.Equal(t, Success(nil), resp)
	assert.Equal(t, []any{"socks5", "10.0.0.1", "u", int64(1080), int64(0)}, proxy)

	b.HandleBackend(call("getStoreExtensions", map[string]any{"force_refresh": true}))
	assert.Equal(t, "true", store)
	b.HandleBackend(call("getStoreExtensions", nil))
	assert.Equal(t, "false", store)
}

func TestHandleBackend_UnknownMethod(t *testing.T) {
	m := ffitest.NewModule()
	b := newBridge(t, m)

	resp := b.HandleBackend(call("noSuchMethod", map[string]any{}))
	assert.Equal(t, NotImplemented(), resp)
	assert.Zero(t, m.Lookups("noSuchMethod"))
}

func TestHandleBackend_ServiceStubs(t *testing.T) {
	m := ffitest.NewModule()
	b := newBridge(t, m)

	assert.Equal(t, Success(nil), b.HandleBackend(call("startDownloadService", nil)))
	assert.Equal(t, Success(nil), b.HandleBackend(call("stopDownloadService", nil)))
	assert.Equal(t, Success(nil), b.HandleBackend(call("updateDownloadServiceProgress", map[string]any{"progress": 5})))
	assert.Equal(t, Success(false), b.HandleBackend(call("isDownloadServiceRunning", nil)))
	assert.Zero(t, m.TotalCalls())

	android := newBridge(t, ffitest.NewModule(), WithPlatform(PlatformAndroid))
	assert.Equal(t, NotImplemented(), android.HandleBackend(call("isDownloadServiceRunning", nil)))
}

func TestHandleBackend_PanicBecomesNativeFailure(t *testing.T) {
	m := ffitest.NewModule()
	m.DefineString("SanitizeFilename", func(ffitest.Args) string { panic("segfault") })
	b := newBridge(t, m)

	resp := b.HandleBackend(call("sanitizeFilename", map[string]any{"filename": "a"}))
	assert.Equal(t, StatusError, resp.Status)
	assert.Equal(t, "NATIVE_FAILURE", resp.Code)
	assert.Contains(t, resp.Message, "segfault")

	// the binding is still usable
	m.DefineString("SanitizeFilename", func(a ffitest.Args) string { return a.String(0) })
	assert.Equal(t, Success("a"), b.HandleBackend(call("sanitizeFilename", map[string]any{"filename": "a"})))
}

func TestHandleBackend_AfterClose(t *testing.T) {
	m := ffitest.NewModule()
	m.DefineVoid("ClearLogs", func(ffitest.Args) {})
	b := newBridge(t, m)

	require.NoError(t, b.Close())
	resp := b.HandleBackend(call("clearLogs", nil))
	assert.Equal(t, "BACKEND_UNAVAILABLE", resp.Code)
	assert.Zero(t, m.TotalCalls())
}

// defineAll exports every routed function with a result of the right kind.
func defineAll(m *ffitest.Module) {
	for _, r := range routeTable() {
		sig, _ := r.shape.Signature()
		export := r.export
		switch sig.Result {
		case ffi.KindString:
			m.DefineString(export, func(ffitest.Args) string { return "ok:" + export })
		case ffi.KindBool:
			m.DefineBool(export, func(ffitest.Args) bool { return true })
		case ffi.KindInt:
			m.DefineInt(export, func(ffitest.Args) int64 { return 7 })
		default:
			m.DefineVoid(export, func(ffitest.Args) {})
		}
	}
}

func TestHandleBackend_EveryMethod(t *testing.T) {
	m := ffitest.NewModule()
	defineAll(m)
	b := newBridge(t, m)

	missing, err := b.MissingExports()
	require.NoError(t, err)
	assert.Empty(t, missing)

	for method, r := range routeTable() {
		t.Run(method, func(t *testing.T) {
			var a any = map[string]any{}
			if len(r.params) > 0 && r.params[0].key == "" && r.params[0].kind == ffi.KindString {
				a = "{}"
			}
			before := m.Calls(r.export)
			resp := b.HandleBackend(call(method, a))
			assert.Equal(t, StatusSuccess, resp.Status, resp.Message)
			assert.Equal(t, before+1, m.Calls(r.export))
		})
	}

	assert.Equal(t, m.Allocs(), m.Frees())
	assert.Zero(t, m.BadFrees())
	assert.Zero(t, m.Live())
}

func TestHandleBackend_Concurrent(t *testing.T) {
	m := ffitest.NewModule()
	defineAll(m)
	b := newBridge(t, m)

	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 20 {
				resp := b.HandleBackend(call("checkDuplicate", map[string]any{"output_dir": "/music", "isrc": "X"}))
				assert.Equal(t, Success("ok:CheckDuplicate"), resp)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 320, m.Frees())
	assert.Zero(t, m.Live())
}

func TestHandleAudio(t *testing.T) {
	m := ffitest.NewModule()
	b := newBridge(t, m)

	resp := b.HandleAudio(call("execute", map[string]any{"command": "-i in.flac out.mp3"}))
	assert.Equal(t, Success(map[string]any{
		"success":    false,
		"returnCode": int32(-1),
		"output":     "FFmpeg is not yet implemented on Windows. Please use the extension system for audio conversion.",
	}), resp)

	resp = b.HandleAudio(call("getVersion", nil))
	assert.Equal(t, Success("FFmpeg not available on Windows"), resp)

	assert.Equal(t, NotImplemented(), b.HandleAudio(call("cancel", nil)))
	assert.Zero(t, m.TotalCalls())
	assert.Zero(t, m.Lookups("execute"))

	mobile := newBridge(t, ffitest.NewModule(), WithPlatform(PlatformIOS))
	assert.Equal(t, NotImplemented(), mobile.HandleAudio(call("getVersion", nil)))

	linux := newBridge(t, ffitest.NewModule(), WithPlatform(PlatformLinux))
	assert.Equal(t, Success("FFmpeg not available on Linux"), linux.HandleAudio(call("getVersion", nil)))
}

func TestDispatch(t *testing.T) {
	m := ffitest.NewModule()
	defineAll(m)
	b := newBridge(t, m)
	backend, audio := b.Channels()

	assert.Equal(t, Success("ok:GetLogs"), b.Dispatch(backend, call("getLogs", nil)))
	assert.Equal(t, Success("FFmpeg not available on Windows"), b.Dispatch(audio, call("getVersion", nil)))
	assert.Equal(t, NotImplemented(), b.Dispatch("com.example/other", call("getLogs", nil)))
}

func TestWithCapabilities(t *testing.T) {
	b := newBridge(t, ffitest.NewModule(), WithCapabilities(Capabilities{ForegroundService: true}))
	assert.Equal(t, NotImplemented(), b.HandleBackend(call("startDownloadService", nil)))
	assert.Equal(t, Success("FFmpeg not available on Windows"), b.HandleAudio(call("getVersion", nil)))
}

func TestResponse_JSON(t *testing.T) {
	tests := []struct {
		name string
		resp Response
		want string
	}{
		{"success", Success("x"), `{"status":"success","result":"x"}`},
		{"nil success", Success(nil), `{"status":"success","result":null}`},
		{"error", Response{Status: StatusError, Code: "EXPORT_NOT_FOUND", Message: "function not found: X"},
			`{"status":"error","result":null,"code":"EXPORT_NOT_FOUND","message":"function not found: X"}`},
		{"not implemented", NotImplemented(), `{"status":"not_implemented","result":null}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(tt.resp)
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(data))

			var back Response
			require.NoError(t, json.Unmarshal(data, &back))
			assert.Equal(t, tt.resp.Status, back.Status)
		})
	}
}

func TestNew_StartupWarnings(t *testing.T) {
	m := ffitest.NewModule()
	m.DefineString("ParseSpotifyURL", func(ffitest.Args) string { return "{}" })

	core, logs := observer.New(zapcore.WarnLevel)
	cfg := testConfig()
	cfg.Module.VerifyExports = true
	b := New(cfg, WithLoader(ffitest.NewLoader(m)), WithPlatform(PlatformLinux), WithLogger(zap.New(core)))
	defer b.Close()

	missing := logs.FilterMessage("bridge: module does not export routed function")
	assert.Equal(t, len(Exports())-1, missing.Len())
	for _, e := range missing.All() {
		assert.NotEqual(t, "ParseSpotifyURL", e.ContextMap()["export"])
	}

	var partial int
	for _, info := range Methods() {
		if len(info.Unforwarded) > 0 {
			partial++
		}
	}
	assert.Equal(t, 5, partial)
	assert.Equal(t, partial, logs.FilterMessage("bridge: export does not receive every method argument").Len())

	got, err := b.MissingExports()
	require.NoError(t, err)
	assert.Len(t, got, len(Exports())-1)
	assert.NotContains(t, got, "ParseSpotifyURL")
}

func TestNew_BindingLogsUnderFFI(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	b := New(testConfig(), WithLoader(ffitest.NewLoader(ffitest.NewModule())), WithPlatform(PlatformLinux), WithLogger(zap.New(core)))
	require.NoError(t, b.Close())

	loaded := logs.FilterMessage("ffi: module loaded").All()
	require.Len(t, loaded, 1)
	assert.Equal(t, "ffi", loaded[0].LoggerName)

	ready := logs.FilterMessage("bridge: ready").All()
	require.Len(t, ready, 1)
	assert.Empty(t, ready[0].LoggerName)
}
