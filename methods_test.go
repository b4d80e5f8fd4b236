package gobridge

import (
	"math"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/agiangrant/gobridge/internal/ffi"
)

func TestMethodTableIsValid(t *testing.T) {
	assert.NotPanics(t, func() { mustRoutes(backendMethods()) })
}

func TestMustRoutes_Rejects(t *testing.T) {
	tests := []struct {
		name  string
		route route
	}{
		{"arity", route{method: "m", export: "E", shape: ffi.StringIntToString, params: []param{str("a")}}},
		{"kind", route{method: "m", export: "E", shape: ffi.StringIntToString, params: []param{str("a"), str("b")}}},
		{"unknown shape", route{method: "m", export: "E", shape: ffi.Shape(0)}},
		{"no export", route{method: "m", shape: ffi.Void}},
		{"int32 on string", route{method: "m", export: "E", shape: ffi.StringToString, params: []param{str("a")}, convert: toInt32}},
		{"empty-as-nil on bool", route{method: "m", export: "E", shape: ffi.VoidToBool, convert: emptyAsNil}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Panics(t, func() { mustRoutes([]route{tt.route}) })
		})
	}

	assert.Panics(t, func() {
		mustRoutes([]route{
			{method: "m", export: "A", shape: ffi.Void},
			{method: "m", export: "B", shape: ffi.Void},
		})
	})
}

func TestSaturateInt32(t *testing.T) {
	assert.Equal(t, int32(5), saturateInt32(5))
	assert.Equal(t, int32(-5), saturateInt32(-5))
	assert.Equal(t, int32(math.MaxInt32), saturateInt32(math.MaxInt32+1))
	assert.Equal(t, int32(math.MinInt32), saturateInt32(math.MinInt64))
}

func TestMethods(t *testing.T) {
	methods := Methods()
	assert.Len(t, methods, len(backendMethods()))
	assert.True(t, sort.SliceIsSorted(methods, func(i, j int) bool { return methods[i].Method < methods[j].Method }))

	byName := make(map[string]MethodInfo, len(methods))
	for _, m := range methods {
		byName[m.Method] = m
	}

	assert.Equal(t, MethodInfo{
		Method: "searchSpotifyAll",
		Export: "SearchSpotifyAll",
		Shape:  "(string, int64, int64) -> string",
		Keys:   []string{"query", "track_limit", "artist_limit"},
	}, byName["searchSpotifyAll"])

	unforwarded := map[string][]string{}
	for _, m := range methods {
		if len(m.Unforwarded) > 0 {
			unforwarded[m.Method] = m.Unforwarded
		}
	}
	assert.Equal(t, map[string][]string{
		"fetchLyrics":              {"track_name", "artist_name"},
		"getLyricsLRC":             {"track_name", "artist_name", "file_path", "duration_ms"},
		"isExtensionAuthenticated": {"extension_id"},
		"setFFmpegCommandResult":   {"success", "output", "error"},
		"setProxyConfig":           {"password"},
	}, unforwarded)

	for stub := range serviceStubs {
		assert.NotContains(t, byName, stub)
	}
}

func TestExports(t *testing.T) {
	exports := Exports()
	assert.True(t, sort.StringsAreSorted(exports))
	assert.Contains(t, exports, "GetSpotifyMetadataWithDeezerFallback")
	assert.Contains(t, exports, "ClearTrackIDCache")
	assert.Len(t, exports, len(backendMethods()))
}
