package gobridge

import (
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/agiangrant/gobridge/internal/args"
	"github.com/agiangrant/gobridge/internal/bridgeerr"
	"github.com/agiangrant/gobridge/internal/ffi"
)

// param produces one native argument from a call's argument bag.
type param struct {
	key     string
	kind    ffi.Kind
	extract func(v any) (any, error)
}

func str(key string) param { return strOr(key, "") }

func strOr(key, def string) param {
	return param{key: key, kind: ffi.KindString, extract: func(v any) (any, error) {
		return args.String(v, key, def), nil
	}}
}

func i64(key string, def int64) param {
	return param{key: key, kind: ffi.KindInt, extract: func(v any) (any, error) {
		return args.Int(v, key, def), nil
	}}
}

func flag(key string) param {
	return param{key: key, kind: ffi.KindBool, extract: func(v any) (any, error) {
		return args.Bool(v, key, false), nil
	}}
}

// flagText passes a boolean argument as the text "true" or "false".
func flagText(key string) param {
	return param{key: key, kind: ffi.KindString, extract: func(v any) (any, error) {
		if args.Bool(v, key, false) {
			return "true", nil
		}
		return "false", nil
	}}
}

func fixedStr(s string) param {
	return param{kind: ffi.KindString, extract: func(any) (any, error) { return s, nil }}
}

func fixedInt(n int64) param {
	return param{kind: ffi.KindInt, extract: func(any) (any, error) { return n, nil }}
}

// text requires the whole argument to be a serialized request.
func text() param {
	return param{kind: ffi.KindString, extract: func(v any) (any, error) {
		s, ok := args.Text(v)
		if !ok {
			return nil, bridgeerr.InvalidArgument("Expected JSON string")
		}
		return s, nil
	}}
}

// conversion turns a native result into the response value.
type conversion uint8

const (
	passThrough conversion = iota
	toInt32                // size and count results are 32-bit for callers
	emptyAsNil             // "nothing pending" is reported as no value
)

func (c conversion) apply(r ffi.Result) any {
	switch c {
	case toInt32:
		return saturateInt32(r.Int)
	case emptyAsNil:
		if r.Str == "" {
			return nil
		}
		return r.Str
	default:
		return r.Value()
	}
}

func saturateInt32(n int64) int32 {
	switch {
	case n > math.MaxInt32:
		return math.MaxInt32
	case n < math.MinInt32:
		return math.MinInt32
	default:
		return int32(n)
	}
}

// route maps one method name to a native export.
type route struct {
	method  string
	export  string
	shape   ffi.Shape
	params  []param
	convert conversion
	// keys the method accepts that the export has no parameter for
	unforwarded []string
}

func (r *route) extract(v any) ([]any, error) {
	values := make([]any, len(r.params))
	for n, p := range r.params {
		x, err := p.extract(v)
		if err != nil {
			return nil, err
		}
		values[n] = x
	}
	return values, nil
}

func (r *route) validate() error {
	sig, ok := r.shape.Signature()
	if !ok {
		return fmt.Errorf("%s: unknown shape %d", r.method, r.shape)
	}
	if r.export == "" {
		return fmt.Errorf("%s: no export", r.method)
	}
	if len(sig.Params) != len(r.params) {
		return fmt.Errorf("%s: shape %s takes %d arguments, plan has %d", r.method, r.shape, len(sig.Params), len(r.params))
	}
	for n, p := range r.params {
		if p.kind != sig.Params[n] {
			return fmt.Errorf("%s: argument %d (%q) is %s, shape %s wants %s", r.method, n, p.key, p.kind, r.shape, sig.Params[n])
		}
	}
	switch {
	case r.convert == toInt32 && sig.Result != ffi.KindInt:
		return fmt.Errorf("%s: int32 conversion on %s result", r.method, sig.Result)
	case r.convert == emptyAsNil && sig.Result != ffi.KindString:
		return fmt.Errorf("%s: empty-as-nil conversion on %s result", r.method, sig.Result)
	}
	return nil
}

func mustRoutes(table []route) map[string]*route {
	routes := make(map[string]*route, len(table))
	for n := range table {
		r := &table[n]
		if err := r.validate(); err != nil {
			panic("gobridge: invalid method table: " + err.Error())
		}
		if _, dup := routes[r.method]; dup {
			panic("gobridge: invalid method table: duplicate method " + r.method)
		}
		routes[r.method] = r
	}
	return routes
}

var routeTable = sync.OnceValue(func() map[string]*route {
	return mustRoutes(backendMethods())
})

// serviceStubs are methods served by a host foreground download service.
// Where the platform has none they succeed without touching the module.
var serviceStubs = map[string]any{
	"startDownloadService":          nil,
	"stopDownloadService":           nil,
	"updateDownloadServiceProgress": nil,
	"isDownloadServiceRunning":      false,
}

func backendMethods() []route {
	return []route{
		// Parsing and metadata
		{method: "parseSpotifyUrl", export: "ParseSpotifyURL", shape: ffi.StringToString, params: []param{str("url")}},
		{method: "parseDeezerUrl", export: "ParseDeezerURLExport", shape: ffi.StringToString, params: []param{str("url")}},
		{method: "getSpotifyMetadata", export: "GetSpotifyMetadata", shape: ffi.StringToString, params: []param{str("url")}},
		{method: "getSpotifyMetadataWithFallback", export: "GetSpotifyMetadataWithDeezerFallback", shape: ffi.StringToString, params: []param{str("url")}},
		{method: "getDeezerMetadata", export: "GetDeezerMetadata", shape: ffi.String2ToString, params: []param{str("resource_type"), str("resource_id")}},
		{method: "getDeezerExtendedMetadata", export: "GetDeezerExtendedMetadata", shape: ffi.StringToString, params: []param{str("track_id")}},

		// Search
		{method: "searchSpotify", export: "SearchSpotify", shape: ffi.StringIntToString, params: []param{str("query"), i64("limit", 10)}},
		{method: "searchSpotifyAll", export: "SearchSpotifyAll", shape: ffi.StringIntIntToString, params: []param{str("query"), i64("track_limit", 15), i64("artist_limit", 3)}},
		{method: "searchDeezerAll", export: "SearchDeezerAll", shape: ffi.StringIntIntToString, params: []param{str("query"), i64("track_limit", 15), i64("artist_limit", 3)}},
		{method: "searchDeezerByISRC", export: "SearchDeezerByISRC", shape: ffi.StringToString, params: []param{str("isrc")}},
		{method: "checkAvailability", export: "CheckAvailability", shape: ffi.String2ToString, params: []param{str("spotify_id"), str("isrc")}},
		{method: "convertSpotifyToDeezer", export: "ConvertSpotifyToDeezer", shape: ffi.String2ToString, params: []param{str("resource_type"), str("spotify_id")}},

		// Downloads take a serialized request
		{method: "downloadTrack", export: "DownloadTrack", shape: ffi.StringToString, params: []param{text()}},
		{method: "downloadWithFallback", export: "DownloadWithFallback", shape: ffi.StringToString, params: []param{text()}},
		{method: "downloadWithExtensions", export: "DownloadWithExtensionsJSON", shape: ffi.StringToString, params: []param{text()}},

		// Progress
		{method: "getDownloadProgress", export: "GetDownloadProgress", shape: ffi.StringToString, params: []param{fixedStr("")}},
		{method: "getAllDownloadProgress", export: "GetAllDownloadProgress", shape: ffi.StringToString, params: []param{fixedStr("")}},
		{method: "initItemProgress", export: "InitItemProgress", shape: ffi.StringToVoid, params: []param{str("item_id")}},
		{method: "finishItemProgress", export: "FinishItemProgress", shape: ffi.StringToVoid, params: []param{str("item_id")}},
		{method: "clearItemProgress", export: "ClearItemProgress", shape: ffi.StringToVoid, params: []param{str("item_id")}},
		{method: "cancelDownload", export: "CancelDownload", shape: ffi.StringToVoid, params: []param{str("item_id")}},

		// Files
		{method: "setDownloadDirectory", export: "SetDownloadDirectory", shape: ffi.StringToVoid, params: []param{str("path")}},
		{method: "checkDuplicate", export: "CheckDuplicate", shape: ffi.String2ToString, params: []param{str("output_dir"), str("isrc")}},
		{method: "buildFilename", export: "BuildFilename", shape: ffi.String2ToString, params: []param{str("template"), strOr("metadata", "{}")}},
		{method: "sanitizeFilename", export: "SanitizeFilename", shape: ffi.StringToString, params: []param{str("filename")}},
		{method: "readFileMetadata", export: "ReadFileMetadata", shape: ffi.StringToString, params: []param{str("file_path")}},

		// Lyrics
		{method: "fetchLyrics", export: "FetchLyrics", shape: ffi.StringIntToString, params: []param{str("spotify_id"), i64("duration_ms", 0)},
			unforwarded: []string{"track_name", "artist_name"}},
		{method: "getLyricsLRC", export: "GetLyricsLRC", shape: ffi.StringToString, params: []param{str("spotify_id")},
			unforwarded: []string{"track_name", "artist_name", "file_path", "duration_ms"}},
		{method: "embedLyricsToFile", export: "EmbedLyricsToFile", shape: ffi.String2ToString, params: []param{str("file_path"), str("lyrics")}},

		// Lifecycle and credentials
		{method: "cleanupConnections", export: "CleanupConnections", shape: ffi.Void},
		{method: "setSpotifyCredentials", export: "SetSpotifyAPICredentials", shape: ffi.String2ToVoid, params: []param{str("client_id"), str("client_secret")}},
		{method: "hasSpotifyCredentials", export: "CheckSpotifyCredentials", shape: ffi.VoidToBool},

		// Track cache
		{method: "preWarmTrackCache", export: "PreWarmTrackCacheJSON", shape: ffi.StringToString, params: []param{strOr("tracks", "[]")}},
		{method: "getTrackCacheSize", export: "GetTrackCacheSize", shape: ffi.VoidToInt, convert: toInt32},
		{method: "clearTrackCache", export: "ClearTrackIDCache", shape: ffi.Void},

		// Logs
		{method: "getLogs", export: "GetLogs", shape: ffi.StringToString, params: []param{fixedStr("")}},
		{method: "getLogsSince", export: "GetLogsSince", shape: ffi.StringIntToString, params: []param{fixedStr(""), i64("index", 0)}},
		{method: "clearLogs", export: "ClearLogs", shape: ffi.Void},
		{method: "getLogCount", export: "GetLogCount", shape: ffi.VoidToInt, convert: toInt32},
		{method: "setLoggingEnabled", export: "SetLoggingEnabled", shape: ffi.BoolToVoid, params: []param{flag("enabled")}},

		// Extensions
		{method: "initExtensionSystem", export: "InitExtensionSystem", shape: ffi.String2ToVoid, params: []param{str("extensions_dir"), str("data_dir")}},
		{method: "loadExtensionsFromDir", export: "LoadExtensionsFromDir", shape: ffi.StringToString, params: []param{str("dir_path")}},
		{method: "loadExtensionFromPath", export: "LoadExtensionFromPath", shape: ffi.StringToString, params: []param{str("file_path")}},
		{method: "unloadExtension", export: "UnloadExtensionByID", shape: ffi.StringToVoid, params: []param{str("extension_id")}},
		{method: "removeExtension", export: "RemoveExtensionByID", shape: ffi.StringToVoid, params: []param{str("extension_id")}},
		{method: "upgradeExtension", export: "UpgradeExtensionFromPath", shape: ffi.StringToString, params: []param{str("file_path")}},
		{method: "checkExtensionUpgrade", export: "CheckExtensionUpgradeFromPath", shape: ffi.StringToString, params: []param{str("file_path")}},
		{method: "getInstalledExtensions", export: "GetInstalledExtensions", shape: ffi.StringToString, params: []param{fixedStr("")}},
		{method: "setExtensionEnabled", export: "SetExtensionEnabledByID", shape: ffi.StringBoolToVoid, params: []param{str("extension_id"), flag("enabled")}},
		{method: "setProviderPriority", export: "SetProviderPriorityJSON", shape: ffi.StringToVoid, params: []param{strOr("priority", "[]")}},
		{method: "getProviderPriority", export: "GetProviderPriorityJSON", shape: ffi.StringToString, params: []param{fixedStr("")}},
		{method: "setMetadataProviderPriority", export: "SetMetadataProviderPriorityJSON", shape: ffi.StringToVoid, params: []param{strOr("priority", "[]")}},
		{method: "getMetadataProviderPriority", export: "GetMetadataProviderPriorityJSON", shape: ffi.StringToString, params: []param{fixedStr("")}},
		{method: "getExtensionSettings", export: "GetExtensionSettingsJSON", shape: ffi.StringToString, params: []param{str("extension_id")}},
		{method: "setExtensionSettings", export: "SetExtensionSettingsJSON", shape: ffi.String2ToVoid, params: []param{str("extension_id"), strOr("settings", "{}")}},
		{method: "invokeExtensionAction", export: "InvokeExtensionActionJSON", shape: ffi.String2ToString, params: []param{str("extension_id"), str("action")}},
		{method: "searchTracksWithExtensions", export: "SearchTracksWithExtensionsJSON", shape: ffi.StringIntToString, params: []param{str("query"), i64("limit", 20)}},
		{method: "cleanupExtensions", export: "CleanupExtensions", shape: ffi.Void},

		// Extension auth
		{method: "getExtensionPendingAuth", export: "GetExtensionPendingAuthJSON", shape: ffi.StringToString, params: []param{str("extension_id")}, convert: emptyAsNil},
		{method: "setExtensionAuthCode", export: "SetExtensionAuthCodeByID", shape: ffi.String2ToVoid, params: []param{str("extension_id"), str("auth_code")}},
		{method: "setExtensionTokens", export: "SetExtensionTokensByID", shape: ffi.String3Int2ToVoid,
			params: []param{str("extension_id"), str("access_token"), str("refresh_token"), i64("expires_in", 0), fixedInt(0)}},
		{method: "clearExtensionPendingAuth", export: "ClearExtensionPendingAuthByID", shape: ffi.StringToVoid, params: []param{str("extension_id")}},
		{method: "isExtensionAuthenticated", export: "IsExtensionAuthenticatedByID", shape: ffi.VoidToBool,
			unforwarded: []string{"extension_id"}},
		{method: "getAllPendingAuthRequests", export: "GetAllPendingAuthRequestsJSON", shape: ffi.StringToString, params: []param{fixedStr("")}},

		// Extension FFmpeg bridge
		{method: "getPendingFFmpegCommand", export: "GetPendingFFmpegCommandJSON", shape: ffi.StringToString, params: []param{str("command_id")}, convert: emptyAsNil},
		{method: "setFFmpegCommandResult", export: "SetFFmpegCommandResultByID", shape: ffi.StringToVoid, params: []param{str("command_id")},
			unforwarded: []string{"success", "output", "error"}},
		{method: "getAllPendingFFmpegCommands", export: "GetAllPendingFFmpegCommandsJSON", shape: ffi.StringToString, params: []param{fixedStr("")}},

		// Extension search, URL handlers and post-processing
		{method: "customSearchWithExtension", export: "CustomSearchWithExtensionJSON", shape: ffi.String3ToString, params: []param{str("extension_id"), str("query"), str("options")}},
		{method: "getSearchProviders", export: "GetSearchProvidersJSON", shape: ffi.StringToString, params: []param{fixedStr("")}},
		{method: "handleURLWithExtension", export: "HandleURLWithExtensionJSON", shape: ffi.StringToString, params: []param{str("url")}},
		{method: "findURLHandler", export: "FindURLHandlerJSON", shape: ffi.StringToString, params: []param{str("url")}},
		{method: "getURLHandlers", export: "GetURLHandlersJSON", shape: ffi.StringToString, params: []param{fixedStr("")}},
		{method: "getAlbumWithExtension", export: "GetAlbumWithExtensionJSON", shape: ffi.String2ToString, params: []param{str("extension_id"), str("album_id")}},
		{method: "getPlaylistWithExtension", export: "GetPlaylistWithExtensionJSON", shape: ffi.String2ToString, params: []param{str("extension_id"), str("playlist_id")}},
		{method: "getArtistWithExtension", export: "GetArtistWithExtensionJSON", shape: ffi.String2ToString, params: []param{str("extension_id"), str("artist_id")}},
		{method: "runPostProcessing", export: "RunPostProcessingJSON", shape: ffi.String2ToString, params: []param{str("file_path"), str("metadata")}},
		{method: "getPostProcessingProviders", export: "GetPostProcessingProvidersJSON", shape: ffi.StringToString, params: []param{fixedStr("")}},

		// Extension store
		{method: "initExtensionStore", export: "InitExtensionStoreJSON", shape: ffi.StringToVoid, params: []param{str("cache_dir")}},
		{method: "getStoreExtensions", export: "GetStoreExtensionsJSON", shape: ffi.StringToString, params: []param{flagText("force_refresh")}},
		{method: "searchStoreExtensions", export: "SearchStoreExtensionsJSON", shape: ffi.String2ToString, params: []param{str("query"), str("category")}},
		{method: "getStoreCategories", export: "GetStoreCategoriesJSON", shape: ffi.StringToString, params: []param{fixedStr("")}},
		{method: "downloadStoreExtension", export: "DownloadStoreExtensionJSON", shape: ffi.String2ToString, params: []param{str("extension_id"), str("dest_dir")}},
		{method: "clearStoreCache", export: "ClearStoreCacheJSON", shape: ffi.Void},

		// Network proxy
		{method: "setProxyConfig", export: "SetProxyConfigJSON", shape: ffi.String3Int2ToVoid,
			params:      []param{str("proxy_type"), str("host"), str("username"), i64("port", 0), fixedInt(0)},
			unforwarded: []string{"password"}},
		{method: "clearProxyConfig", export: "ClearProxyConfigJSON", shape: ffi.Void},
	}
}

// MethodInfo describes one routed backend method.
type MethodInfo struct {
	Method      string   `json:"method"`
	Export      string   `json:"export"`
	Shape       string   `json:"shape"`
	Keys        []string `json:"keys,omitempty"`
	Unforwarded []string `json:"unforwarded,omitempty"`
}

// Methods returns the routing table sorted by method name. Platform service
// stubs are not included.
func Methods() []MethodInfo {
	routes := routeTable()
	out := make([]MethodInfo, 0, len(routes))
	for _, r := range routes {
		info := MethodInfo{
			Method:      r.method,
			Export:      r.export,
			Shape:       r.shape.String(),
			Unforwarded: r.unforwarded,
		}
		for _, p := range r.params {
			if p.key != "" {
				info.Keys = append(info.Keys, p.key)
			}
		}
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Method < out[j].Method })
	return out
}

// Exports returns every export name the routing table calls, sorted.
func Exports() []string {
	routes := routeTable()
	out := make([]string, 0, len(routes))
	for _, r := range routes {
		out = append(out, r.export)
	}
	sort.Strings(out)
	return out
}
