package commands

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agiangrant/gobridge"
	"github.com/agiangrant/gobridge/internal/ffi"
)

func TestInit(t *testing.T) {
	t.Chdir(t.TempDir())

	require.NoError(t, Init([]string{"-module", "mybackend", "-path", "/opt/lib/libmybackend.so"}))

	cfg, err := gobridge.LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, "mybackend", cfg.Module.Name)
	assert.Equal(t, "/opt/lib/libmybackend.so", cfg.Module.Path)
	assert.Equal(t, gobridge.DefaultConfig().Channels, cfg.Channels)

	err = Init(nil)
	assert.ErrorContains(t, err, "already exists")

	require.NoError(t, Init([]string{"-force"}))
	cfg, err = gobridge.LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, "gobackend", cfg.Module.Name)
	assert.Empty(t, cfg.Module.Path)
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "gobridge.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestOpenSession_ModuleMissing(t *testing.T) {
	t.Setenv(gobridge.ModulePathEnv, "")

	path := writeConfig(t, `
[module]
path = "/nonexistent/libgobackend.so"

[channels]
backend = "test/backend"

[log]
level = "error"
`)

	s, err := openSession(path)
	require.NoError(t, err)
	defer s.Close()

	assert.Equal(t, ffi.StateUnloaded, s.bridge.ModuleState())
	assert.ErrorContains(t, s.requireLoaded(), "/nonexistent/libgobackend.so")

	resp := s.bridge.Dispatch(s.channelName("backend"), gobridge.MethodCall{Method: "getSpotifyMetadata"})
	assert.Equal(t, gobridge.StatusError, resp.Status)
	assert.Equal(t, "BACKEND_UNAVAILABLE", resp.Code)
}

func TestOpenSession_BadConfig(t *testing.T) {
	_, err := openSession(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)

	_, err = openSession(writeConfig(t, "[log]\nlevel = \"loud\"\n"))
	assert.Error(t, err)
}

func TestChannelName(t *testing.T) {
	s := &session{cfg: gobridge.DefaultConfig()}

	tests := []struct {
		alias string
		want  string
	}{
		{"", "com.zarz.spotiflac/backend"},
		{"backend", "com.zarz.spotiflac/backend"},
		{"audio", "com.zarz.spotiflac/ffmpeg"},
		{"ffmpeg", "com.zarz.spotiflac/ffmpeg"},
		{"custom/channel", "custom/channel"},
	}

	for _, tt := range tests {
		t.Run(tt.alias, func(t *testing.T) {
			assert.Equal(t, tt.want, s.channelName(tt.alias))
		})
	}
}

func TestDash(t *testing.T) {
	assert.Equal(t, "-", dash(nil))
	assert.Equal(t, "a,b", dash([]string{"a", "b"}))
}
