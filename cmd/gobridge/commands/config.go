package commands

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/agiangrant/gobridge"
	"github.com/agiangrant/gobridge/internal/ffi"
)

// session is a loaded configuration with its logger and bridge.
type session struct {
	cfg    gobridge.Config
	logger *zap.Logger
	bridge *gobridge.Bridge
}

// openSession loads the configuration at path ("" for gobridge.toml), builds
// the logger it describes and opens the bridge.
func openSession(path string) (*session, error) {
	cfg, err := gobridge.LoadConfig(path)
	if err != nil {
		return nil, err
	}

	logger, err := cfg.Log.Build()
	if err != nil {
		return nil, err
	}

	return &session{
		cfg:    cfg,
		logger: logger,
		bridge: gobridge.New(cfg, gobridge.WithLogger(logger)),
	}, nil
}

func (s *session) Close() error {
	err := s.bridge.Close()
	_ = s.logger.Sync()
	return err
}

// channelName expands the "backend" and "audio" aliases.
func (s *session) channelName(name string) string {
	switch name {
	case "", "backend":
		return s.cfg.Channels.Backend
	case "audio", "ffmpeg":
		return s.cfg.Channels.Audio
	default:
		return name
	}
}

// requireLoaded fails when the module did not load.
func (s *session) requireLoaded() error {
	if s.bridge.ModuleState() != ffi.StateLoaded {
		return fmt.Errorf("module %s is not loaded: %w", s.bridge.ModulePath(), s.bridge.LoadErr())
	}
	return nil
}
