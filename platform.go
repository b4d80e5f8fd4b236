package gobridge

import (
	"fmt"
	"runtime"
	"strings"
)

// Platform represents the current operating system/platform
type Platform string

const (
	PlatformMacOS   Platform = "darwin"
	PlatformIOS     Platform = "ios"
	PlatformAndroid Platform = "android"
	PlatformLinux   Platform = "linux"
	PlatformWindows Platform = "windows"
	PlatformUnknown Platform = "unknown"
)

// CurrentPlatform returns the platform the bridge is running on
func CurrentPlatform() Platform {
	switch runtime.GOOS {
	case "darwin":
		return PlatformMacOS
	case "ios":
		return PlatformIOS
	case "android":
		return PlatformAndroid
	case "linux":
		return PlatformLinux
	case "windows":
		return PlatformWindows
	default:
		return PlatformUnknown
	}
}

// ParsePlatform accepts a platform identifier or display name, in any case.
func ParsePlatform(s string) (Platform, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "darwin", "macos":
		return PlatformMacOS, nil
	case "ios":
		return PlatformIOS, nil
	case "android":
		return PlatformAndroid, nil
	case "linux":
		return PlatformLinux, nil
	case "windows":
		return PlatformWindows, nil
	default:
		return PlatformUnknown, fmt.Errorf("unknown platform %q", s)
	}
}

// DisplayName returns the name shown to users, e.g. "macOS".
func (p Platform) DisplayName() string {
	switch p {
	case PlatformMacOS:
		return "macOS"
	case PlatformIOS:
		return "iOS"
	case PlatformAndroid:
		return "Android"
	case PlatformLinux:
		return "Linux"
	case PlatformWindows:
		return "Windows"
	default:
		return "this platform"
	}
}

// IsMobile returns true for iOS and Android
func (p Platform) IsMobile() bool {
	return p == PlatformIOS || p == PlatformAndroid
}

// Capabilities are host features some methods depend on.
type Capabilities struct {
	// ForegroundService is a host-managed download service that keeps
	// transfers alive in the background.
	ForegroundService bool
	// AudioProcessor is a host-side FFmpeg implementation.
	AudioProcessor bool
}

// Capabilities returns the features p provides by default.
func (p Platform) Capabilities() Capabilities {
	return Capabilities{
		ForegroundService: p == PlatformAndroid,
		AudioProcessor:    p.IsMobile(),
	}
}
