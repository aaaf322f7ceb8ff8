package manifest

import "runtime"

// Platform tokens used by manifests.
const (
	PlatformWindows = "win32"
	PlatformLinux   = "linux"
	PlatformMacOS   = "darwin"
)

var platformLabels = map[string]string{
	PlatformWindows: "Windows",
	PlatformLinux:   "Linux",
	PlatformMacOS:   "MacOS",
}

// PlatformLabel returns the display name of a platform token.
func PlatformLabel(token string) string {
	if l, ok := platformLabels[token]; ok {
		return l
	}
	return token
}

// KnownPlatform reports whether token is one of the manifest platform tokens.
func KnownPlatform(token string) bool {
	_, ok := platformLabels[token]
	return ok
}

// HostPlatform returns the manifest token for the running OS.
func HostPlatform() string {
	return PlatformToken(runtime.GOOS)
}

// PlatformToken maps a GOOS value onto a manifest platform token.
func PlatformToken(goos string) string {
	if goos == "windows" {
		return PlatformWindows
	}
	return goos
}
