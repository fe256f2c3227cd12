package wayland

import "path/filepath"

// resolveEndpoint returns the socket path to dial. An explicit display wins
// over WAYLAND_DISPLAY; relative names resolve under XDG_RUNTIME_DIR. There
// is no default display name.
//
// An inherited WAYLAND_SOCKET cannot be adopted (go-wayland only dials
// paths), so it is refused rather than silently skipped.
func resolveEndpoint(display string, getenv func(string) string) (string, error) {
	if display == "" {
		if s := getenv("WAYLAND_SOCKET"); s != "" {
			return "", &ConnectionError{Reason: "inherited WAYLAND_SOCKET=" + s + " is not supported; set WAYLAND_DISPLAY or --display"}
		}
		display = getenv("WAYLAND_DISPLAY")
	}
	if display == "" {
		return "", &ConnectionError{Reason: "WAYLAND_DISPLAY is not set"}
	}
	if filepath.IsAbs(display) {
		return display, nil
	}
	dir := getenv("XDG_RUNTIME_DIR")
	if dir == "" {
		return "", &ConnectionError{Reason: "XDG_RUNTIME_DIR is not set"}
	}
	return filepath.Join(dir, display), nil
}
