package compositor

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/bryanchriswhite/parallaxd/internal/logger"
)

// DetectKind probes each compiled-in backend's detection fingerprint in
// order of specificity: the most distinctive protocols first, generic
// Wayland and X11 last as catch-alls. Detection reads environment
// variables and checks for well-known socket paths only; it never dials.
func DetectKind() Kind {
	log := logger.WithComponent("compositor")

	probes := []struct {
		kind   Kind
		detect func() bool
	}{
		{KindHyprland, detectHyprland},
		{KindNiri, detectNiri},
		{KindRiver, detectRiver},
		{KindWayfire, detectWayfire},
		{KindSway, detectSway},
		{KindX11EWMH, detectX11},
		{KindWayland, detectWayland},
	}

	for _, p := range probes {
		if p.detect() {
			log.Debug().Stringer("kind", p.kind).Msg("detected compositor")
			return p.kind
		}
	}

	log.Warn().Msg("could not detect compositor, falling back to generic wayland")
	return KindWayland
}

func detectHyprland() bool {
	if sig := os.Getenv("HYPRLAND_INSTANCE_SIGNATURE"); sig != "" {
		return true
	}
	return strings.Contains(os.Getenv("XDG_CURRENT_DESKTOP"), "Hyprland")
}

func detectNiri() bool {
	if os.Getenv("NIRI_SOCKET") != "" {
		return true
	}
	if strings.EqualFold(os.Getenv("XDG_CURRENT_DESKTOP"), "niri") ||
		strings.EqualFold(os.Getenv("XDG_SESSION_DESKTOP"), "niri") {
		return true
	}
	_, err := niriSocketPath()
	return err == nil
}

func detectRiver() bool {
	if strings.EqualFold(os.Getenv("XDG_CURRENT_DESKTOP"), "river") {
		return true
	}
	path, err := riverSocketPath()
	if err != nil {
		return false
	}
	return fileExists(path)
}

func detectWayfire() bool {
	desktop := os.Getenv("XDG_CURRENT_DESKTOP")
	if strings.EqualFold(desktop, "wayfire") ||
		strings.HasPrefix(strings.ToLower(desktop), "wayfire:") {
		return true
	}
	if strings.EqualFold(os.Getenv("XDG_SESSION_DESKTOP"), "wayfire") {
		return true
	}
	_, err := wayfireSocketPath()
	return err == nil
}

func detectSway() bool {
	if os.Getenv("SWAYSOCK") != "" {
		return true
	}
	desktop := strings.ToLower(os.Getenv("XDG_CURRENT_DESKTOP"))
	return strings.Contains(desktop, "sway")
}

func detectX11() bool {
	return os.Getenv("DISPLAY") != "" && os.Getenv("WAYLAND_DISPLAY") == ""
}

func detectWayland() bool {
	return os.Getenv("WAYLAND_DISPLAY") != ""
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func runtimeDir() (string, error) {
	dir := os.Getenv("XDG_RUNTIME_DIR")
	if dir == "" {
		return "", ErrNoDisplay
	}
	return dir, nil
}

func runtimePath(elem ...string) (string, error) {
	dir, err := runtimeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(append([]string{dir}, elem...)...), nil
}
