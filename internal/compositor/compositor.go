// Package compositor abstracts the control protocols of the supported
// desktop session managers behind one adapter interface. Each adapter
// translates its compositor's native IPC into canonical workspace change
// events; the rest of the system programs against the Adapter contract
// only.
package compositor

import (
	"errors"
	"fmt"
)

// Kind identifies a concrete compositor adapter.
type Kind int

const (
	KindAuto Kind = iota
	KindHyprland
	KindSway
	KindNiri
	KindRiver
	KindWayfire
	KindWayland
	KindX11EWMH
)

func (k Kind) String() string {
	switch k {
	case KindHyprland:
		return "hyprland"
	case KindSway:
		return "sway"
	case KindNiri:
		return "niri"
	case KindRiver:
		return "river"
	case KindWayfire:
		return "wayfire"
	case KindWayland:
		return "wayland"
	case KindX11EWMH:
		return "x11"
	case KindAuto:
		return "auto"
	default:
		return "unknown"
	}
}

// ParseKind maps a config string to a Kind.
func ParseKind(name string) (Kind, error) {
	switch name {
	case "hyprland":
		return KindHyprland, nil
	case "sway", "i3":
		return KindSway, nil
	case "niri":
		return KindNiri, nil
	case "river":
		return KindRiver, nil
	case "wayfire":
		return KindWayfire, nil
	case "wayland", "generic":
		return KindWayland, nil
	case "x11", "ewmh":
		return KindX11EWMH, nil
	case "", "auto":
		return KindAuto, nil
	default:
		return KindAuto, fmt.Errorf("%w: unknown compositor %q", ErrInvalidArgument, name)
	}
}

var (
	// ErrInvalidArgument reports a caller contract violation.
	ErrInvalidArgument = errors.New("compositor: invalid argument")

	// ErrNoDisplay reports that the compositor could not be reached at
	// all: missing environment variables, dial exhausted, or the protocol
	// socket is absent.
	ErrNoDisplay = errors.New("compositor: no display")

	// ErrNoData is the poll sentinel: nothing new happened. It is a
	// normal result, not a failure.
	ErrNoData = errors.New("compositor: no data")
)

// MonitorInfo describes one output. Enumerated on demand; not cached.
type MonitorInfo struct {
	ID      int     `json:"id"`
	Name    string  `json:"name"`
	X       int     `json:"x"`
	Y       int     `json:"y"`
	Width   int     `json:"width"`
	Height  int     `json:"height"`
	Scale   float64 `json:"scale"`
	Primary bool    `json:"primary"`
}

// WorkspaceInfo describes one workspace (or tag, or grid cell) as reported
// by the compositor.
type WorkspaceInfo struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	X        int    `json:"x"`
	Y        int    `json:"y"`
	Active   bool   `json:"active"`
	Visible  bool   `json:"visible"`
	Occupied bool   `json:"occupied"`
}
