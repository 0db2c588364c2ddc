package compositor

import (
	"os"

	"github.com/rs/zerolog"

	"github.com/bryanchriswhite/parallaxd/internal/logger"
	"github.com/bryanchriswhite/parallaxd/internal/workspace"
)

// Wayland is the fallback for Wayland compositors without a recognized
// IPC surface. Rendering still works through the layer surface, there is
// just no workspace signal, so every poll is quiet and the workspace is
// pinned to a single global one.
type Wayland struct {
	log       *zerolog.Logger
	connected bool
}

// NewWayland creates the generic fallback adapter.
func NewWayland() *Wayland {
	return &Wayland{log: logger.WithComponent("wayland")}
}

func (w *Wayland) Name() string { return "Wayland" }
func (w *Wayland) Kind() Kind   { return KindWayland }
func (w *Wayland) Detect() bool { return detectWayland() }

func (w *Wayland) Connect() error {
	if os.Getenv("WAYLAND_DISPLAY") == "" {
		return ErrNoDisplay
	}
	w.connected = true
	return nil
}

func (w *Wayland) Disconnect() { w.connected = false }
func (w *Wayland) Close()      { w.connected = false }

func (w *Wayland) PollEvent() (workspace.ChangeEvent, error) {
	if !w.connected {
		return workspace.ChangeEvent{}, ErrInvalidArgument
	}
	return workspace.ChangeEvent{}, ErrNoData
}

func (w *Wayland) SendCommand(command string) (string, error) {
	return "", ErrInvalidArgument
}

func (w *Wayland) Model() workspace.Model { return workspace.ModelGlobalNumeric }

func (w *Wayland) CurrentWorkspace() workspace.Context {
	return workspace.Context{Model: workspace.ModelGlobalNumeric, ID: 1}
}

func (w *Wayland) Workspaces() ([]WorkspaceInfo, error) {
	return []WorkspaceInfo{{ID: 1, Name: "1", Active: true, Visible: true}}, nil
}

func (w *Wayland) Monitors() ([]MonitorInfo, error) {
	return nil, ErrNoData
}

func (w *Wayland) SupportsBlur() bool         { return false }
func (w *Wayland) SupportsTransparency() bool { return true }
func (w *Wayland) SupportsAnimations() bool   { return false }

func (w *Wayland) SetBlur(amount float64) error { return ErrInvalidArgument }

func (w *Wayland) SetWallpaperOffset(x, y float64) error { return nil }
