package compositor

import (
	"github.com/bryanchriswhite/parallaxd/internal/workspace"
)

// Adapter is the contract every compositor backend implements. All methods
// are mandatory; backends without protocol support for an operation
// implement the explicit no-op or stub behavior rather than leaving holes
// in a capability table.
//
// Lifecycle: a constructed adapter is initialized but not connected.
// Connect establishes IPC, Disconnect tears it down, Close disconnects (if
// needed) and releases adapter state. Disconnect and Close are safe to call
// in any order and more than once.
type Adapter interface {
	// Name returns the human-readable compositor name.
	Name() string

	// Kind returns the adapter's type tag.
	Kind() Kind

	// Detect reports whether this compositor appears to be the running
	// session. It is side-effect-free and safe to call on an unconnected
	// adapter; probing a non-matching compositor is expected and silent.
	Detect() bool

	// Connect establishes the IPC connection(s) to the compositor.
	Connect() error

	// Disconnect tears down IPC. Safe to call when not connected.
	Disconnect()

	// Close disconnects and releases all adapter state.
	Close()

	// PollEvent performs a non-blocking check for a canonical workspace
	// change. It returns ErrNoData when nothing new happened; a
	// malformed or partial protocol message is treated the same way
	// rather than as a fatal error.
	PollEvent() (workspace.ChangeEvent, error)

	// SendCommand sends a raw protocol command and returns the response,
	// for compositors whose protocol is request/response shaped.
	SendCommand(command string) (string, error)

	// Model returns the workspace model this adapter produces. It is
	// fixed at detection/connect time and never changes afterwards.
	Model() workspace.Model

	// CurrentWorkspace returns the last known canonical position.
	CurrentWorkspace() workspace.Context

	// Workspaces enumerates the compositor's workspaces.
	Workspaces() ([]WorkspaceInfo, error)

	// Monitors enumerates outputs. Values are not cached beyond the call.
	Monitors() ([]MonitorInfo, error)

	// Capability queries.
	SupportsBlur() bool
	SupportsTransparency() bool
	SupportsAnimations() bool

	// SetBlur adjusts compositor blur where supported.
	SetBlur(amount float64) error

	// SetWallpaperOffset pushes a wallpaper offset to the compositor
	// where the compositor itself owns wallpaper positioning.
	SetWallpaperOffset(x, y float64) error
}

// New creates the adapter for the given kind, auto-detecting when asked.
func New(kind Kind, opts Options) (Adapter, error) {
	if kind == KindAuto {
		kind = DetectKind()
	}

	switch kind {
	case KindHyprland:
		return NewHyprland(opts), nil
	case KindSway:
		return NewSway(opts), nil
	case KindNiri:
		return NewNiri(opts), nil
	case KindRiver:
		return NewRiver(opts), nil
	case KindWayfire:
		return NewWayfire(opts), nil
	case KindWayland:
		return NewWayland(), nil
	case KindX11EWMH:
		return NewX11EWMH(), nil
	default:
		return nil, ErrInvalidArgument
	}
}

// Options carries adapter tunables sourced from the config layer.
type Options struct {
	// RetryAttempts and RetryDelayMS bound the startup socket dialer.
	RetryAttempts int
	RetryDelayMS  int

	// GridWidth and GridHeight size the Wayfire workspace grid.
	GridWidth  int
	GridHeight int

	// TagPolicy selects the multi-tag offset policy for tag-based
	// compositors.
	TagPolicy workspace.TagPolicy
}

// DefaultOptions mirror the config defaults for callers that construct
// adapters directly.
func DefaultOptions() Options {
	return Options{
		RetryAttempts: 30,
		RetryDelayMS:  500,
		GridWidth:     3,
		GridHeight:    3,
	}
}
