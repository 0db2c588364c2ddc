package compositor

import (
	"fmt"
	"io"
	"net"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/bryanchriswhite/parallaxd/internal/ipc"
	"github.com/bryanchriswhite/parallaxd/internal/logger"
	"github.com/bryanchriswhite/parallaxd/internal/workspace"
)

// River drives river's control socket. River pushes no workspace events
// over that socket, tag state reaches the daemon from the surface side,
// so PollEvent always reports no data and ApplyTags feeds changes in.
type River struct {
	log  *zerolog.Logger
	opts Options

	ctlPath   string
	connected bool

	visible uint32
	focused uint32
	monitor string
}

// NewRiver creates an unconnected river adapter.
func NewRiver(opts Options) *River {
	return &River{
		log:  logger.WithComponent("river"),
		opts: opts,
	}
}

func (r *River) Name() string { return "river" }
func (r *River) Kind() Kind   { return KindRiver }
func (r *River) Detect() bool { return detectRiver() }

// riverSocketPath resolves $XDG_RUNTIME_DIR/$WAYLAND_DISPLAY.control,
// river's riverctl rendezvous.
func riverSocketPath() (string, error) {
	display := os.Getenv("WAYLAND_DISPLAY")
	if display == "" {
		return "", fmt.Errorf("%w: WAYLAND_DISPLAY not set", ErrNoDisplay)
	}
	return runtimePath(display + ".control")
}

// Connect verifies the control socket is reachable. No persistent
// connection is held, commands dial fresh.
func (r *River) Connect() error {
	if r.connected {
		return nil
	}
	path, err := riverSocketPath()
	if err != nil {
		return err
	}
	conn, err := ipc.DialRetry(path, "river", r.opts.RetryAttempts,
		time.Duration(r.opts.RetryDelayMS)*time.Millisecond)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNoDisplay, err)
	}
	conn.Close()

	r.ctlPath = path
	r.connected = true
	r.visible = 1
	r.focused = 1
	return nil
}

func (r *River) Disconnect() {
	r.connected = false
}

func (r *River) Close() {
	r.Disconnect()
	r.visible = 0
	r.focused = 0
}

// PollEvent never yields data for river. Tag changes arrive out of band
// through ApplyTags.
func (r *River) PollEvent() (workspace.ChangeEvent, error) {
	if !r.connected {
		return workspace.ChangeEvent{}, ErrInvalidArgument
	}
	return workspace.ChangeEvent{}, ErrNoData
}

// ApplyTags records a new visible tag mask for a monitor and synthesizes
// the corresponding change. The focused tag follows the multi-tag policy.
// Returns false when nothing moved.
func (r *River) ApplyTags(monitor string, visible uint32) (workspace.ChangeEvent, bool) {
	if visible == r.visible && monitor == r.monitor {
		return workspace.ChangeEvent{}, false
	}

	old := r.context()
	r.visible = visible
	r.focused = focusedTagFor(visible, r.opts.TagPolicy)
	r.monitor = monitor

	ev := workspace.ChangeEvent{
		Old:     old,
		New:     r.context(),
		Monitor: monitor,
	}
	return ev, true
}

// focusedTagFor picks the representative tag from a mask per policy. An
// empty mask has no representative.
func focusedTagFor(mask uint32, policy workspace.TagPolicy) uint32 {
	if mask == 0 {
		return 0
	}
	switch policy {
	case workspace.TagPolicyHighest:
		bit := uint32(1)
		for m := mask; m > 1; m >>= 1 {
			bit <<= 1
		}
		return bit
	default:
		// Focused and Lowest both take the lowest set bit; river does
		// not report a distinct focused tag over this socket.
		return mask & -mask
	}
}

func (r *River) context() workspace.Context {
	return workspace.Context{
		Model:       workspace.ModelTagBased,
		VisibleTags: r.visible,
		FocusedTag:  r.focused,
	}
}

// SendCommand writes one riverctl-style command, words separated by NUL
// bytes, and returns the reply.
func (r *River) SendCommand(command string) (string, error) {
	if r.ctlPath == "" {
		path, err := riverSocketPath()
		if err != nil {
			return "", err
		}
		r.ctlPath = path
	}

	conn, err := net.DialTimeout("unix", r.ctlPath, 2*time.Second)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNoDisplay, err)
	}
	defer conn.Close()

	words := strings.Fields(command)
	payload := strings.Join(words, "\x00") + "\x00"
	if _, err := conn.Write([]byte(payload)); err != nil {
		return "", fmt.Errorf("river: write command: %w", err)
	}
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	reply, err := io.ReadAll(conn)
	if err != nil && len(reply) == 0 {
		return "", fmt.Errorf("river: read reply: %w", err)
	}
	return string(reply), nil
}

func (r *River) Model() workspace.Model { return workspace.ModelTagBased }

func (r *River) CurrentWorkspace() workspace.Context {
	return r.context()
}

// Workspaces reports the nine conventional river tags.
func (r *River) Workspaces() ([]WorkspaceInfo, error) {
	infos := make([]WorkspaceInfo, 0, 9)
	for i := 0; i < 9; i++ {
		tag := uint32(1) << i
		infos = append(infos, WorkspaceInfo{
			ID:      i + 1,
			Name:    fmt.Sprintf("%d", i+1),
			Active:  tag == r.focused,
			Visible: tag&r.visible != 0,
		})
	}
	return infos, nil
}

func (r *River) Monitors() ([]MonitorInfo, error) {
	if r.monitor == "" {
		return nil, ErrNoData
	}
	return []MonitorInfo{{ID: 0, Name: r.monitor, Scale: 1.0, Primary: true}}, nil
}

func (r *River) SupportsBlur() bool         { return false }
func (r *River) SupportsTransparency() bool { return true }
func (r *River) SupportsAnimations() bool   { return false }

func (r *River) SetBlur(amount float64) error { return ErrInvalidArgument }

func (r *River) SetWallpaperOffset(x, y float64) error { return nil }
