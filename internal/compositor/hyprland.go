package compositor

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/bryanchriswhite/parallaxd/internal/ipc"
	"github.com/bryanchriswhite/parallaxd/internal/logger"
	"github.com/bryanchriswhite/parallaxd/internal/workspace"
)

// splitMonitorPlugin is the Hyprland plugin that scopes workspace numbering
// to each output. Its presence flips the adapter's workspace model.
const splitMonitorPlugin = "split-monitor-workspaces"

// Hyprland speaks Hyprland's two-socket IPC: a request/response socket
// dialed fresh per command and a persistent event socket delivering
// newline-delimited "name>>payload" lines.
type Hyprland struct {
	log  *zerolog.Logger
	opts Options

	cmdPath   string
	eventPath string

	eventConn net.Conn
	lines     chan string

	connected bool
	model     workspace.Model
	current   int
	monitor   string

	// owners maps workspace id -> last observed owning monitor, used to
	// detect a workspace being stolen by a different output.
	owners map[int]string
}

// NewHyprland creates an unconnected Hyprland adapter.
func NewHyprland(opts Options) *Hyprland {
	return &Hyprland{
		log:    logger.WithComponent("hyprland"),
		opts:   opts,
		model:  workspace.ModelGlobalNumeric,
		owners: make(map[int]string),
	}
}

func (h *Hyprland) Name() string { return "Hyprland" }
func (h *Hyprland) Kind() Kind   { return KindHyprland }
func (h *Hyprland) Detect() bool { return detectHyprland() }

func hyprlandSocketPaths() (cmdPath, eventPath string, err error) {
	sig := os.Getenv("HYPRLAND_INSTANCE_SIGNATURE")
	if sig == "" {
		return "", "", fmt.Errorf("%w: HYPRLAND_INSTANCE_SIGNATURE not set", ErrNoDisplay)
	}
	base, err := runtimePath("hypr", sig)
	if err != nil {
		return "", "", fmt.Errorf("%w: XDG_RUNTIME_DIR not set", ErrNoDisplay)
	}
	return base + "/.socket.sock", base + "/.socket2.sock", nil
}

// Connect dials the persistent event socket, queries the initial state and
// probes once for the split-monitor-workspaces plugin. The command socket
// is dialed per command, not here.
func (h *Hyprland) Connect() error {
	if h.connected {
		return nil
	}

	cmdPath, eventPath, err := hyprlandSocketPaths()
	if err != nil {
		return err
	}
	h.cmdPath = cmdPath
	h.eventPath = eventPath

	conn, err := ipc.DialRetry(eventPath, "Hyprland", h.opts.RetryAttempts,
		time.Duration(h.opts.RetryDelayMS)*time.Millisecond)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNoDisplay, err)
	}
	h.eventConn = conn
	h.lines = make(chan string, 64)
	go h.readEvents(conn, h.lines)

	h.connected = true

	if ws, err := h.activeWorkspace(); err == nil {
		h.current = ws
	}
	if mon, err := h.focusedMonitor(); err == nil {
		h.monitor = mon
		h.owners[h.current] = mon
	}

	// One-shot plugin probe; behavior when the plugin loads later is a
	// known limitation, we do not re-probe.
	if h.probeSplitMonitorPlugin() {
		h.model = workspace.ModelPerOutputNumeric
		h.log.Info().Msg("split-monitor-workspaces plugin active, using per-output workspaces")
	}

	return nil
}

func (h *Hyprland) readEvents(conn net.Conn, lines chan<- string) {
	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		lines <- scanner.Text()
	}
	close(lines)
}

// Disconnect closes the event socket. Safe to call when not connected.
func (h *Hyprland) Disconnect() {
	if h.eventConn != nil {
		h.eventConn.Close()
		h.eventConn = nil
	}
	h.connected = false
}

// Close disconnects and drops adapter state.
func (h *Hyprland) Close() {
	h.Disconnect()
	h.owners = make(map[int]string)
}

// PollEvent drains buffered event lines without blocking and returns the
// first line that amounts to a canonical workspace change. A closed or
// quiet stream yields ErrNoData.
func (h *Hyprland) PollEvent() (workspace.ChangeEvent, error) {
	if !h.connected {
		return workspace.ChangeEvent{}, ErrInvalidArgument
	}
	for {
		select {
		case line, ok := <-h.lines:
			if !ok {
				return workspace.ChangeEvent{}, ErrNoData
			}
			if ev, ok := h.handleLine(line); ok {
				return ev, nil
			}
		default:
			return workspace.ChangeEvent{}, ErrNoData
		}
	}
}

// handleLine parses one "name>>payload" line, updating tracked state.
// Recognized events: "workspace" (linear id change) and "focusedmon"
// (monitor,workspace pair). Anything else, including malformed payloads,
// is skipped.
func (h *Hyprland) handleLine(line string) (workspace.ChangeEvent, bool) {
	name, payload, found := strings.Cut(line, ">>")
	if !found {
		return workspace.ChangeEvent{}, false
	}

	switch name {
	case "workspace":
		id, err := strconv.Atoi(strings.TrimSpace(payload))
		if err != nil || id == h.current {
			return workspace.ChangeEvent{}, false
		}
		ev := workspace.ChangeEvent{
			Old:     h.context(h.current),
			New:     h.context(id),
			Monitor: h.monitor,
		}
		h.owners[id] = h.monitor
		h.current = id
		return ev, true

	case "focusedmon":
		monitor, wsStr, found := strings.Cut(payload, ",")
		if !found {
			return workspace.ChangeEvent{}, false
		}
		id, err := strconv.Atoi(strings.TrimSpace(wsStr))
		if err != nil {
			return workspace.ChangeEvent{}, false
		}

		prevOwner, seen := h.owners[id]
		h.owners[id] = monitor
		h.monitor = monitor

		if seen && prevOwner != monitor {
			// Workspace reassigned to a different output than last
			// observed: a steal. The source monitor loses the
			// workspace, the destination takes it.
			ev := workspace.ChangeEvent{
				Old:              h.context(h.current),
				New:              h.context(id),
				Monitor:          monitor,
				SecondaryMonitor: prevOwner,
				SecondaryOld:     h.context(id),
				SecondaryNew:     workspace.Context{Model: h.model},
				Steal:            true,
			}
			h.current = id
			return ev, true
		}

		if id == h.current {
			return workspace.ChangeEvent{}, false
		}
		ev := workspace.ChangeEvent{
			Old:     h.context(h.current),
			New:     h.context(id),
			Monitor: monitor,
		}
		h.current = id
		return ev, true
	}

	return workspace.ChangeEvent{}, false
}

func (h *Hyprland) context(id int) workspace.Context {
	return workspace.Context{Model: h.model, ID: id}
}

// SendCommand dials a fresh command socket, writes the command and returns
// the full response.
func (h *Hyprland) SendCommand(command string) (string, error) {
	if h.cmdPath == "" {
		cmdPath, _, err := hyprlandSocketPaths()
		if err != nil {
			return "", err
		}
		h.cmdPath = cmdPath
	}

	conn, err := net.DialTimeout("unix", h.cmdPath, 2*time.Second)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNoDisplay, err)
	}
	defer conn.Close()

	if _, err := conn.Write([]byte(command)); err != nil {
		return "", fmt.Errorf("hyprland: write command: %w", err)
	}
	resp, err := io.ReadAll(conn)
	if err != nil {
		return "", fmt.Errorf("hyprland: read response: %w", err)
	}
	return string(resp), nil
}

func (h *Hyprland) Model() workspace.Model { return h.model }

func (h *Hyprland) CurrentWorkspace() workspace.Context {
	return h.context(h.current)
}

type hyprlandWorkspace struct {
	ID      int    `json:"id"`
	Name    string `json:"name"`
	Monitor string `json:"monitor"`
	Windows int    `json:"windows"`
}

type hyprlandMonitor struct {
	ID              int     `json:"id"`
	Name            string  `json:"name"`
	X               int     `json:"x"`
	Y               int     `json:"y"`
	Width           int     `json:"width"`
	Height          int     `json:"height"`
	Scale           float64 `json:"scale"`
	Focused         bool    `json:"focused"`
	ActiveWorkspace struct {
		ID int `json:"id"`
	} `json:"activeWorkspace"`
}

func (h *Hyprland) activeWorkspace() (int, error) {
	resp, err := h.SendCommand("j/activeworkspace")
	if err != nil {
		return 0, err
	}
	var ws hyprlandWorkspace
	if err := json.Unmarshal([]byte(resp), &ws); err != nil {
		return 0, fmt.Errorf("hyprland: decode activeworkspace: %w", err)
	}
	return ws.ID, nil
}

func (h *Hyprland) focusedMonitor() (string, error) {
	monitors, err := h.hyprlandMonitors()
	if err != nil {
		return "", err
	}
	for _, m := range monitors {
		if m.Focused {
			return m.Name, nil
		}
	}
	if len(monitors) > 0 {
		return monitors[0].Name, nil
	}
	return "", ErrNoData
}

func (h *Hyprland) hyprlandMonitors() ([]hyprlandMonitor, error) {
	resp, err := h.SendCommand("j/monitors")
	if err != nil {
		return nil, err
	}
	var monitors []hyprlandMonitor
	if err := json.Unmarshal([]byte(resp), &monitors); err != nil {
		return nil, fmt.Errorf("hyprland: decode monitors: %w", err)
	}
	return monitors, nil
}

func (h *Hyprland) probeSplitMonitorPlugin() bool {
	resp, err := h.SendCommand("plugin list")
	if err != nil {
		return false
	}
	return strings.Contains(resp, splitMonitorPlugin)
}

func (h *Hyprland) Workspaces() ([]WorkspaceInfo, error) {
	resp, err := h.SendCommand("j/workspaces")
	if err != nil {
		return nil, err
	}
	var raw []hyprlandWorkspace
	if err := json.Unmarshal([]byte(resp), &raw); err != nil {
		return nil, fmt.Errorf("hyprland: decode workspaces: %w", err)
	}
	infos := make([]WorkspaceInfo, 0, len(raw))
	for _, ws := range raw {
		infos = append(infos, WorkspaceInfo{
			ID:       ws.ID,
			Name:     ws.Name,
			Active:   ws.ID == h.current,
			Visible:  ws.ID == h.current,
			Occupied: ws.Windows > 0,
		})
	}
	return infos, nil
}

func (h *Hyprland) Monitors() ([]MonitorInfo, error) {
	raw, err := h.hyprlandMonitors()
	if err != nil {
		return nil, err
	}
	infos := make([]MonitorInfo, 0, len(raw))
	for _, m := range raw {
		infos = append(infos, MonitorInfo{
			ID:      m.ID,
			Name:    m.Name,
			X:       m.X,
			Y:       m.Y,
			Width:   m.Width,
			Height:  m.Height,
			Scale:   m.Scale,
			Primary: m.Focused,
		})
	}
	return infos, nil
}

func (h *Hyprland) SupportsBlur() bool         { return true }
func (h *Hyprland) SupportsTransparency() bool { return true }
func (h *Hyprland) SupportsAnimations() bool   { return true }

func (h *Hyprland) SetBlur(amount float64) error {
	if !h.connected {
		return ErrNoDisplay
	}
	_, err := h.SendCommand(fmt.Sprintf("keyword decoration:blur:size %.0f", amount*10))
	return err
}

func (h *Hyprland) SetWallpaperOffset(x, y float64) error {
	// Wallpaper positioning is owned by the layer surface, not the
	// compositor protocol.
	return nil
}
