package compositor

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"os/exec"
	"time"

	"github.com/rs/zerolog"

	"github.com/bryanchriswhite/parallaxd/internal/logger"
	"github.com/bryanchriswhite/parallaxd/internal/workspace"
)

// Niri follows niri's scrolling layout through the event stream of a
// spawned "niri msg --json event-stream" child process. Column focus
// changes map to horizontal workspace deltas, workspace activation to
// vertical ones.
type Niri struct {
	log  *zerolog.Logger
	opts Options

	cmd   *exec.Cmd
	lines chan string

	connected bool

	windows    map[uint64]niriWindow
	workspaces map[uint64]niriWorkspace
	focusedWin uint64

	currentColumn int
	currentRow    int
	monitor       string
}

// NewNiri creates an unconnected niri adapter.
func NewNiri(opts Options) *Niri {
	return &Niri{
		log:        logger.WithComponent("niri"),
		opts:       opts,
		windows:    make(map[uint64]niriWindow),
		workspaces: make(map[uint64]niriWorkspace),
	}
}

func (n *Niri) Name() string { return "niri" }
func (n *Niri) Kind() Kind   { return KindNiri }
func (n *Niri) Detect() bool { return detectNiri() }

// niriSocketPath resolves the niri IPC socket, preferring $NIRI_SOCKET and
// falling back to the conventional runtime-dir names.
func niriSocketPath() (string, error) {
	if path := os.Getenv("NIRI_SOCKET"); path != "" {
		return path, nil
	}
	for _, name := range []string{"niri.wayland-1.sock", "niri.wayland-0.sock", "niri.sock"} {
		path, err := runtimePath(name)
		if err != nil {
			return "", err
		}
		if fileExists(path) {
			return path, nil
		}
	}
	return "", fmt.Errorf("%w: no niri socket found", ErrNoDisplay)
}

type niriWindow struct {
	ID          uint64 `json:"id"`
	WorkspaceID uint64 `json:"workspace_id"`
	IsFocused   bool   `json:"is_focused"`
	Layout      struct {
		PosInScrollingLayout []int `json:"pos_in_scrolling_layout"`
	} `json:"layout"`
}

func (w niriWindow) column() int {
	if len(w.Layout.PosInScrollingLayout) > 0 {
		return w.Layout.PosInScrollingLayout[0]
	}
	return 0
}

type niriWorkspace struct {
	ID        uint64 `json:"id"`
	Idx       int    `json:"idx"`
	Output    string `json:"output"`
	IsActive  bool   `json:"is_active"`
	IsFocused bool   `json:"is_focused"`
}

// niriEvent is the tagged union the event stream emits, one JSON object
// per line keyed by the event name. Unknown variants decode to all-nil and
// are skipped.
type niriEvent struct {
	WorkspacesChanged *struct {
		Workspaces []niriWorkspace `json:"workspaces"`
	} `json:"WorkspacesChanged"`
	WorkspaceActivated *struct {
		ID      uint64 `json:"id"`
		Focused bool   `json:"focused"`
	} `json:"WorkspaceActivated"`
	WindowsChanged *struct {
		Windows []niriWindow `json:"windows"`
	} `json:"WindowsChanged"`
	WindowOpenedOrChanged *struct {
		Window niriWindow `json:"window"`
	} `json:"WindowOpenedOrChanged"`
	WindowFocusChanged *struct {
		ID *uint64 `json:"id"`
	} `json:"WindowFocusChanged"`
	WindowClosed *struct {
		ID uint64 `json:"id"`
	} `json:"WindowClosed"`
}

// Connect spawns the event-stream child process and starts draining its
// stdout into the line channel. The child is owned by the adapter and
// killed on Close.
func (n *Niri) Connect() error {
	if n.connected {
		return nil
	}

	cmd := exec.Command("niri", "msg", "--json", "event-stream")
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("niri: stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("%w: spawn niri msg: %v", ErrNoDisplay, err)
	}

	n.cmd = cmd
	n.lines = make(chan string, 64)
	go func() {
		scanner := bufio.NewScanner(stdout)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			n.lines <- scanner.Text()
		}
		close(n.lines)
	}()

	n.connected = true
	return nil
}

// Disconnect kills the event-stream child and reaps it.
func (n *Niri) Disconnect() {
	if n.cmd != nil && n.cmd.Process != nil {
		n.cmd.Process.Kill()
		n.cmd.Wait()
		n.cmd = nil
	}
	n.connected = false
}

func (n *Niri) Close() {
	n.Disconnect()
	n.windows = make(map[uint64]niriWindow)
	n.workspaces = make(map[uint64]niriWorkspace)
}

// PollEvent drains buffered stream lines without blocking. Lines that do
// not decode, and events that do not move the focused column or active
// workspace, are skipped.
func (n *Niri) PollEvent() (workspace.ChangeEvent, error) {
	if !n.connected {
		return workspace.ChangeEvent{}, ErrInvalidArgument
	}
	for {
		select {
		case line, ok := <-n.lines:
			if !ok {
				return workspace.ChangeEvent{}, ErrNoData
			}
			ev, emitted := n.handleEventLine(line)
			if emitted {
				return ev, nil
			}
		default:
			return workspace.ChangeEvent{}, ErrNoData
		}
	}
}

func (n *Niri) handleEventLine(line string) (workspace.ChangeEvent, bool) {
	var ev niriEvent
	if err := json.Unmarshal([]byte(line), &ev); err != nil {
		return workspace.ChangeEvent{}, false
	}
	return n.handleEvent(ev)
}

func (n *Niri) handleEvent(ev niriEvent) (workspace.ChangeEvent, bool) {
	switch {
	case ev.WorkspacesChanged != nil:
		n.workspaces = make(map[uint64]niriWorkspace, len(ev.WorkspacesChanged.Workspaces))
		for _, ws := range ev.WorkspacesChanged.Workspaces {
			n.workspaces[ws.ID] = ws
			if ws.IsFocused {
				n.currentRow = ws.Idx
				n.monitor = ws.Output
			}
		}

	case ev.WorkspaceActivated != nil:
		ws, known := n.workspaces[ev.WorkspaceActivated.ID]
		if !known || !ev.WorkspaceActivated.Focused {
			return workspace.ChangeEvent{}, false
		}
		if ws.Output != "" {
			n.monitor = ws.Output
		}
		if ws.Idx == n.currentRow {
			return workspace.ChangeEvent{}, false
		}
		change := workspace.ChangeEvent{
			Old:      n.rowContext(n.currentRow),
			New:      n.rowContext(ws.Idx),
			Monitor:  n.monitor,
			Vertical: true,
		}
		n.currentRow = ws.Idx
		return change, true

	case ev.WindowsChanged != nil:
		n.windows = make(map[uint64]niriWindow, len(ev.WindowsChanged.Windows))
		for _, w := range ev.WindowsChanged.Windows {
			n.windows[w.ID] = w
			if w.IsFocused {
				n.focusedWin = w.ID
				n.currentColumn = w.column()
			}
		}

	case ev.WindowOpenedOrChanged != nil:
		w := ev.WindowOpenedOrChanged.Window
		n.windows[w.ID] = w
		if w.IsFocused {
			n.focusedWin = w.ID
			return n.columnChange(w.column())
		}

	case ev.WindowFocusChanged != nil:
		if ev.WindowFocusChanged.ID == nil {
			n.focusedWin = 0
			return workspace.ChangeEvent{}, false
		}
		id := *ev.WindowFocusChanged.ID
		n.focusedWin = id
		if w, known := n.windows[id]; known {
			return n.columnChange(w.column())
		}

	case ev.WindowClosed != nil:
		delete(n.windows, ev.WindowClosed.ID)
		if n.focusedWin == ev.WindowClosed.ID {
			n.focusedWin = 0
		}
	}
	return workspace.ChangeEvent{}, false
}

// columnChange emits a horizontal change when the focused column moved.
func (n *Niri) columnChange(col int) (workspace.ChangeEvent, bool) {
	if col == n.currentColumn {
		return workspace.ChangeEvent{}, false
	}
	change := workspace.ChangeEvent{
		Old:     n.columnContext(n.currentColumn),
		New:     n.columnContext(col),
		Monitor: n.monitor,
	}
	n.currentColumn = col
	return change, true
}

func (n *Niri) columnContext(col int) workspace.Context {
	return workspace.Context{Model: workspace.ModelPerOutputNumeric, ID: col}
}

func (n *Niri) rowContext(row int) workspace.Context {
	return workspace.Context{Model: workspace.ModelPerOutputNumeric, ID: row}
}

// SendCommand writes one JSON request line to the niri control socket and
// returns the single-line reply.
func (n *Niri) SendCommand(command string) (string, error) {
	path, err := niriSocketPath()
	if err != nil {
		return "", err
	}
	conn, err := net.DialTimeout("unix", path, 2*time.Second)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNoDisplay, err)
	}
	defer conn.Close()

	if _, err := fmt.Fprintln(conn, command); err != nil {
		return "", fmt.Errorf("niri: write request: %w", err)
	}
	reply, err := bufio.NewReader(conn).ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("niri: read reply: %w", err)
	}
	return reply, nil
}

func (n *Niri) Model() workspace.Model { return workspace.ModelPerOutputNumeric }

func (n *Niri) CurrentWorkspace() workspace.Context {
	return n.columnContext(n.currentColumn)
}

func (n *Niri) Workspaces() ([]WorkspaceInfo, error) {
	infos := make([]WorkspaceInfo, 0, len(n.workspaces))
	for _, ws := range n.workspaces {
		infos = append(infos, WorkspaceInfo{
			ID:      int(ws.ID),
			Name:    fmt.Sprintf("%s:%d", ws.Output, ws.Idx),
			Active:  ws.IsFocused,
			Visible: ws.IsActive,
		})
	}
	return infos, nil
}

type niriOutputsReply struct {
	Ok struct {
		Outputs map[string]struct {
			Name    string `json:"name"`
			Logical *struct {
				X      int     `json:"x"`
				Y      int     `json:"y"`
				Width  int     `json:"width"`
				Height int     `json:"height"`
				Scale  float64 `json:"scale"`
			} `json:"logical"`
		} `json:"Outputs"`
	} `json:"Ok"`
}

func (n *Niri) Monitors() ([]MonitorInfo, error) {
	reply, err := n.SendCommand(`"Outputs"`)
	if err != nil {
		return nil, err
	}
	var decoded niriOutputsReply
	if err := json.Unmarshal([]byte(reply), &decoded); err != nil {
		return nil, fmt.Errorf("niri: decode outputs: %w", err)
	}
	infos := make([]MonitorInfo, 0, len(decoded.Ok.Outputs))
	id := 0
	for _, out := range decoded.Ok.Outputs {
		info := MonitorInfo{ID: id, Name: out.Name, Scale: 1.0}
		if out.Logical != nil {
			info.X = out.Logical.X
			info.Y = out.Logical.Y
			info.Width = out.Logical.Width
			info.Height = out.Logical.Height
			info.Scale = out.Logical.Scale
		}
		info.Primary = out.Name == n.monitor
		infos = append(infos, info)
		id++
	}
	return infos, nil
}

func (n *Niri) SupportsBlur() bool         { return false }
func (n *Niri) SupportsTransparency() bool { return true }
func (n *Niri) SupportsAnimations() bool   { return true }

func (n *Niri) SetBlur(amount float64) error { return ErrInvalidArgument }

func (n *Niri) SetWallpaperOffset(x, y float64) error { return nil }
