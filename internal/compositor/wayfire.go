package compositor

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/bryanchriswhite/parallaxd/internal/ipc"
	"github.com/bryanchriswhite/parallaxd/internal/logger"
	"github.com/bryanchriswhite/parallaxd/internal/workspace"
)

// wayfirePluginSocketName is the rendezvous socket a cooperating Wayfire
// plugin listens on for shared-memory frame delivery.
const wayfirePluginSocketName = "parallaxd-wayfire.sock"

// Wayfire speaks Wayfire's IPC socket: each message is a 32-bit
// little-endian length prefix followed by a JSON document. Workspaces are
// a fixed 2D grid per output, linearized row-major for delta math.
type Wayfire struct {
	log  *zerolog.Logger
	opts Options

	conn     net.Conn
	messages chan []byte

	connected bool

	gridWidth  int
	gridHeight int

	// Per-output grid position, keyed by output name.
	positions map[string]wayfirePoint
	// Per-output workspace-set id, populated only when the wsets plugin
	// emits set switches. Zero means the default set.
	wsets   map[string]int
	monitor string
}

type wayfirePoint struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// NewWayfire creates an unconnected Wayfire adapter using the configured
// grid dimensions.
func NewWayfire(opts Options) *Wayfire {
	w := &Wayfire{
		log:        logger.WithComponent("wayfire"),
		opts:       opts,
		gridWidth:  opts.GridWidth,
		gridHeight: opts.GridHeight,
		positions:  make(map[string]wayfirePoint),
		wsets:      make(map[string]int),
	}
	if w.gridWidth < 1 {
		w.gridWidth = 3
	}
	if w.gridHeight < 1 {
		w.gridHeight = 3
	}
	return w
}

func (w *Wayfire) Name() string { return "Wayfire" }
func (w *Wayfire) Kind() Kind   { return KindWayfire }
func (w *Wayfire) Detect() bool { return detectWayfire() }

// wayfireSocketPath resolves the Wayfire IPC socket: $WAYFIRE_SOCKET if
// set, then the display-suffixed runtime-dir name, then the bare one.
func wayfireSocketPath() (string, error) {
	if path := os.Getenv("WAYFIRE_SOCKET"); path != "" {
		return path, nil
	}
	if display := os.Getenv("WAYLAND_DISPLAY"); display != "" {
		path, err := runtimePath("wayfire-" + display + ".sock")
		if err != nil {
			return "", err
		}
		if fileExists(path) {
			return path, nil
		}
	}
	path, err := runtimePath("wayfire.sock")
	if err != nil {
		return "", err
	}
	if fileExists(path) {
		return path, nil
	}
	return "", fmt.Errorf("%w: no wayfire socket found", ErrNoDisplay)
}

// WayfirePluginSocketPath returns the frame-delivery plugin socket path,
// or an error when no plugin is listening. Probed once per call, the
// plugin may come and go independently of the compositor.
func WayfirePluginSocketPath() (string, error) {
	path, err := runtimePath(wayfirePluginSocketName)
	if err != nil {
		return "", err
	}
	if !fileExists(path) {
		return "", fmt.Errorf("%w: wayfire plugin socket not present", ErrNoDisplay)
	}
	return path, nil
}

// gridID linearizes a grid position row-major: (x, y) -> y*width + x.
func (w *Wayfire) gridID(x, y int) int {
	return y*w.gridWidth + x
}

func (w *Wayfire) gridContext(x, y int) workspace.Context {
	return workspace.Context{Model: workspace.ModelPerOutputNumeric, ID: w.gridID(x, y)}
}

func writeWayfireMessage(conn net.Conn, payload []byte) error {
	var hdr [4]byte
	binary.LittleEndian.PutUint32(hdr[:], uint32(len(payload)))
	if _, err := conn.Write(hdr[:]); err != nil {
		return err
	}
	_, err := conn.Write(payload)
	return err
}

func readWayfireMessage(conn net.Conn) ([]byte, error) {
	var hdr [4]byte
	if _, err := io.ReadFull(conn, hdr[:]); err != nil {
		return nil, err
	}
	size := binary.LittleEndian.Uint32(hdr[:])
	if size > 16*1024*1024 {
		return nil, fmt.Errorf("wayfire: oversized message (%d bytes)", size)
	}
	payload := make([]byte, size)
	if _, err := io.ReadFull(conn, payload); err != nil {
		return nil, err
	}
	return payload, nil
}

// Connect dials the IPC socket, subscribes to events and snapshots the
// current per-output grid positions.
func (w *Wayfire) Connect() error {
	if w.connected {
		return nil
	}

	path, err := wayfireSocketPath()
	if err != nil {
		return err
	}

	conn, err := ipc.DialRetry(path, "Wayfire", w.opts.RetryAttempts,
		time.Duration(w.opts.RetryDelayMS)*time.Millisecond)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNoDisplay, err)
	}
	w.conn = conn

	sub, _ := json.Marshal(map[string]any{
		"method": "window-rules/events/watch",
		"data":   map[string]any{},
	})
	if err := writeWayfireMessage(conn, sub); err != nil {
		conn.Close()
		w.conn = nil
		return fmt.Errorf("wayfire: subscribe: %w", err)
	}
	if _, err := readWayfireMessage(conn); err != nil {
		conn.Close()
		w.conn = nil
		return fmt.Errorf("wayfire: subscribe ack: %w", err)
	}

	w.messages = make(chan []byte, 64)
	go w.readMessages(conn, w.messages)
	w.connected = true

	if outputs, err := w.listOutputs(); err == nil {
		for _, out := range outputs {
			w.positions[out.Name] = out.Workspace
		}
		if len(outputs) > 0 {
			w.monitor = outputs[0].Name
		}
	}

	return nil
}

func (w *Wayfire) readMessages(conn net.Conn, messages chan<- []byte) {
	for {
		payload, err := readWayfireMessage(conn)
		if err != nil {
			close(messages)
			return
		}
		messages <- payload
	}
}

func (w *Wayfire) Disconnect() {
	if w.conn != nil {
		w.conn.Close()
		w.conn = nil
	}
	w.connected = false
}

func (w *Wayfire) Close() {
	w.Disconnect()
	w.positions = make(map[string]wayfirePoint)
	w.wsets = make(map[string]int)
}

// PollEvent drains buffered IPC messages without blocking. Only
// wset-workspace-changed events that actually move the grid position
// produce a change.
func (w *Wayfire) PollEvent() (workspace.ChangeEvent, error) {
	if !w.connected {
		return workspace.ChangeEvent{}, ErrInvalidArgument
	}
	for {
		select {
		case payload, ok := <-w.messages:
			if !ok {
				return workspace.ChangeEvent{}, ErrNoData
			}
			if ev, emitted := w.handleMessage(payload); emitted {
				return ev, nil
			}
		default:
			return workspace.ChangeEvent{}, ErrNoData
		}
	}
}

type wayfireEvent struct {
	Event        string        `json:"event"`
	NewWorkspace *wayfirePoint `json:"new-workspace"`
	NewWset      *int          `json:"new-wset"`
	Output       *struct {
		Name string `json:"name"`
	} `json:"output-data"`
}

func (w *Wayfire) handleMessage(payload []byte) (workspace.ChangeEvent, bool) {
	var ev wayfireEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return workspace.ChangeEvent{}, false
	}

	output := w.monitor
	if ev.Output != nil && ev.Output.Name != "" {
		output = ev.Output.Name
	}

	switch ev.Event {
	case "wset-workspace-changed":
		if ev.NewWorkspace == nil {
			return workspace.ChangeEvent{}, false
		}
		w.monitor = output

		old := w.positions[output]
		next := *ev.NewWorkspace
		if old == next {
			return workspace.ChangeEvent{}, false
		}
		w.positions[output] = next

		change := workspace.ChangeEvent{
			Old:     w.context(output, old.X, old.Y),
			New:     w.context(output, next.X, next.Y),
			Monitor: output,
		}
		// A pure row move is a vertical scroll.
		change.Vertical = old.X == next.X && old.Y != next.Y
		return change, true

	case "output-wset-changed":
		// Workspace sets are unrelated spaces: switching sets keeps the
		// wallpaper still, which the set-based model's cross-set zero
		// delta produces.
		if ev.NewWset == nil {
			return workspace.ChangeEvent{}, false
		}
		w.monitor = output

		oldSet := w.wsets[output]
		newSet := *ev.NewWset
		if oldSet == newSet {
			return workspace.ChangeEvent{}, false
		}
		w.wsets[output] = newSet

		pos := w.positions[output]
		old := w.setContext(oldSet, pos.X, pos.Y)
		change := workspace.ChangeEvent{
			Old:     old,
			New:     w.setContext(newSet, pos.X, pos.Y),
			Monitor: output,
		}
		return change, true
	}

	return workspace.ChangeEvent{}, false
}

// context builds a grid context for an output. Once the wsets plugin is
// active on the output, contexts carry the set id so cross-set deltas
// stay at zero.
func (w *Wayfire) context(output string, x, y int) workspace.Context {
	if set, ok := w.wsets[output]; ok {
		return w.setContext(set, x, y)
	}
	return w.gridContext(x, y)
}

func (w *Wayfire) setContext(set, x, y int) workspace.Context {
	return workspace.Context{
		Model: workspace.ModelSetBased,
		ID:    w.gridID(x, y),
		SetID: set,
	}
}

// SendCommand sends a bare method call and returns the raw JSON reply.
func (w *Wayfire) SendCommand(command string) (string, error) {
	if !w.connected {
		return "", ErrNoDisplay
	}
	msg, err := json.Marshal(map[string]any{"method": command, "data": map[string]any{}})
	if err != nil {
		return "", err
	}
	if err := writeWayfireMessage(w.conn, msg); err != nil {
		return "", fmt.Errorf("wayfire: write command: %w", err)
	}
	// The reply arrives on the shared stream, interleaved with events.
	deadline := time.After(2 * time.Second)
	for {
		select {
		case payload, ok := <-w.messages:
			if !ok {
				return "", ErrNoData
			}
			var probe wayfireEvent
			if json.Unmarshal(payload, &probe) == nil && probe.Event != "" {
				continue
			}
			return string(payload), nil
		case <-deadline:
			return "", fmt.Errorf("wayfire: command timed out")
		}
	}
}

type wayfireOutput struct {
	ID        int          `json:"id"`
	Name      string       `json:"name"`
	Workspace wayfirePoint `json:"workspace"`
	Geometry  struct {
		X      int `json:"x"`
		Y      int `json:"y"`
		Width  int `json:"width"`
		Height int `json:"height"`
	} `json:"geometry"`
}

func (w *Wayfire) listOutputs() ([]wayfireOutput, error) {
	reply, err := w.SendCommand("window-rules/list-outputs")
	if err != nil {
		return nil, err
	}
	var outputs []wayfireOutput
	if err := json.Unmarshal([]byte(reply), &outputs); err != nil {
		return nil, fmt.Errorf("wayfire: decode outputs: %w", err)
	}
	return outputs, nil
}

func (w *Wayfire) Model() workspace.Model { return workspace.ModelPerOutputNumeric }

func (w *Wayfire) CurrentWorkspace() workspace.Context {
	pos := w.positions[w.monitor]
	return w.context(w.monitor, pos.X, pos.Y)
}

func (w *Wayfire) Workspaces() ([]WorkspaceInfo, error) {
	pos := w.positions[w.monitor]
	infos := make([]WorkspaceInfo, 0, w.gridWidth*w.gridHeight)
	for y := 0; y < w.gridHeight; y++ {
		for x := 0; x < w.gridWidth; x++ {
			infos = append(infos, WorkspaceInfo{
				ID:      w.gridID(x, y),
				Name:    fmt.Sprintf("(%d,%d)", x, y),
				X:       x,
				Y:       y,
				Active:  x == pos.X && y == pos.Y,
				Visible: x == pos.X && y == pos.Y,
			})
		}
	}
	return infos, nil
}

func (w *Wayfire) Monitors() ([]MonitorInfo, error) {
	outputs, err := w.listOutputs()
	if err != nil {
		return nil, err
	}
	infos := make([]MonitorInfo, 0, len(outputs))
	for _, out := range outputs {
		infos = append(infos, MonitorInfo{
			ID:      out.ID,
			Name:    out.Name,
			X:       out.Geometry.X,
			Y:       out.Geometry.Y,
			Width:   out.Geometry.Width,
			Height:  out.Geometry.Height,
			Scale:   1.0,
			Primary: out.Name == w.monitor,
		})
	}
	return infos, nil
}

func (w *Wayfire) SupportsBlur() bool         { return true }
func (w *Wayfire) SupportsTransparency() bool { return true }
func (w *Wayfire) SupportsAnimations() bool   { return true }

func (w *Wayfire) SetBlur(amount float64) error { return ErrInvalidArgument }

func (w *Wayfire) SetWallpaperOffset(x, y float64) error { return nil }
