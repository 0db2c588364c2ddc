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

// i3 IPC message types, shared by sway.
const (
	i3MsgRunCommand    = 0
	i3MsgGetWorkspaces = 1
	i3MsgSubscribe     = 2
	i3MsgGetOutputs    = 3
)

var i3Magic = []byte("i3-ipc")

// Sway speaks the i3 IPC protocol over $SWAYSOCK: "i3-ipc" magic plus
// little-endian length and type, then a JSON payload. One persistent
// connection is subscribed to workspace events, commands dial fresh.
type Sway struct {
	log  *zerolog.Logger
	opts Options

	sockPath  string
	eventConn net.Conn
	events    chan []byte

	connected bool
	current   int
	monitor   string
	owners    map[int]string
}

// NewSway creates an unconnected sway adapter.
func NewSway(opts Options) *Sway {
	return &Sway{
		log:    logger.WithComponent("sway"),
		opts:   opts,
		owners: make(map[int]string),
	}
}

func (s *Sway) Name() string { return "Sway" }
func (s *Sway) Kind() Kind   { return KindSway }
func (s *Sway) Detect() bool { return detectSway() }

func swaySocketPath() (string, error) {
	if path := os.Getenv("SWAYSOCK"); path != "" {
		return path, nil
	}
	if path := os.Getenv("I3SOCK"); path != "" {
		return path, nil
	}
	return "", fmt.Errorf("%w: SWAYSOCK not set", ErrNoDisplay)
}

func writeI3Message(conn net.Conn, msgType uint32, payload []byte) error {
	hdr := make([]byte, 14)
	copy(hdr, i3Magic)
	binary.LittleEndian.PutUint32(hdr[6:], uint32(len(payload)))
	binary.LittleEndian.PutUint32(hdr[10:], msgType)
	if _, err := conn.Write(hdr); err != nil {
		return err
	}
	_, err := conn.Write(payload)
	return err
}

func readI3Message(conn net.Conn) (msgType uint32, payload []byte, err error) {
	hdr := make([]byte, 14)
	if _, err := io.ReadFull(conn, hdr); err != nil {
		return 0, nil, err
	}
	if string(hdr[:6]) != string(i3Magic) {
		return 0, nil, fmt.Errorf("sway: bad magic %q", hdr[:6])
	}
	size := binary.LittleEndian.Uint32(hdr[6:])
	msgType = binary.LittleEndian.Uint32(hdr[10:])
	if size > 16*1024*1024 {
		return 0, nil, fmt.Errorf("sway: oversized message (%d bytes)", size)
	}
	payload = make([]byte, size)
	if _, err := io.ReadFull(conn, payload); err != nil {
		return 0, nil, err
	}
	return msgType, payload, nil
}

// Connect dials the socket, subscribes to workspace events and snapshots
// the focused workspace.
func (s *Sway) Connect() error {
	if s.connected {
		return nil
	}

	path, err := swaySocketPath()
	if err != nil {
		return err
	}
	s.sockPath = path

	conn, err := ipc.DialRetry(path, "Sway", s.opts.RetryAttempts,
		time.Duration(s.opts.RetryDelayMS)*time.Millisecond)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNoDisplay, err)
	}

	if err := writeI3Message(conn, i3MsgSubscribe, []byte(`["workspace"]`)); err != nil {
		conn.Close()
		return fmt.Errorf("sway: subscribe: %w", err)
	}
	if _, _, err := readI3Message(conn); err != nil {
		conn.Close()
		return fmt.Errorf("sway: subscribe ack: %w", err)
	}

	s.eventConn = conn
	s.events = make(chan []byte, 64)
	go s.readEvents(conn, s.events)
	s.connected = true

	if workspaces, err := s.swayWorkspaces(); err == nil {
		for _, ws := range workspaces {
			s.owners[ws.Num] = ws.Output
			if ws.Focused {
				s.current = ws.Num
				s.monitor = ws.Output
			}
		}
	}

	return nil
}

func (s *Sway) readEvents(conn net.Conn, events chan<- []byte) {
	for {
		_, payload, err := readI3Message(conn)
		if err != nil {
			close(events)
			return
		}
		events <- payload
	}
}

func (s *Sway) Disconnect() {
	if s.eventConn != nil {
		s.eventConn.Close()
		s.eventConn = nil
	}
	s.connected = false
}

func (s *Sway) Close() {
	s.Disconnect()
	s.owners = make(map[int]string)
}

// PollEvent drains buffered workspace events without blocking.
func (s *Sway) PollEvent() (workspace.ChangeEvent, error) {
	if !s.connected {
		return workspace.ChangeEvent{}, ErrInvalidArgument
	}
	for {
		select {
		case payload, ok := <-s.events:
			if !ok {
				return workspace.ChangeEvent{}, ErrNoData
			}
			if ev, emitted := s.handleEvent(payload); emitted {
				return ev, nil
			}
		default:
			return workspace.ChangeEvent{}, ErrNoData
		}
	}
}

type swayWorkspaceRef struct {
	Num    int    `json:"num"`
	Name   string `json:"name"`
	Output string `json:"output"`
}

type swayWorkspaceEvent struct {
	Change  string            `json:"change"`
	Current *swayWorkspaceRef `json:"current"`
	Old     *swayWorkspaceRef `json:"old"`
}

func (s *Sway) handleEvent(payload []byte) (workspace.ChangeEvent, bool) {
	var ev swayWorkspaceEvent
	if err := json.Unmarshal(payload, &ev); err != nil || ev.Current == nil {
		return workspace.ChangeEvent{}, false
	}

	switch ev.Change {
	case "focus":
		num := ev.Current.Num
		output := ev.Current.Output
		if output != "" {
			s.monitor = output
		}
		if num == s.current {
			return workspace.ChangeEvent{}, false
		}
		change := workspace.ChangeEvent{
			Old:     s.context(s.current),
			New:     s.context(num),
			Monitor: s.monitor,
		}
		s.owners[num] = s.monitor
		s.current = num
		return change, true

	case "move":
		// A workspace moved between outputs keeps its number but
		// changes owner, the source output loses it.
		num := ev.Current.Num
		newOutput := ev.Current.Output
		prevOutput, seen := s.owners[num]
		s.owners[num] = newOutput
		if !seen || prevOutput == newOutput {
			return workspace.ChangeEvent{}, false
		}
		change := workspace.ChangeEvent{
			Old:              s.context(s.current),
			New:              s.context(num),
			Monitor:          newOutput,
			SecondaryMonitor: prevOutput,
			SecondaryOld:     s.context(num),
			SecondaryNew:     workspace.Context{Model: workspace.ModelGlobalNumeric},
			Steal:            true,
		}
		s.current = num
		s.monitor = newOutput
		return change, true
	}

	return workspace.ChangeEvent{}, false
}

func (s *Sway) context(num int) workspace.Context {
	return workspace.Context{Model: workspace.ModelGlobalNumeric, ID: num}
}

// SendCommand runs one sway command over a fresh connection.
func (s *Sway) SendCommand(command string) (string, error) {
	return s.request(i3MsgRunCommand, []byte(command))
}

func (s *Sway) request(msgType uint32, payload []byte) (string, error) {
	if s.sockPath == "" {
		path, err := swaySocketPath()
		if err != nil {
			return "", err
		}
		s.sockPath = path
	}
	conn, err := net.DialTimeout("unix", s.sockPath, 2*time.Second)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNoDisplay, err)
	}
	defer conn.Close()

	if err := writeI3Message(conn, msgType, payload); err != nil {
		return "", fmt.Errorf("sway: write request: %w", err)
	}
	_, reply, err := readI3Message(conn)
	if err != nil {
		return "", fmt.Errorf("sway: read reply: %w", err)
	}
	return string(reply), nil
}

func (s *Sway) Model() workspace.Model { return workspace.ModelGlobalNumeric }

func (s *Sway) CurrentWorkspace() workspace.Context {
	return s.context(s.current)
}

type swayWorkspaceFull struct {
	Num     int    `json:"num"`
	Name    string `json:"name"`
	Output  string `json:"output"`
	Focused bool   `json:"focused"`
	Visible bool   `json:"visible"`
}

func (s *Sway) swayWorkspaces() ([]swayWorkspaceFull, error) {
	reply, err := s.request(i3MsgGetWorkspaces, nil)
	if err != nil {
		return nil, err
	}
	var workspaces []swayWorkspaceFull
	if err := json.Unmarshal([]byte(reply), &workspaces); err != nil {
		return nil, fmt.Errorf("sway: decode workspaces: %w", err)
	}
	return workspaces, nil
}

func (s *Sway) Workspaces() ([]WorkspaceInfo, error) {
	raw, err := s.swayWorkspaces()
	if err != nil {
		return nil, err
	}
	infos := make([]WorkspaceInfo, 0, len(raw))
	for _, ws := range raw {
		infos = append(infos, WorkspaceInfo{
			ID:       ws.Num,
			Name:     ws.Name,
			Active:   ws.Focused,
			Visible:  ws.Visible,
			Occupied: true,
		})
	}
	return infos, nil
}

type swayOutput struct {
	Name    string  `json:"name"`
	Active  bool    `json:"active"`
	Focused bool    `json:"focused"`
	Scale   float64 `json:"scale"`
	Rect    struct {
		X      int `json:"x"`
		Y      int `json:"y"`
		Width  int `json:"width"`
		Height int `json:"height"`
	} `json:"rect"`
}

func (s *Sway) Monitors() ([]MonitorInfo, error) {
	reply, err := s.request(i3MsgGetOutputs, nil)
	if err != nil {
		return nil, err
	}
	var outputs []swayOutput
	if err := json.Unmarshal([]byte(reply), &outputs); err != nil {
		return nil, fmt.Errorf("sway: decode outputs: %w", err)
	}
	infos := make([]MonitorInfo, 0, len(outputs))
	id := 0
	for _, out := range outputs {
		if !out.Active {
			continue
		}
		scale := out.Scale
		if scale == 0 {
			scale = 1.0
		}
		infos = append(infos, MonitorInfo{
			ID:      id,
			Name:    out.Name,
			X:       out.Rect.X,
			Y:       out.Rect.Y,
			Width:   out.Rect.Width,
			Height:  out.Rect.Height,
			Scale:   scale,
			Primary: out.Focused,
		})
		id++
	}
	return infos, nil
}

func (s *Sway) SupportsBlur() bool         { return false }
func (s *Sway) SupportsTransparency() bool { return true }
func (s *Sway) SupportsAnimations() bool   { return false }

func (s *Sway) SetBlur(amount float64) error { return ErrInvalidArgument }

func (s *Sway) SetWallpaperOffset(x, y float64) error { return nil }
