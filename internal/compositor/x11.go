package compositor

import (
	"encoding/binary"
	"fmt"
	"os"

	"github.com/BurntSushi/xgb"
	"github.com/BurntSushi/xgb/xproto"
	"github.com/rs/zerolog"

	"github.com/bryanchriswhite/parallaxd/internal/logger"
	"github.com/bryanchriswhite/parallaxd/internal/workspace"
)

// X11EWMH follows virtual desktops through EWMH root-window properties.
// Desktop switches arrive as PropertyNotify events on _NET_CURRENT_DESKTOP,
// collected by a reader goroutine and drained by PollEvent.
type X11EWMH struct {
	log *zerolog.Logger

	conn *xgb.Conn
	root xproto.Window

	connected bool
	current   int

	currentDesktopAtom xproto.Atom
	numDesktopsAtom    xproto.Atom

	desktops chan int
}

// NewX11EWMH creates an unconnected EWMH adapter.
func NewX11EWMH() *X11EWMH {
	return &X11EWMH{log: logger.WithComponent("x11-ewmh")}
}

func (x *X11EWMH) Name() string { return "X11/EWMH" }
func (x *X11EWMH) Kind() Kind   { return KindX11EWMH }
func (x *X11EWMH) Detect() bool { return detectX11() }

// Connect opens the display, interns the EWMH atoms, subscribes to root
// property changes and snapshots the current desktop.
func (x *X11EWMH) Connect() error {
	if x.connected {
		return nil
	}
	if os.Getenv("DISPLAY") == "" {
		return fmt.Errorf("%w: DISPLAY not set", ErrNoDisplay)
	}

	conn, err := xgb.NewConn()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNoDisplay, err)
	}
	x.conn = conn
	x.root = xproto.Setup(conn).DefaultScreen(conn).Root

	x.currentDesktopAtom, err = x.atom("_NET_CURRENT_DESKTOP")
	if err != nil {
		conn.Close()
		x.conn = nil
		return err
	}
	x.numDesktopsAtom, err = x.atom("_NET_NUMBER_OF_DESKTOPS")
	if err != nil {
		conn.Close()
		x.conn = nil
		return err
	}

	err = xproto.ChangeWindowAttributesChecked(conn, x.root,
		xproto.CwEventMask,
		[]uint32{xproto.EventMaskPropertyChange}).Check()
	if err != nil {
		conn.Close()
		x.conn = nil
		return fmt.Errorf("x11: subscribe to root properties: %w", err)
	}

	if desktop, err := x.readCardinal(x.root, x.currentDesktopAtom); err == nil {
		x.current = int(desktop)
	}

	x.desktops = make(chan int, 16)
	go x.readEvents(conn, x.desktops)
	x.connected = true

	if name, err := x.windowManagerName(); err == nil {
		x.log.Debug().Str("wm", name).Msg("connected to EWMH window manager")
	}

	return nil
}

// readEvents forwards desktop switches from the X event stream. Exits when
// the connection dies.
func (x *X11EWMH) readEvents(conn *xgb.Conn, desktops chan<- int) {
	for {
		ev, err := conn.WaitForEvent()
		if ev == nil && err == nil {
			close(desktops)
			return
		}
		if err != nil {
			continue
		}
		prop, ok := ev.(xproto.PropertyNotifyEvent)
		if !ok || prop.Atom != x.currentDesktopAtom {
			continue
		}
		if desktop, err := x.readCardinal(x.root, x.currentDesktopAtom); err == nil {
			select {
			case desktops <- int(desktop):
			default:
			}
		}
	}
}

func (x *X11EWMH) Disconnect() {
	if x.conn != nil {
		x.conn.Close()
		x.conn = nil
	}
	x.connected = false
}

func (x *X11EWMH) Close() {
	x.Disconnect()
}

// PollEvent drains queued desktop switches without blocking.
func (x *X11EWMH) PollEvent() (workspace.ChangeEvent, error) {
	if !x.connected {
		return workspace.ChangeEvent{}, ErrInvalidArgument
	}
	for {
		select {
		case desktop, ok := <-x.desktops:
			if !ok {
				return workspace.ChangeEvent{}, ErrNoData
			}
			if desktop == x.current {
				continue
			}
			ev := workspace.ChangeEvent{
				Old: x.context(x.current),
				New: x.context(desktop),
			}
			x.current = desktop
			return ev, nil
		default:
			return workspace.ChangeEvent{}, ErrNoData
		}
	}
}

func (x *X11EWMH) context(desktop int) workspace.Context {
	return workspace.Context{Model: workspace.ModelGlobalNumeric, ID: desktop}
}

func (x *X11EWMH) atom(name string) (xproto.Atom, error) {
	reply, err := xproto.InternAtom(x.conn, false, uint16(len(name)), name).Reply()
	if err != nil {
		return 0, fmt.Errorf("x11: intern %s: %w", name, err)
	}
	return reply.Atom, nil
}

// readCardinal reads a single 32-bit CARDINAL property.
func (x *X11EWMH) readCardinal(win xproto.Window, atom xproto.Atom) (uint32, error) {
	reply, err := xproto.GetProperty(x.conn, false, win, atom,
		xproto.AtomCardinal, 0, 1).Reply()
	if err != nil {
		return 0, err
	}
	if len(reply.Value) < 4 {
		return 0, ErrNoData
	}
	return binary.LittleEndian.Uint32(reply.Value), nil
}

// windowManagerName resolves the running WM via _NET_SUPPORTING_WM_CHECK.
func (x *X11EWMH) windowManagerName() (string, error) {
	checkAtom, err := x.atom("_NET_SUPPORTING_WM_CHECK")
	if err != nil {
		return "", err
	}
	winID, err := x.readCardinal(x.root, checkAtom)
	if err != nil {
		return "", err
	}

	nameAtom, err := x.atom("_NET_WM_NAME")
	if err != nil {
		return "", err
	}
	utf8Atom, err := x.atom("UTF8_STRING")
	if err != nil {
		return "", err
	}
	reply, err := xproto.GetProperty(x.conn, false, xproto.Window(winID),
		nameAtom, utf8Atom, 0, 256).Reply()
	if err != nil {
		return "", err
	}
	if len(reply.Value) == 0 {
		return "", ErrNoData
	}
	return string(reply.Value), nil
}

func (x *X11EWMH) SendCommand(command string) (string, error) {
	return "", ErrInvalidArgument
}

func (x *X11EWMH) Model() workspace.Model { return workspace.ModelGlobalNumeric }

func (x *X11EWMH) CurrentWorkspace() workspace.Context {
	return x.context(x.current)
}

func (x *X11EWMH) Workspaces() ([]WorkspaceInfo, error) {
	if !x.connected {
		return nil, ErrNoDisplay
	}
	count, err := x.readCardinal(x.root, x.numDesktopsAtom)
	if err != nil {
		return nil, err
	}
	infos := make([]WorkspaceInfo, 0, count)
	for i := 0; i < int(count); i++ {
		infos = append(infos, WorkspaceInfo{
			ID:      i,
			Name:    fmt.Sprintf("%d", i+1),
			Active:  i == x.current,
			Visible: i == x.current,
		})
	}
	return infos, nil
}

func (x *X11EWMH) Monitors() ([]MonitorInfo, error) {
	if !x.connected {
		return nil, ErrNoDisplay
	}
	screen := xproto.Setup(x.conn).DefaultScreen(x.conn)
	return []MonitorInfo{{
		ID:      0,
		Name:    "default",
		Width:   int(screen.WidthInPixels),
		Height:  int(screen.HeightInPixels),
		Scale:   1.0,
		Primary: true,
	}}, nil
}

func (x *X11EWMH) SupportsBlur() bool         { return false }
func (x *X11EWMH) SupportsTransparency() bool { return false }
func (x *X11EWMH) SupportsAnimations() bool   { return false }

func (x *X11EWMH) SetBlur(amount float64) error { return ErrInvalidArgument }

func (x *X11EWMH) SetWallpaperOffset(xOff, yOff float64) error { return nil }
