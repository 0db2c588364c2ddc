package compositor

import (
	"testing"
)

func newTestNiri() *Niri {
	n := NewNiri(DefaultOptions())
	n.connected = true
	return n
}

func feedNiri(t *testing.T, n *Niri, line string) (emitted bool) {
	t.Helper()
	_, emitted = n.handleEventLine(line)
	return emitted
}

func TestNiriColumnFocusChange(t *testing.T) {
	n := newTestNiri()

	if feedNiri(t, n, `{"WindowsChanged":{"windows":[`+
		`{"id":1,"workspace_id":1,"is_focused":true,"layout":{"pos_in_scrolling_layout":[0,0]}},`+
		`{"id":2,"workspace_id":1,"is_focused":false,"layout":{"pos_in_scrolling_layout":[3,0]}}]}}`) {
		t.Fatal("WindowsChanged snapshot should not emit a change")
	}
	if n.currentColumn != 0 {
		t.Fatalf("currentColumn = %d after snapshot, want 0", n.currentColumn)
	}

	ev, emitted := n.handleEventLine(`{"WindowFocusChanged":{"id":2}}`)
	if !emitted {
		t.Fatal("focus jump to column 3 should emit a change")
	}
	if ev.Old.ID != 0 || ev.New.ID != 3 {
		t.Fatalf("got transition %d -> %d, want 0 -> 3", ev.Old.ID, ev.New.ID)
	}
	if ev.Vertical {
		t.Fatal("column change flagged vertical")
	}
}

func TestNiriSameColumnFocusIgnored(t *testing.T) {
	n := newTestNiri()
	feedNiri(t, n, `{"WindowsChanged":{"windows":[`+
		`{"id":1,"workspace_id":1,"is_focused":true,"layout":{"pos_in_scrolling_layout":[2,0]}},`+
		`{"id":2,"workspace_id":1,"is_focused":false,"layout":{"pos_in_scrolling_layout":[2,1]}}]}}`)

	if feedNiri(t, n, `{"WindowFocusChanged":{"id":2}}`) {
		t.Fatal("focus move within the same column should not emit a change")
	}
}

func TestNiriWorkspaceActivatedVertical(t *testing.T) {
	n := newTestNiri()
	feedNiri(t, n, `{"WorkspacesChanged":{"workspaces":[`+
		`{"id":10,"idx":1,"output":"eDP-1","is_active":true,"is_focused":true},`+
		`{"id":11,"idx":2,"output":"eDP-1","is_active":false,"is_focused":false}]}}`)
	if n.currentRow != 1 || n.monitor != "eDP-1" {
		t.Fatalf("snapshot state row=%d monitor=%q, want 1/eDP-1", n.currentRow, n.monitor)
	}

	ev, emitted := n.handleEventLine(`{"WorkspaceActivated":{"id":11,"focused":true}}`)
	if !emitted {
		t.Fatal("activation of a different workspace should emit")
	}
	if !ev.Vertical {
		t.Fatal("workspace activation should be a vertical change")
	}
	if ev.Old.ID != 1 || ev.New.ID != 2 {
		t.Fatalf("got transition %d -> %d, want 1 -> 2", ev.Old.ID, ev.New.ID)
	}
	if ev.Monitor != "eDP-1" {
		t.Fatalf("monitor = %q, want eDP-1", ev.Monitor)
	}
}

func TestNiriUnfocusedActivationIgnored(t *testing.T) {
	n := newTestNiri()
	feedNiri(t, n, `{"WorkspacesChanged":{"workspaces":[`+
		`{"id":10,"idx":1,"output":"eDP-1","is_active":true,"is_focused":true},`+
		`{"id":11,"idx":2,"output":"HDMI-A-1","is_active":true,"is_focused":false}]}}`)

	if feedNiri(t, n, `{"WorkspaceActivated":{"id":11,"focused":false}}`) {
		t.Fatal("activation without focus should not emit")
	}
	if feedNiri(t, n, `{"WorkspaceActivated":{"id":99,"focused":true}}`) {
		t.Fatal("activation of an unknown workspace should not emit")
	}
}

func TestNiriWindowClosedClearsFocus(t *testing.T) {
	n := newTestNiri()
	feedNiri(t, n, `{"WindowsChanged":{"windows":[`+
		`{"id":7,"workspace_id":1,"is_focused":true,"layout":{"pos_in_scrolling_layout":[1,0]}}]}}`)
	if n.focusedWin != 7 {
		t.Fatalf("focusedWin = %d, want 7", n.focusedWin)
	}

	feedNiri(t, n, `{"WindowClosed":{"id":7}}`)
	if n.focusedWin != 0 {
		t.Fatalf("focusedWin = %d after close, want 0", n.focusedWin)
	}
	if _, ok := n.windows[7]; ok {
		t.Fatal("closed window still tracked")
	}
}

func TestNiriMalformedAndUnknownLines(t *testing.T) {
	n := newTestNiri()
	for _, line := range []string{
		"not json at all",
		"{}",
		`{"KeyboardLayoutsChanged":{"keyboard_layouts":{}}}`,
		`{"WindowFocusChanged":{"id":null}}`,
	} {
		if feedNiri(t, n, line) {
			t.Errorf("line %q produced an event", line)
		}
	}
}

func TestNiriPollBeforeConnect(t *testing.T) {
	n := NewNiri(DefaultOptions())
	if _, err := n.PollEvent(); err != ErrInvalidArgument {
		t.Fatalf("got %v, want ErrInvalidArgument", err)
	}
}
