package compositor

import (
	"testing"

	"github.com/bryanchriswhite/parallaxd/internal/workspace"
)

func newTestHyprland() *Hyprland {
	h := NewHyprland(DefaultOptions())
	h.connected = true
	h.current = 1
	h.monitor = "DP-1"
	h.owners[1] = "DP-1"
	return h
}

func TestHyprlandWorkspaceLine(t *testing.T) {
	h := newTestHyprland()

	ev, ok := h.handleLine("workspace>>3")
	if !ok {
		t.Fatal("expected an event for workspace>>3")
	}
	if ev.Old.ID != 1 || ev.New.ID != 3 {
		t.Fatalf("got transition %d -> %d, want 1 -> 3", ev.Old.ID, ev.New.ID)
	}
	if ev.Monitor != "DP-1" {
		t.Fatalf("got monitor %q, want DP-1", ev.Monitor)
	}
	if ev.Steal {
		t.Fatal("plain workspace switch flagged as steal")
	}
	if h.current != 3 {
		t.Fatalf("current = %d after event, want 3", h.current)
	}
	if h.owners[3] != "DP-1" {
		t.Fatalf("owner of 3 = %q, want DP-1", h.owners[3])
	}
}

func TestHyprlandRepeatedWorkspaceIgnored(t *testing.T) {
	h := newTestHyprland()

	if _, ok := h.handleLine("workspace>>1"); ok {
		t.Fatal("same-workspace event should not emit a change")
	}
}

func TestHyprlandFocusedMonSteal(t *testing.T) {
	h := newTestHyprland()

	// DP-1 takes workspace 3 for the first time: a plain change.
	ev, ok := h.handleLine("focusedmon>>DP-1,3")
	if !ok {
		t.Fatal("expected an event for first focusedmon")
	}
	if ev.Steal {
		t.Fatal("first observation of workspace 3 flagged as steal")
	}
	if h.owners[3] != "DP-1" {
		t.Fatalf("owner of 3 = %q, want DP-1", h.owners[3])
	}

	// DP-2 now claims the same workspace: a steal from DP-1.
	ev, ok = h.handleLine("focusedmon>>DP-2,3")
	if !ok {
		t.Fatal("expected an event for the steal")
	}
	if !ev.Steal {
		t.Fatal("cross-monitor reassignment not flagged as steal")
	}
	if ev.Monitor != "DP-2" || ev.SecondaryMonitor != "DP-1" {
		t.Fatalf("got monitors %q/%q, want DP-2/DP-1", ev.Monitor, ev.SecondaryMonitor)
	}
	if ev.New.ID != 3 || ev.SecondaryOld.ID != 3 {
		t.Fatalf("steal should carry workspace 3 on both sides, got %d/%d",
			ev.New.ID, ev.SecondaryOld.ID)
	}
	if ev.SecondaryNew.ID != 0 {
		t.Fatalf("source monitor context should be cleared, got id %d", ev.SecondaryNew.ID)
	}
	if h.owners[3] != "DP-2" {
		t.Fatalf("owner of 3 = %q after steal, want DP-2", h.owners[3])
	}
}

func TestHyprlandMalformedLines(t *testing.T) {
	h := newTestHyprland()

	for _, line := range []string{
		"",
		"workspace>>abc",
		"focusedmon>>nocomma",
		"focusedmon>>DP-1,notanumber",
		"openwindow>>deadbeef,2,foo,bar",
		"no-separator-at-all",
	} {
		if _, ok := h.handleLine(line); ok {
			t.Errorf("line %q produced an event", line)
		}
	}
	if h.current != 1 {
		t.Fatalf("malformed lines mutated current workspace to %d", h.current)
	}
}

func TestHyprlandModelFollowsPlugin(t *testing.T) {
	h := newTestHyprland()
	if h.Model() != workspace.ModelGlobalNumeric {
		t.Fatalf("default model = %v, want global numeric", h.Model())
	}
	h.model = workspace.ModelPerOutputNumeric
	if got := h.CurrentWorkspace().Model; got != workspace.ModelPerOutputNumeric {
		t.Fatalf("context model = %v, want per-output", got)
	}
}

func TestHyprlandPollBeforeConnect(t *testing.T) {
	h := NewHyprland(DefaultOptions())
	if _, err := h.PollEvent(); err != ErrInvalidArgument {
		t.Fatalf("got %v, want ErrInvalidArgument", err)
	}
}
