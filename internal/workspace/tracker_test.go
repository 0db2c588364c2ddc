package workspace

import "testing"

type recordingAnimator struct {
	calls []animatorCall
}

type animatorCall struct {
	monitor   string
	offsetX   float64
	offsetY   float64
	direction int
}

func (r *recordingAnimator) StartParallax(monitor string, offsetX, offsetY float64, direction int) {
	r.calls = append(r.calls, animatorCall{monitor, offsetX, offsetY, direction})
}

func TestTrackerAccumulatesOffsets(t *testing.T) {
	anim := &recordingAnimator{}
	tr := NewTracker(100, Policy{}, anim)

	tr.Observe("DP-1", numeric(1))
	tr.HandleChange(ChangeEvent{Old: numeric(1), New: numeric(3), Monitor: "DP-1"})
	tr.HandleChange(ChangeEvent{Old: numeric(3), New: numeric(2), Monitor: "DP-1"})

	st := tr.State("DP-1")
	if !st.Known {
		t.Fatal("monitor should be known after events")
	}
	if st.OffsetX != 100 { // +200 then -100
		t.Fatalf("accumulated offset = %v, want 100", st.OffsetX)
	}
	if st.Context.ID != 2 {
		t.Fatalf("tracked context id = %d, want 2", st.Context.ID)
	}
	if len(anim.calls) != 2 {
		t.Fatalf("animator invoked %d times, want 2", len(anim.calls))
	}
	if anim.calls[0].direction <= 0 {
		t.Error("first transition should have positive direction")
	}
	if anim.calls[1].direction >= 0 {
		t.Error("second transition should have negative direction")
	}
}

func TestTrackerVerticalAxis(t *testing.T) {
	tr := NewTracker(100, Policy{}, nil)
	tr.HandleChange(ChangeEvent{
		Old:      Context{Model: ModelPerOutputNumeric, ID: 1},
		New:      Context{Model: ModelPerOutputNumeric, ID: 2},
		Monitor:  "eDP-1",
		Vertical: true,
	})

	st := tr.State("eDP-1")
	if st.OffsetX != 0 || st.OffsetY != 100 {
		t.Fatalf("offsets = (%v,%v), want (0,100)", st.OffsetX, st.OffsetY)
	}
}

func TestTrackerStealUpdatesBothMonitors(t *testing.T) {
	anim := &recordingAnimator{}
	tr := NewTracker(100, Policy{}, anim)

	tr.Observe("DP-1", numeric(3))
	tr.Observe("DP-2", numeric(1))

	tr.HandleSteal("DP-1", "DP-2", numeric(3))

	dest := tr.State("DP-2")
	if dest.Context.ID != 3 {
		t.Fatalf("destination context id = %d, want 3", dest.Context.ID)
	}
	if dest.OffsetX != 200 { // 1 -> 3
		t.Fatalf("destination offset = %v, want 200", dest.OffsetX)
	}

	src := tr.State("DP-1")
	if src.Context.ID != 0 {
		t.Fatalf("source context should be cleared, got id %d", src.Context.ID)
	}
	if src.Context.Model != ModelGlobalNumeric {
		t.Fatal("cleared context must keep the model tag")
	}
	if len(anim.calls) != 2 {
		t.Fatalf("animator invoked %d times, want 2 (both monitors)", len(anim.calls))
	}
}

func TestTrackerMoveMatchesSteal(t *testing.T) {
	trSteal := NewTracker(100, Policy{}, nil)
	trMove := NewTracker(100, Policy{}, nil)

	for _, tr := range []*Tracker{trSteal, trMove} {
		tr.Observe("A", numeric(2))
		tr.Observe("B", numeric(5))
	}

	trSteal.HandleSteal("A", "B", numeric(2))
	trMove.HandleMove("A", "B", numeric(2))

	if trSteal.State("B") != trMove.State("B") || trSteal.State("A") != trMove.State("A") {
		t.Fatal("move and steal must be the same state transition")
	}
}
