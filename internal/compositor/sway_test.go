package compositor

import (
	"net"
	"testing"
)

func newTestSway() *Sway {
	s := NewSway(DefaultOptions())
	s.connected = true
	s.current = 1
	s.monitor = "DP-1"
	s.owners[1] = "DP-1"
	return s
}

func TestSwayFocusEvent(t *testing.T) {
	s := newTestSway()

	ev, emitted := s.handleEvent([]byte(
		`{"change":"focus","current":{"num":4,"output":"DP-1"},"old":{"num":1,"output":"DP-1"}}`))
	if !emitted {
		t.Fatal("focus change should emit")
	}
	if ev.Old.ID != 1 || ev.New.ID != 4 {
		t.Fatalf("got transition %d -> %d, want 1 -> 4", ev.Old.ID, ev.New.ID)
	}
	if ev.Steal {
		t.Fatal("focus change flagged as steal")
	}
	if s.current != 4 || s.owners[4] != "DP-1" {
		t.Fatalf("state current=%d owner=%q, want 4/DP-1", s.current, s.owners[4])
	}
}

func TestSwayMoveBetweenOutputsIsSteal(t *testing.T) {
	s := newTestSway()
	s.owners[3] = "DP-1"

	ev, emitted := s.handleEvent([]byte(
		`{"change":"move","current":{"num":3,"output":"DP-2"}}`))
	if !emitted {
		t.Fatal("cross-output move should emit")
	}
	if !ev.Steal {
		t.Fatal("cross-output move not flagged as steal")
	}
	if ev.Monitor != "DP-2" || ev.SecondaryMonitor != "DP-1" {
		t.Fatalf("got monitors %q/%q, want DP-2/DP-1", ev.Monitor, ev.SecondaryMonitor)
	}
	if s.owners[3] != "DP-2" {
		t.Fatalf("owner of 3 = %q after move, want DP-2", s.owners[3])
	}
}

func TestSwayMoveWithinOutputIgnored(t *testing.T) {
	s := newTestSway()
	s.owners[3] = "DP-1"

	if _, emitted := s.handleEvent([]byte(
		`{"change":"move","current":{"num":3,"output":"DP-1"}}`)); emitted {
		t.Fatal("same-output move should not emit")
	}
}

func TestSwayIrrelevantEventsIgnored(t *testing.T) {
	s := newTestSway()
	for _, payload := range []string{
		`{"change":"init","current":{"num":5,"output":"DP-1"}}`,
		`{"change":"focus","current":{"num":1,"output":"DP-1"}}`,
		`{"change":"rename"}`,
		`not json`,
	} {
		if _, emitted := s.handleEvent([]byte(payload)); emitted {
			t.Errorf("payload %q produced an event", payload)
		}
	}
}

func TestI3MessageFraming(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	want := []byte(`["workspace"]`)
	errCh := make(chan error, 1)
	go func() { errCh <- writeI3Message(client, i3MsgSubscribe, want) }()

	msgType, payload, err := readI3Message(server)
	if err != nil {
		t.Fatalf("readI3Message: %v", err)
	}
	if msgType != i3MsgSubscribe {
		t.Fatalf("type = %d, want %d", msgType, i3MsgSubscribe)
	}
	if string(payload) != string(want) {
		t.Fatalf("payload = %q, want %q", payload, want)
	}
	if err := <-errCh; err != nil {
		t.Fatalf("writeI3Message: %v", err)
	}
}

func TestI3BadMagicRejected(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	go func() {
		client.Write([]byte("x3-ipc\x00\x00\x00\x00\x00\x00\x00\x00"))
	}()

	if _, _, err := readI3Message(server); err == nil {
		t.Fatal("bad magic should be rejected")
	}
}
