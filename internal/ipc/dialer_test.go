package ipc

import (
	"net"
	"path/filepath"
	"testing"
	"time"
)

func TestDialRetryExhaustsAttempts(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.sock")

	const attempts = 4
	delay := 20 * time.Millisecond

	start := time.Now()
	conn, err := DialRetry(path, "test", attempts, delay)
	elapsed := time.Since(start)

	if err == nil {
		conn.Close()
		t.Fatal("expected failure dialing a socket that never accepts")
	}
	if min := time.Duration(attempts-1) * delay; elapsed < min {
		t.Fatalf("elapsed %v, want at least %v", elapsed, min)
	}
}

func TestDialRetrySucceedsOnceListenerAppears(t *testing.T) {
	path := filepath.Join(t.TempDir(), "late.sock")
	delay := 20 * time.Millisecond

	listening := make(chan net.Listener, 1)
	go func() {
		time.Sleep(2 * delay)
		l, err := net.Listen("unix", path)
		if err != nil {
			close(listening)
			return
		}
		listening <- l
	}()

	conn, err := DialRetry(path, "test", 20, delay)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	conn.Close()

	if l, ok := <-listening; ok {
		l.Close()
	}
}

func TestDialRetryImmediateSuccess(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ready.sock")
	l, err := net.Listen("unix", path)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer l.Close()

	conn, err := DialRetry(path, "test", 1, time.Millisecond)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	conn.Close()
}
