package frames

import (
	"net"
	"path/filepath"
	"testing"
	"time"

	"golang.org/x/sys/unix"
)

func listenUnix(t *testing.T) (*net.UnixListener, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "frames.sock")
	l, err := net.ListenUnix("unix", &net.UnixAddr{Name: path, Net: "unix"})
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { l.Close() })
	return l, path
}

func TestEnvelopeRoundTrip(t *testing.T) {
	want := Envelope{
		Magic:   EnvelopeMagic,
		Command: CommandFrame,
		Width:   1920,
		Height:  1080,
		Format:  FormatARGB8888,
		Size:    headerSize + 1920*4*1080,
		Fd:      -1,
	}
	got, err := DecodeEnvelope(EncodeEnvelope(want))
	if err != nil {
		t.Fatalf("DecodeEnvelope: %v", err)
	}
	if got != want {
		t.Fatalf("round trip = %+v, want %+v", got, want)
	}
}

func TestDecodeEnvelopeRejectsBadMagic(t *testing.T) {
	raw := EncodeEnvelope(Envelope{Magic: 0xDEADBEEF})
	if _, err := DecodeEnvelope(raw); err == nil {
		t.Fatal("bad magic should be rejected")
	}
	if _, err := DecodeEnvelope(raw[:10]); err == nil {
		t.Fatal("short envelope should be rejected")
	}
}

func TestChannelPublishPassesFd(t *testing.T) {
	l, path := listenUnix(t)

	buf, err := NewBuffer(32, 16, FormatARGB8888)
	if err != nil {
		t.Fatalf("NewBuffer: %v", err)
	}
	defer buf.Close()
	if err := buf.WriteFrame(make([]byte, 32*4*16)); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}

	type result struct {
		env Envelope
		fd  int
		err error
	}
	results := make(chan result, 1)
	go func() {
		conn, err := l.AcceptUnix()
		if err != nil {
			results <- result{err: err}
			return
		}
		defer conn.Close()
		env, fd, err := ReceiveFrame(conn)
		results <- result{env: env, fd: fd, err: err}
	}()

	ch := NewChannel(path)
	defer ch.Close()
	if err := ch.Publish(buf); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if !ch.Connected() {
		t.Fatal("channel should hold the connection after a publish")
	}

	var res result
	select {
	case res = <-results:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for the consumer")
	}
	if res.err != nil {
		t.Fatalf("consumer: %v", res.err)
	}
	defer unix.Close(res.fd)

	if res.env.Width != 32 || res.env.Height != 16 {
		t.Fatalf("envelope dims %dx%d, want 32x16", res.env.Width, res.env.Height)
	}
	if res.env.Command != CommandFrame {
		t.Fatalf("command = %d, want %d", res.env.Command, CommandFrame)
	}
	if res.fd < 0 {
		t.Fatal("no fd received")
	}

	// The received descriptor maps the same memory the producer wrote.
	raw := make([]byte, headerSize)
	if _, err := unix.Pread(res.fd, raw, 0); err != nil {
		t.Fatalf("pread received fd: %v", err)
	}
	hdr, err := ReadHeader(raw)
	if err != nil {
		t.Fatalf("ReadHeader: %v", err)
	}
	if hdr.FrameNumber != 1 {
		t.Fatalf("frame number through received fd = %d, want 1", hdr.FrameNumber)
	}
}

func TestChannelPublishNoListener(t *testing.T) {
	path := filepath.Join(t.TempDir(), "absent.sock")

	buf, err := NewBuffer(4, 4, FormatARGB8888)
	if err != nil {
		t.Fatalf("NewBuffer: %v", err)
	}
	defer buf.Close()

	ch := NewChannel(path)
	if err := ch.Publish(buf); err == nil {
		t.Fatal("publish without a listener should fail")
	}
	if ch.Connected() {
		t.Fatal("failed publish should not leave a connection behind")
	}
}
