package frames

import (
	"encoding/binary"
	"fmt"
	"net"

	"github.com/rs/zerolog"
	"golang.org/x/sys/unix"

	"github.com/bryanchriswhite/parallaxd/internal/logger"
)

// EnvelopeMagic identifies a frame announcement on the wire ("HYPR").
const EnvelopeMagic uint32 = 0x48595052

// CommandFrame announces a new shared buffer.
const CommandFrame uint32 = 1

// envelopeSize is the fixed wire envelope: magic, command, width, height,
// format and size as 32-bit words plus a 32-bit fd slot. The slot is
// informational, the real descriptor travels in the SCM_RIGHTS ancillary
// data alongside.
const envelopeSize = 28

// Envelope is the fixed-size announcement written ahead of the passed fd.
type Envelope struct {
	Magic   uint32
	Command uint32
	Width   uint32
	Height  uint32
	Format  uint32
	Size    uint32
	Fd      int32
}

// EncodeEnvelope serializes an envelope little-endian.
func EncodeEnvelope(e Envelope) []byte {
	buf := make([]byte, envelopeSize)
	binary.LittleEndian.PutUint32(buf[0:], e.Magic)
	binary.LittleEndian.PutUint32(buf[4:], e.Command)
	binary.LittleEndian.PutUint32(buf[8:], e.Width)
	binary.LittleEndian.PutUint32(buf[12:], e.Height)
	binary.LittleEndian.PutUint32(buf[16:], e.Format)
	binary.LittleEndian.PutUint32(buf[20:], e.Size)
	binary.LittleEndian.PutUint32(buf[24:], uint32(e.Fd))
	return buf
}

// DecodeEnvelope parses an envelope, rejecting bad magic.
func DecodeEnvelope(raw []byte) (Envelope, error) {
	if len(raw) < envelopeSize {
		return Envelope{}, fmt.Errorf("frames: envelope is %d bytes, want %d", len(raw), envelopeSize)
	}
	e := Envelope{
		Magic:   binary.LittleEndian.Uint32(raw[0:]),
		Command: binary.LittleEndian.Uint32(raw[4:]),
		Width:   binary.LittleEndian.Uint32(raw[8:]),
		Height:  binary.LittleEndian.Uint32(raw[12:]),
		Format:  binary.LittleEndian.Uint32(raw[16:]),
		Size:    binary.LittleEndian.Uint32(raw[20:]),
		Fd:      int32(binary.LittleEndian.Uint32(raw[24:])),
	}
	if e.Magic != EnvelopeMagic {
		return Envelope{}, fmt.Errorf("frames: bad envelope magic %#x", e.Magic)
	}
	return e, nil
}

// Channel publishes shared buffers to a consumer listening on a unix
// socket. The connection is lazy and sticky: dialed on first publish,
// reused until a send fails, then re-dialed exactly once per publish.
type Channel struct {
	log  *zerolog.Logger
	path string
	conn *net.UnixConn
}

// NewChannel creates a channel targeting the given socket path. No
// connection is made until the first Publish.
func NewChannel(path string) *Channel {
	return &Channel{
		log:  logger.WithComponent("frames"),
		path: path,
	}
}

func (c *Channel) dial() error {
	addr := &net.UnixAddr{Name: c.path, Net: "unix"}
	conn, err := net.DialUnix("unix", nil, addr)
	if err != nil {
		return fmt.Errorf("frames: dial %s: %w", c.path, err)
	}
	c.conn = conn
	return nil
}

// Publish announces the buffer to the consumer, passing its fd. A failed
// send tears the connection down, re-dials and retries once; the second
// failure is returned.
func (c *Channel) Publish(buf *Buffer) error {
	if c.conn == nil {
		if err := c.dial(); err != nil {
			return err
		}
	}

	if err := c.send(buf); err != nil {
		c.log.Debug().Err(err).Msg("frame send failed, reconnecting")
		c.teardown()
		if err := c.dial(); err != nil {
			return err
		}
		if err := c.send(buf); err != nil {
			c.teardown()
			return err
		}
	}
	return nil
}

func (c *Channel) send(buf *Buffer) error {
	hdr := buf.Header()
	env := EncodeEnvelope(Envelope{
		Magic:   EnvelopeMagic,
		Command: CommandFrame,
		Width:   hdr.Width,
		Height:  hdr.Height,
		Format:  hdr.Format,
		Size:    uint32(buf.Size()),
		Fd:      -1,
	})
	rights := unix.UnixRights(buf.Fd())

	n, oobn, err := c.conn.WriteMsgUnix(env, rights, nil)
	if err != nil {
		return fmt.Errorf("frames: sendmsg: %w", err)
	}
	if n != len(env) || oobn != len(rights) {
		return fmt.Errorf("frames: short sendmsg (%d/%d data, %d/%d oob)",
			n, len(env), oobn, len(rights))
	}
	return nil
}

func (c *Channel) teardown() {
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
}

// Connected reports whether a connection is currently held.
func (c *Channel) Connected() bool { return c.conn != nil }

// Close drops the connection. The channel remains usable, the next
// Publish re-dials.
func (c *Channel) Close() error {
	c.teardown()
	return nil
}

// ReceiveFrame reads one envelope and its passed fd from a consumer-side
// connection. Used by consumers and tests.
func ReceiveFrame(conn *net.UnixConn) (Envelope, int, error) {
	env := make([]byte, envelopeSize)
	oob := make([]byte, unix.CmsgSpace(4))

	n, oobn, _, _, err := conn.ReadMsgUnix(env, oob)
	if err != nil {
		return Envelope{}, -1, fmt.Errorf("frames: recvmsg: %w", err)
	}
	decoded, err := DecodeEnvelope(env[:n])
	if err != nil {
		return Envelope{}, -1, err
	}

	msgs, err := unix.ParseSocketControlMessage(oob[:oobn])
	if err != nil {
		return Envelope{}, -1, fmt.Errorf("frames: parse control message: %w", err)
	}
	if len(msgs) == 0 {
		return decoded, -1, fmt.Errorf("frames: no fd in control message")
	}
	fds, err := unix.ParseUnixRights(&msgs[0])
	if err != nil || len(fds) == 0 {
		return decoded, -1, fmt.Errorf("frames: parse unix rights: %w", err)
	}
	return decoded, fds[0], nil
}
