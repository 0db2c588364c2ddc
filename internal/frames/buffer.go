// Package frames implements shared-memory frame delivery: rendered
// wallpaper frames live in a memfd-backed buffer and are handed to a
// cooperating plugin process over a unix socket via fd passing.
package frames

import (
	"encoding/binary"
	"fmt"
	"time"

	"golang.org/x/sys/unix"
)

// Pixel formats carried in the buffer header.
const (
	FormatXRGB8888 uint32 = 0
	FormatARGB8888 uint32 = 1
)

// headerSize is the fixed on-buffer header: width, height, format and
// stride as 32-bit words, a 64-bit nanosecond timestamp, a 32-bit frame
// counter, padded to 32 bytes.
const headerSize = 32

const bytesPerPixel = 4

// Header describes one frame in the shared buffer.
type Header struct {
	Width       uint32
	Height      uint32
	Format      uint32
	Stride      uint32
	TimestampNS uint64
	FrameNumber uint32
}

// Buffer is a memfd-backed shared frame buffer, mapped read-write in this
// process and passed by fd to consumers.
type Buffer struct {
	fd     int
	size   int
	data   []byte
	header Header
}

// NewBuffer allocates and maps a shared buffer for the given dimensions.
func NewBuffer(width, height int, format uint32) (*Buffer, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("frames: invalid dimensions %dx%d", width, height)
	}

	stride := width * bytesPerPixel
	size := headerSize + stride*height

	fd, err := unix.MemfdCreate("parallaxd-frame", unix.MFD_CLOEXEC|unix.MFD_ALLOW_SEALING)
	if err != nil {
		return nil, fmt.Errorf("frames: memfd_create: %w", err)
	}
	if err := unix.Ftruncate(fd, int64(size)); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("frames: ftruncate: %w", err)
	}
	data, err := unix.Mmap(fd, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("frames: mmap: %w", err)
	}

	b := &Buffer{
		fd:   fd,
		size: size,
		data: data,
		header: Header{
			Width:  uint32(width),
			Height: uint32(height),
			Format: format,
			Stride: uint32(stride),
		},
	}
	b.writeHeader()
	return b, nil
}

// Fd returns the buffer's file descriptor for passing to a consumer.
func (b *Buffer) Fd() int { return b.fd }

// Size returns the total mapping size, header included.
func (b *Buffer) Size() int { return b.size }

// Header returns a copy of the current header.
func (b *Buffer) Header() Header { return b.header }

// Payload returns the pixel region of the mapping, stride*height bytes.
func (b *Buffer) Payload() []byte {
	return b.data[headerSize:]
}

// WriteFrame copies pixels into the shared mapping and stamps the header
// with a fresh timestamp and incremented frame counter. The pixel slice
// must be exactly stride*height bytes.
func (b *Buffer) WriteFrame(pixels []byte) error {
	payload := b.Payload()
	if len(pixels) != len(payload) {
		return fmt.Errorf("frames: payload is %d bytes, want %d", len(pixels), len(payload))
	}
	copy(payload, pixels)
	b.stamp()
	return nil
}

// WriteFrameStrided copies pixels whose row stride differs from the
// buffer's, row by row. Rows are truncated or zero-padded on the right to
// the buffer's stride.
func (b *Buffer) WriteFrameStrided(pixels []byte, srcStride int) error {
	if srcStride <= 0 {
		return fmt.Errorf("frames: invalid source stride %d", srcStride)
	}
	dstStride := int(b.header.Stride)
	if srcStride == dstStride {
		return b.WriteFrame(pixels)
	}

	rows := len(pixels) / srcStride
	if rows > int(b.header.Height) {
		rows = int(b.header.Height)
	}
	payload := b.Payload()
	rowLen := srcStride
	if rowLen > dstStride {
		rowLen = dstStride
	}
	for y := 0; y < rows; y++ {
		dst := payload[y*dstStride : y*dstStride+dstStride]
		copy(dst, pixels[y*srcStride:y*srcStride+rowLen])
		for i := rowLen; i < dstStride; i++ {
			dst[i] = 0
		}
	}
	b.stamp()
	return nil
}

// Touch stamps the header after the payload was mutated in place, e.g.
// through BlitImage.
func (b *Buffer) Touch() {
	b.stamp()
}

func (b *Buffer) stamp() {
	b.header.TimestampNS = uint64(time.Now().UnixNano())
	b.header.FrameNumber++
	b.writeHeader()
}

func (b *Buffer) writeHeader() {
	hdr := b.data[:headerSize]
	binary.LittleEndian.PutUint32(hdr[0:], b.header.Width)
	binary.LittleEndian.PutUint32(hdr[4:], b.header.Height)
	binary.LittleEndian.PutUint32(hdr[8:], b.header.Format)
	binary.LittleEndian.PutUint32(hdr[12:], b.header.Stride)
	binary.LittleEndian.PutUint64(hdr[16:], b.header.TimestampNS)
	binary.LittleEndian.PutUint32(hdr[24:], b.header.FrameNumber)
	binary.LittleEndian.PutUint32(hdr[28:], 0)
}

// ReadHeader decodes a frame header from raw bytes, the consumer-side
// counterpart of the layout writeHeader produces.
func ReadHeader(raw []byte) (Header, error) {
	if len(raw) < headerSize {
		return Header{}, fmt.Errorf("frames: header is %d bytes, want %d", len(raw), headerSize)
	}
	return Header{
		Width:       binary.LittleEndian.Uint32(raw[0:]),
		Height:      binary.LittleEndian.Uint32(raw[4:]),
		Format:      binary.LittleEndian.Uint32(raw[8:]),
		Stride:      binary.LittleEndian.Uint32(raw[12:]),
		TimestampNS: binary.LittleEndian.Uint64(raw[16:]),
		FrameNumber: binary.LittleEndian.Uint32(raw[24:]),
	}, nil
}

// Close unmaps and closes the buffer. Safe to call more than once.
func (b *Buffer) Close() error {
	var err error
	if b.data != nil {
		err = unix.Munmap(b.data)
		b.data = nil
	}
	if b.fd >= 0 {
		if cerr := unix.Close(b.fd); err == nil {
			err = cerr
		}
		b.fd = -1
	}
	return err
}
