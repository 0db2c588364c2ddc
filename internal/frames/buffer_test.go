package frames

import (
	"bytes"
	"image"
	"image/color"
	"testing"

	"golang.org/x/sys/unix"
)

func TestBufferLayout(t *testing.T) {
	buf, err := NewBuffer(640, 480, FormatARGB8888)
	if err != nil {
		t.Fatalf("NewBuffer: %v", err)
	}
	defer buf.Close()

	hdr := buf.Header()
	if hdr.Width != 640 || hdr.Height != 480 {
		t.Fatalf("header dims %dx%d, want 640x480", hdr.Width, hdr.Height)
	}
	if hdr.Stride != 640*4 {
		t.Fatalf("stride = %d, want %d", hdr.Stride, 640*4)
	}
	if got, want := len(buf.Payload()), 640*4*480; got != want {
		t.Fatalf("payload = %d bytes, want %d", got, want)
	}
	if buf.Size() != headerSize+640*4*480 {
		t.Fatalf("size = %d, want %d", buf.Size(), headerSize+640*4*480)
	}
	if hdr.FrameNumber != 0 {
		t.Fatalf("initial frame number = %d, want 0", hdr.FrameNumber)
	}
}

func TestBufferWriteFrame(t *testing.T) {
	buf, err := NewBuffer(4, 2, FormatXRGB8888)
	if err != nil {
		t.Fatalf("NewBuffer: %v", err)
	}
	defer buf.Close()

	pixels := bytes.Repeat([]byte{0xAA}, 4*4*2)
	if err := buf.WriteFrame(pixels); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}
	if !bytes.Equal(buf.Payload(), pixels) {
		t.Fatal("payload does not match written pixels")
	}

	hdr := buf.Header()
	if hdr.FrameNumber != 1 {
		t.Fatalf("frame number = %d after write, want 1", hdr.FrameNumber)
	}
	if hdr.TimestampNS == 0 {
		t.Fatal("timestamp not stamped")
	}

	if err := buf.WriteFrame(pixels); err != nil {
		t.Fatalf("second WriteFrame: %v", err)
	}
	if got := buf.Header().FrameNumber; got != 2 {
		t.Fatalf("frame number = %d after second write, want 2", got)
	}

	if err := buf.WriteFrame(pixels[:7]); err == nil {
		t.Fatal("short payload should be rejected")
	}
}

func TestBufferWriteFrameStrided(t *testing.T) {
	buf, err := NewBuffer(4, 2, FormatXRGB8888)
	if err != nil {
		t.Fatalf("NewBuffer: %v", err)
	}
	defer buf.Close()

	// Source rows are wider than the buffer's: 6 pixels, buffer takes 4.
	srcStride := 6 * 4
	pixels := make([]byte, srcStride*2)
	for i := range pixels {
		pixels[i] = byte(i % 251)
	}
	if err := buf.WriteFrameStrided(pixels, srcStride); err != nil {
		t.Fatalf("WriteFrameStrided: %v", err)
	}

	payload := buf.Payload()
	dstStride := 4 * 4
	for y := 0; y < 2; y++ {
		got := payload[y*dstStride : y*dstStride+dstStride]
		want := pixels[y*srcStride : y*srcStride+dstStride]
		if !bytes.Equal(got, want) {
			t.Fatalf("row %d = %v, want %v", y, got, want)
		}
	}
	if buf.Header().FrameNumber != 1 {
		t.Fatalf("frame number = %d, want 1", buf.Header().FrameNumber)
	}

	// Narrow source rows pad the remainder with zeros.
	narrowStride := 2 * 4
	narrow := bytes.Repeat([]byte{0x55}, narrowStride*2)
	if err := buf.WriteFrameStrided(narrow, narrowStride); err != nil {
		t.Fatalf("narrow WriteFrameStrided: %v", err)
	}
	row := buf.Payload()[:dstStride]
	if !bytes.Equal(row[:narrowStride], narrow[:narrowStride]) {
		t.Fatal("narrow row not copied")
	}
	for _, b := range row[narrowStride:] {
		if b != 0 {
			t.Fatal("padding bytes not zeroed")
		}
	}

	if err := buf.WriteFrameStrided(narrow, 0); err == nil {
		t.Fatal("zero stride should be rejected")
	}
}

func TestBufferHeaderVisibleThroughFd(t *testing.T) {
	buf, err := NewBuffer(8, 8, FormatARGB8888)
	if err != nil {
		t.Fatalf("NewBuffer: %v", err)
	}
	defer buf.Close()

	pixels := bytes.Repeat([]byte{0x42}, 8*4*8)
	if err := buf.WriteFrame(pixels); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}

	// Read the header back through the descriptor, as a consumer would.
	raw := make([]byte, headerSize)
	if _, err := unix.Pread(buf.Fd(), raw, 0); err != nil {
		t.Fatalf("pread: %v", err)
	}
	hdr, err := ReadHeader(raw)
	if err != nil {
		t.Fatalf("ReadHeader: %v", err)
	}
	if hdr.Width != 8 || hdr.Height != 8 || hdr.Format != FormatARGB8888 {
		t.Fatalf("header through fd = %+v", hdr)
	}
	if hdr.FrameNumber != 1 {
		t.Fatalf("frame number through fd = %d, want 1", hdr.FrameNumber)
	}
}

func TestBufferRejectsBadDimensions(t *testing.T) {
	if _, err := NewBuffer(0, 10, FormatARGB8888); err == nil {
		t.Fatal("zero width should be rejected")
	}
	if _, err := NewBuffer(10, -1, FormatARGB8888); err == nil {
		t.Fatal("negative height should be rejected")
	}
}

func TestBufferDoubleClose(t *testing.T) {
	buf, err := NewBuffer(2, 2, FormatARGB8888)
	if err != nil {
		t.Fatalf("NewBuffer: %v", err)
	}
	if err := buf.Close(); err != nil {
		t.Fatalf("first Close: %v", err)
	}
	if err := buf.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}

func TestBlitImageFillsPayload(t *testing.T) {
	buf, err := NewBuffer(16, 16, FormatARGB8888)
	if err != nil {
		t.Fatalf("NewBuffer: %v", err)
	}
	defer buf.Close()

	src := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			src.Set(x, y, color.RGBA{R: 0xFF, A: 0xFF})
		}
	}

	BlitImage(buf, src)

	payload := buf.Payload()
	if payload[0] != 0xFF {
		t.Fatalf("first red byte = %#x, want 0xFF", payload[0])
	}
	if got := buf.Header().FrameNumber; got != 1 {
		t.Fatalf("frame number = %d after blit, want 1", got)
	}
}
