package frames

import (
	"image"

	xdraw "golang.org/x/image/draw"
)

// BlitImage scales an image into the buffer's pixel region and stamps the
// header. The source may be any size; it is resampled to fill the buffer.
func BlitImage(dst *Buffer, src image.Image) {
	hdr := dst.Header()
	target := &image.RGBA{
		Pix:    dst.Payload(),
		Stride: int(hdr.Stride),
		Rect:   image.Rect(0, 0, int(hdr.Width), int(hdr.Height)),
	}
	xdraw.ApproxBiLinear.Scale(target, target.Rect, src, src.Bounds(), xdraw.Src, nil)
	dst.Touch()
}
