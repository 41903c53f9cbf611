// Package escpos encodes monochrome images as ESC/POS raster print jobs.
package escpos

import (
	"fmt"
	"image"
	"image/color"
)

// Threshold is the luminance under which a pixel is printed black.
const Threshold = 160

var (
	initialize   = []byte{0x1B, 0x40}
	alignCenter  = []byte{0x1B, 0x61, 0x01}
	rasterHeader = []byte{0x1D, 0x76, 0x30, 0x00}
	feedAndCut   = []byte{0x0A, 0x0A, 0x1D, 0x56, 0x00}
)

// Bitmap is a 1-bit image packed 8 pixels per byte, MSB first,
// row-major. Every row takes WidthBytes bytes.
type Bitmap struct {
	Width      int // in pixels
	Height     int // in pixels
	WidthBytes int
	Data       []byte
}

// NewBitmap returns a white bitmap with the given size in pixels.
func NewBitmap(width, height int) *Bitmap {
	wb := (width + 7) / 8
	return &Bitmap{
		Width:      width,
		Height:     height,
		WidthBytes: wb,
		Data:       make([]byte, wb*height),
	}
}

// Set marks the pixel at (x, y) as black.
func (b *Bitmap) Set(x, y int) {
	b.Data[y*b.WidthBytes+(x>>3)] |= 1 << uint(7-x%8)
}

// Black reports whether the pixel at (x, y) is black.
func (b *Bitmap) Black(x, y int) bool {
	return b.Data[y*b.WidthBytes+(x>>3)]&(1<<uint(7-x%8)) != 0
}

// Monochrome converts img to a Bitmap. Translucent pixels are
// composited over white before the luminance test.
func Monochrome(img image.Image) *Bitmap {
	bounds := img.Bounds()
	bm := NewBitmap(bounds.Dx(), bounds.Dy())
	for y := 0; y < bm.Height; y++ {
		for x := 0; x < bm.Width; x++ {
			c := color.NRGBAModel.Convert(img.At(bounds.Min.X+x, bounds.Min.Y+y)).(color.NRGBA)
			if luminance(c) < Threshold {
				bm.Set(x, y)
			}
		}
	}
	return bm
}

func luminance(c color.NRGBA) float64 {
	a := float64(c.A) / 255
	r := float64(c.R)*a + 255*(1-a)
	g := float64(c.G)*a + 255*(1-a)
	b := float64(c.B)*a + 255*(1-a)
	return 0.299*r + 0.587*g + 0.114*b
}

// RasterImage frames the bitmap as a GS v 0 raster command: the
// 4 byte header, little-endian width in bytes and height in pixels,
// followed by the packed rows.
func RasterImage(bm *Bitmap) ([]byte, error) {
	if bm.WidthBytes > 0xFFFF || bm.Height > 0xFFFF {
		return nil, fmt.Errorf("bitmap of %d bytes x %d rows does not fit a raster command", bm.WidthBytes, bm.Height)
	}
	if len(bm.Data) != bm.WidthBytes*bm.Height {
		return nil, fmt.Errorf("bitmap data has %d bytes, expected %d", len(bm.Data), bm.WidthBytes*bm.Height)
	}
	cmd := make([]byte, 0, len(rasterHeader)+4+len(bm.Data))
	cmd = append(cmd, rasterHeader...)
	cmd = append(cmd,
		byte(bm.WidthBytes&0xFF), byte(bm.WidthBytes>>8&0xFF),
		byte(bm.Height&0xFF), byte(bm.Height>>8&0xFF),
	)
	return append(cmd, bm.Data...), nil
}

// Job returns the full printer payload for a bitmap: initialize,
// center alignment, the raster image and a feed-and-cut.
func Job(bm *Bitmap) ([]byte, error) {
	raster, err := RasterImage(bm)
	if err != nil {
		return nil, err
	}
	payload := make([]byte, 0, len(initialize)+len(alignCenter)+len(raster)+len(feedAndCut))
	payload = append(payload, initialize...)
	payload = append(payload, alignCenter...)
	payload = append(payload, raster...)
	return append(payload, feedAndCut...), nil
}

// EncodeImage thresholds img and returns its print job.
func EncodeImage(img image.Image) ([]byte, error) {
	return Job(Monochrome(img))
}
