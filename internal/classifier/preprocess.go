package classifier

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// Layout is the channel ordering of the model input.
type Layout int

const (
	LayoutNHWC Layout = iota
	LayoutNCHW
)

// Decode reads an encoded image. Errors are *InferenceError with Op "decode".
func Decode(data []byte) (image.Image, error) {
	if len(data) == 0 {
		return nil, &InferenceError{Op: "decode", Err: fmt.Errorf("empty image")}
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, &InferenceError{Op: "decode", Err: err}
	}
	b := img.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		return nil, &InferenceError{Op: "decode", Err: fmt.Errorf("image has no pixels")}
	}
	return img, nil
}

// Preprocess centre-crops img to a square, resizes it to size x size and
// scales every channel to [-1, 1].
func Preprocess(img image.Image, size int, layout Layout) []float32 {
	dst := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.BiLinear.Scale(dst, dst.Bounds(), img, centerSquare(img.Bounds()), draw.Src, nil)

	plane := size * size
	out := make([]float32, plane*3)
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			off := dst.PixOffset(x, y)
			p := y*size + x
			for c := 0; c < 3; c++ {
				v := float32(dst.Pix[off+c])/127.5 - 1
				if layout == LayoutNCHW {
					out[c*plane+p] = v
				} else {
					out[p*3+c] = v
				}
			}
		}
	}
	return out
}

func centerSquare(b image.Rectangle) image.Rectangle {
	w, h := b.Dx(), b.Dy()
	side := w
	if h < side {
		side = h
	}
	x0 := b.Min.X + (w-side)/2
	y0 := b.Min.Y + (h-side)/2
	return image.Rect(x0, y0, x0+side, y0+side)
}
