// Package imageio converts between raster image files and image tensors.
//
// Image tensors have shape [1, 3, H, W] (NCHW, RGB) with float32 values in
// [0, 1]. Decoding goes through imaging, so every format registered with
// the standard image package can be read; WebP, BMP and TIFF decoders are
// registered here.
package imageio

import (
	"fmt"
	"image"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"  // register BMP decoder
	_ "golang.org/x/image/tiff" // register TIFF decoder
	_ "golang.org/x/image/webp" // register WebP decoder

	"github.com/born-ml/stylize/internal/tensor"
)

const channels = 3

// Load reads the image at path, resizes it to exactly width x height with
// bilinear filtering and returns it as a [1, 3, height, width] tensor.
func Load[B tensor.Backend](path string, width, height int, backend B) (*tensor.Tensor[float32, B], error) {
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("load image %s: %w", path, err)
	}
	return fromResized(img, width, height, backend), nil
}

// Decode is Load for an already opened stream.
func Decode[B tensor.Backend](r io.Reader, width, height int, backend B) (*tensor.Tensor[float32, B], error) {
	img, err := imaging.Decode(r, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	return fromResized(img, width, height, backend), nil
}

func fromResized[B tensor.Backend](img image.Image, width, height int, backend B) *tensor.Tensor[float32, B] {
	if b := img.Bounds(); b.Dx() != width || b.Dy() != height {
		img = imaging.Resize(img, width, height, imaging.Linear)
	}
	return FromImage(img, backend)
}

// FromImage converts img to a [1, 3, H, W] tensor in [0, 1].
// Alpha is discarded.
func FromImage[B tensor.Backend](img image.Image, backend B) *tensor.Tensor[float32, B] {
	nrgba := imaging.Clone(img)
	w, h := nrgba.Rect.Dx(), nrgba.Rect.Dy()

	t := tensor.Zeros[float32](tensor.Shape{1, channels, h, w}, backend)
	data := t.Data()
	plane := w * h
	for y := 0; y < h; y++ {
		row := nrgba.Pix[y*nrgba.Stride:]
		for x := 0; x < w; x++ {
			px := row[x*4:]
			i := y*w + x
			data[i] = float32(px[0]) / 255
			data[plane+i] = float32(px[1]) / 255
			data[2*plane+i] = float32(px[2]) / 255
		}
	}
	return t
}

// ToImage converts a [1, 3, H, W] tensor to an opaque NRGBA image.
// Values are clamped to [0, 1] and rounded to the nearest 8-bit level;
// the tensor itself is not modified.
func ToImage[B tensor.Backend](t *tensor.Tensor[float32, B]) (*image.NRGBA, error) {
	shape := t.Shape()
	if len(shape) != 4 || shape[0] != 1 || shape[1] != channels {
		return nil, fmt.Errorf("image tensor must have shape [1 3 H W], got %v", shape)
	}
	h, w := shape[2], shape[3]
	data := t.Data()
	plane := w * h

	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		row := img.Pix[y*img.Stride:]
		for x := 0; x < w; x++ {
			px := row[x*4:]
			i := y*w + x
			px[0] = toByte(data[i])
			px[1] = toByte(data[plane+i])
			px[2] = toByte(data[2*plane+i])
			px[3] = 0xff
		}
	}
	return img, nil
}

func toByte(v float32) uint8 {
	switch {
	case v <= 0 || v != v: // NaN maps to black
		return 0
	case v >= 1:
		return 0xff
	}
	return uint8(math.Round(float64(v) * 255))
}

// Save writes t to path, creating the parent directory if needed.
// The format follows the file extension.
func Save[B tensor.Backend](t *tensor.Tensor[float32, B], path string) error {
	img, err := ToImage(t)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("save image: %w", err)
		}
	}
	if err := imaging.Save(img, path, imaging.JPEGQuality(95)); err != nil {
		return fmt.Errorf("save image %s: %w", path, err)
	}
	return nil
}

// CheckpointPath interpolates tag into template. Every "{}" is replaced;
// a template without one gets "_tag" inserted before its extension.
//
//	CheckpointPath("outputs/out_{}.jpg", "50") // outputs/out_50.jpg
//	CheckpointPath("outputs/out.png", "final") // outputs/out_final.png
func CheckpointPath(template, tag string) string {
	if strings.Contains(template, "{}") {
		return strings.ReplaceAll(template, "{}", tag)
	}
	ext := filepath.Ext(template)
	return strings.TrimSuffix(template, ext) + "_" + tag + ext
}

// EvalPath is CheckpointPath with an evaluation count.
func EvalPath(template string, n int) string {
	return CheckpointPath(template, strconv.Itoa(n))
}
