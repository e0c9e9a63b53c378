package imageio

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/stylize/internal/backend/cpu"
	"github.com/born-ml/stylize/internal/tensor"
)

func gradient(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.NRGBA{R: uint8(x * 30), G: uint8(y * 30), B: 200, A: 255})
		}
	}
	return img
}

func TestFromImageLayout(t *testing.T) {
	backend := cpu.New()
	img := gradient(4, 3)

	x := FromImage(img, backend)
	require.Equal(t, tensor.Shape{1, 3, 3, 4}, x.Shape())

	assert.InDelta(t, 60.0/255, x.At(0, 0, 1, 2), 1e-6) // R = x*30 at x=2
	assert.InDelta(t, 30.0/255, x.At(0, 1, 1, 2), 1e-6) // G = y*30 at y=1
	assert.InDelta(t, 200.0/255, x.At(0, 2, 2, 3), 1e-6)
}

func TestToImageRoundTrip(t *testing.T) {
	backend := cpu.New()
	img := gradient(5, 5)

	out, err := ToImage(FromImage(img, backend))
	require.NoError(t, err)
	assert.Equal(t, img.Pix, out.Pix)
}

func TestToImageClampsAndRounds(t *testing.T) {
	backend := cpu.New()
	x, err := tensor.FromSlice([]float32{-0.5, 1.5, 0.5}, tensor.Shape{1, 3, 1, 1}, backend)
	require.NoError(t, err)

	img, err := ToImage(x)
	require.NoError(t, err)
	assert.Equal(t, []uint8{0, 255, 128, 255}, img.Pix)

	// Source tensor untouched.
	assert.Equal(t, []float32{-0.5, 1.5, 0.5}, x.Data())
}

func TestToImageRejectsShape(t *testing.T) {
	backend := cpu.New()
	_, err := ToImage(tensor.Zeros[float32](tensor.Shape{3, 4, 4}, backend))
	assert.ErrorContains(t, err, "[1 3 H W]")
}

func TestSaveLoad(t *testing.T) {
	backend := cpu.New()
	path := filepath.Join(t.TempDir(), "nested", "out.png")

	src := FromImage(gradient(6, 4), backend)
	require.NoError(t, Save(src, path))

	loaded, err := Load(path, 6, 4, backend)
	require.NoError(t, err)
	assert.Equal(t, src.Data(), loaded.Data())
}

func TestLoadResizes(t *testing.T) {
	backend := cpu.New()
	path := filepath.Join(t.TempDir(), "in.png")
	require.NoError(t, imaging.Save(gradient(10, 7), path))

	x, err := Load(path, 8, 8, backend)
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{1, 3, 8, 8}, x.Shape())
	for _, v := range x.Data() {
		assert.GreaterOrEqual(t, v, float32(0))
		assert.LessOrEqual(t, v, float32(1))
	}
}

func TestDecode(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, gradient(2, 2)))

	x, err := Decode(&buf, 2, 2, cpu.New())
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{1, 3, 2, 2}, x.Shape())
}

func TestLoadErrors(t *testing.T) {
	backend := cpu.New()
	dir := t.TempDir()

	_, err := Load(filepath.Join(dir, "missing.jpg"), 4, 4, backend)
	assert.Error(t, err)

	garbage := filepath.Join(dir, "garbage.png")
	require.NoError(t, os.WriteFile(garbage, []byte("not an image"), 0o600))
	_, err = Load(garbage, 4, 4, backend)
	assert.ErrorContains(t, err, "garbage.png")
}

func TestCheckpointPath(t *testing.T) {
	assert.Equal(t, "outputs/output_50.jpg", EvalPath("outputs/output_{}.jpg", 50))
	assert.Equal(t, "a_7_7.png", EvalPath("a_{}_{}.png", 7))
	assert.Equal(t, "out_final.png", CheckpointPath("out.png", "final"))
	assert.Equal(t, "dir.v2/out_3", EvalPath("dir.v2/out", 3))
}
