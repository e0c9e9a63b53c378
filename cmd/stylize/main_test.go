package main

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/stylize/internal/backend/cpu"
	"github.com/born-ml/stylize/internal/loader"
	"github.com/born-ml/stylize/internal/nn"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	err := newApp(&out).RunContext(context.Background(), append([]string{"stylize"}, args...))
	return out.String(), err
}

func writeImage(t *testing.T, path string, c color.NRGBA) {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 20, 12))
	for y := 0; y < 12; y++ {
		for x := 0; x < 20; x++ {
			c.R = uint8(x * 12)
			img.SetNRGBA(x, y, c)
		}
	}
	require.NoError(t, imaging.Save(img, path))
}

func TestLayersCommand(t *testing.T) {
	out, err := run(t, "layers", "--arch", "vgg11")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 1+8+8+5)
	assert.Equal(t, "normalization", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "conv_1 "))
	assert.True(t, strings.HasPrefix(lines[2], "relu_1 "))
	assert.True(t, strings.HasPrefix(lines[3], "pool_1 "))
	assert.True(t, strings.HasPrefix(lines[len(lines)-1], "pool_8 "))
}

func TestLayersUnknownArch(t *testing.T) {
	_, err := run(t, "layers", "--arch", "resnet50")
	assert.ErrorIs(t, err, loader.ErrUnknownArch)
}

func TestVersionCommand(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "stylize "+version+"\n", out)
}

func TestExportWeights(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vgg11.safetensors")
	_, err := run(t, "export-weights", "--arch", "vgg11", "--seed", "3", "--out", path)
	require.NoError(t, err)

	reader, err := loader.NewSafeTensorsReader(path)
	require.NoError(t, err)
	defer reader.Close()
	assert.Equal(t, "vgg11", reader.Metadata()["arch"])

	layers, err := loader.BuildFeatures("vgg11", reader, cpu.New())
	require.NoError(t, err)
	want, err := loader.RandomFeatures("vgg11", cpu.New(), 3)
	require.NoError(t, err)

	got := layers[0].(*nn.Conv2D[*cpu.CPUBackend]).Weight().Tensor().Data()
	assert.Equal(t, want[0].(*nn.Conv2D[*cpu.CPUBackend]).Weight().Tensor().Data(), got)
}

func TestRunCommand(t *testing.T) {
	dir := t.TempDir()
	content := filepath.Join(dir, "content.png")
	styleImg := filepath.Join(dir, "style.png")
	writeImage(t, content, color.NRGBA{G: 80, B: 160, A: 255})
	writeImage(t, styleImg, color.NRGBA{G: 200, B: 10, A: 255})

	cfgPath := filepath.Join(dir, "run.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(`
arch: vgg11
width: 16
height: 16
content_layers: [conv_2]
style_layers: [conv_1, conv_2]
`), 0o600))

	output := filepath.Join(dir, "out", "result_{}.png")
	_, err := run(t, "run", "--config", cfgPath,
		"--content", content, "--style", styleImg, "--output", output,
		"--steps", "4", "--exact-steps", "--checkpoint-every", "2", "--max-iter", "1")
	require.NoError(t, err)

	for _, name := range []string{"result_2.png", "result_4.png", "result_final.png"} {
		img, err := imaging.Open(filepath.Join(dir, "out", name))
		require.NoError(t, err, name)
		assert.Equal(t, 16, img.Bounds().Dx())
	}
}

func TestRunCommandInvalidConfig(t *testing.T) {
	_, err := run(t, "run", "--width", "0", "--optimizer", "rmsprop")
	require.Error(t, err)
	assert.ErrorContains(t, err, "image size")
	assert.ErrorContains(t, err, "rmsprop")
}

func TestRunCommandMissingImage(t *testing.T) {
	_, err := run(t, "run", "--content", filepath.Join(t.TempDir(), "none.jpg"))
	assert.ErrorContains(t, err, "none.jpg")
}
