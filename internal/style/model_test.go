package style_test

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/stylize/internal/autodiff"
	"github.com/born-ml/stylize/internal/backend/cpu"
	"github.com/born-ml/stylize/internal/nn"
	"github.com/born-ml/stylize/internal/style"
	"github.com/born-ml/stylize/internal/tensor"
)

type adBackend = *autodiff.AutodiffBackend[*cpu.CPUBackend]

var (
	imagenetMean = []float32{0.485, 0.456, 0.406}
	imagenetStd  = []float32{0.229, 0.224, 0.225}
)

// tinyNet is conv_1 relu_1 pool_1 conv_2 relu_2 conv_3.
func tinyNet(backend adBackend, seed int64) []nn.Module[adBackend] {
	rng := rand.New(rand.NewSource(seed))
	return []nn.Module[adBackend]{
		nn.NewConv2D(3, 4, 3, 3, 1, 1, true, rng, backend),
		nn.NewInPlaceReLU[adBackend](),
		nn.NewMaxPool2D(2, 2, backend),
		nn.NewConv2D(4, 4, 3, 3, 1, 1, true, rng, backend),
		nn.NewInPlaceReLU[adBackend](),
		nn.NewConv2D(4, 4, 3, 3, 1, 1, true, rng, backend),
	}
}

func randImage(backend adBackend, seed int64, size int) *tensor.Tensor[float32, adBackend] {
	return tensor.Rand[float32](tensor.Shape{1, 3, size, size}, rand.New(rand.NewSource(seed)), backend)
}

func modelConfig(content, styles []string) style.ModelConfig {
	return style.ModelConfig{Mean: imagenetMean, Std: imagenetStd, ContentLayers: content, StyleLayers: styles}
}

// spy is a module the assembler does not know.
type spy struct{ calls int }

func (s *spy) Forward(x *tensor.Tensor[float32, adBackend]) *tensor.Tensor[float32, adBackend] {
	s.calls++
	return x
}

func (s *spy) Parameters() []*nn.Parameter[adBackend] { return nil }

func TestLayerNames(t *testing.T) {
	backend := autodiff.New(cpu.New())
	names, err := style.LayerNames(tinyNet(backend, 1))
	require.NoError(t, err)
	assert.Equal(t, []string{"conv_1", "relu_1", "pool_1", "conv_2", "relu_2", "conv_3"}, names)

	bn := []nn.Module[adBackend]{
		nn.NewConv2D(3, 2, 3, 3, 1, 1, true, rand.New(rand.NewSource(1)), backend),
		nn.NewBatchNorm2D(2, 1e-5, backend),
		nn.NewReLU[adBackend](),
	}
	names, err = style.LayerNames(bn)
	require.NoError(t, err)
	assert.Equal(t, []string{"conv_1", "bn_1", "relu_1"}, names)
}

func TestBuildModelPlacesProbes(t *testing.T) {
	backend := autodiff.New(cpu.New())
	img := randImage(backend, 2, 8)

	model, err := style.BuildModel(tinyNet(backend, 1), modelConfig([]string{"conv_2"}, []string{"conv_1", "conv_2"}), img, img, backend)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"normalization",
		"conv_1", "style_loss_1",
		"relu_1", "pool_1",
		"conv_2", "content_loss_2", "style_loss_2",
	}, model.Names())
	assert.Len(t, model.ContentProbes(), 1)
	assert.Len(t, model.StyleProbes(), 2)

	// Truncated after the last probe.
	last := model.Pipeline().Module(model.Pipeline().Len() - 1)
	assert.IsType(t, &nn.StyleLoss[adBackend]{}, last)

	// Targets were captured without recording.
	assert.Equal(t, 0, backend.Tape().NumOps())
}

func TestBuildModelLastElementIsProbe(t *testing.T) {
	backend := autodiff.New(cpu.New())
	img := randImage(backend, 3, 8)

	cases := []style.ModelConfig{
		modelConfig([]string{"conv_1"}, nil),
		modelConfig(nil, []string{"conv_3"}),
		modelConfig([]string{"conv_3"}, []string{"conv_1"}),
		modelConfig([]string{"relu_1"}, []string{"pool_1"}),
	}
	for _, cfg := range cases {
		model, err := style.BuildModel(tinyNet(backend, 1), cfg, img, img, backend)
		require.NoError(t, err)

		last := model.Pipeline().Module(model.Pipeline().Len() - 1)
		switch last.(type) {
		case *nn.ContentLoss[adBackend], *nn.StyleLoss[adBackend]:
		default:
			t.Errorf("%v: last stage is %T", cfg, last)
		}
		assert.Len(t, model.ContentProbes(), len(cfg.ContentLayers))
		assert.Len(t, model.StyleProbes(), len(cfg.StyleLayers))
	}
}

func TestBuildModelSameBlockProbes(t *testing.T) {
	backend := autodiff.New(cpu.New())
	styleImg := randImage(backend, 11, 8)
	contentImg := randImage(backend, 12, 8)

	cfg := modelConfig([]string{"relu_1"}, []string{"conv_1", "relu_1"})
	model, err := style.BuildModel(tinyNet(backend, 1), cfg, styleImg, contentImg, backend)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"normalization",
		"conv_1", "style_loss_1",
		"relu_1", "content_loss_1", "style_loss_relu_1",
	}, model.Names())

	// Every probe sits in the chain right after the layer it measures.
	pipe := model.Pipeline()
	styles := model.StyleProbes()
	require.Len(t, styles, 2)
	assert.Same(t, styles[0], pipe.Module(pipe.Index("conv_1")+1))
	assert.Same(t, styles[1], pipe.Module(pipe.Index("style_loss_relu_1")))
	require.Len(t, model.ContentProbes(), 1)
	assert.Same(t, model.ContentProbes()[0], pipe.Module(pipe.Index("relu_1")+1))
	assert.IsType(t, &nn.StyleLoss[adBackend]{}, pipe.Module(pipe.Len()-1))

	// Both style probes are refreshed by a forward pass.
	model.Forward(contentImg)
	for i, probe := range styles {
		assert.Greater(t, probe.Loss().Item(), float32(0), "style probe %d", i)
	}
}

func TestBuildModelReplacesInPlaceReLU(t *testing.T) {
	backend := autodiff.New(cpu.New())
	img := randImage(backend, 4, 8)

	model, err := style.BuildModel(tinyNet(backend, 1), modelConfig([]string{"conv_3"}, nil), img, img, backend)
	require.NoError(t, err)

	pipe := model.Pipeline()
	for _, name := range []string{"relu_1", "relu_2"} {
		relu, ok := pipe.Module(pipe.Index(name)).(*nn.ReLU[adBackend])
		require.True(t, ok, name)
		assert.False(t, relu.InPlace(), name)
	}
}

func TestBuildModelFreezesWeights(t *testing.T) {
	backend := autodiff.New(cpu.New())
	img := randImage(backend, 5, 8)
	layers := tinyNet(backend, 1)

	_, err := style.BuildModel(layers, modelConfig([]string{"conv_2"}, nil), img, img, backend)
	require.NoError(t, err)

	conv := layers[0].(*nn.Conv2D[adBackend])
	assert.True(t, backend.IsFrozen(conv.Weight().Tensor().Raw()))
	assert.True(t, backend.IsFrozen(conv.Bias().Tensor().Raw()))
}

func TestBuildModelShapeMismatch(t *testing.T) {
	backend := autodiff.New(cpu.New())
	_, err := style.BuildModel(tinyNet(backend, 1), modelConfig([]string{"conv_1"}, nil),
		randImage(backend, 1, 8), randImage(backend, 2, 16), backend)
	assert.ErrorIs(t, err, style.ErrShapeMismatch)
}

func TestBuildModelUnrecognizedLayer(t *testing.T) {
	backend := autodiff.New(cpu.New())
	img := randImage(backend, 6, 8)

	s := &spy{}
	layers := tinyNet(backend, 1)
	layers = append(layers[:2], append([]nn.Module[adBackend]{s}, layers[2:]...)...)

	_, err := style.BuildModel(layers, modelConfig([]string{"conv_1"}, []string{"conv_1"}), img, img, backend)
	require.ErrorIs(t, err, style.ErrUnrecognizedLayer)
	assert.ErrorContains(t, err, "spy")
	assert.ErrorContains(t, err, "position 2")
	assert.Equal(t, 0, s.calls)
}

func TestBuildModelMissingLayer(t *testing.T) {
	backend := autodiff.New(cpu.New())
	img := randImage(backend, 7, 8)

	_, err := style.BuildModel(tinyNet(backend, 1), modelConfig([]string{"conv_1"}, []string{"conv_9"}), img, img, backend)
	require.ErrorIs(t, err, style.ErrMissingLayer)
	assert.ErrorContains(t, err, "conv_9")

	_, err = style.BuildModel(tinyNet(backend, 1), modelConfig(nil, nil), img, img, backend)
	assert.ErrorIs(t, err, style.ErrNoProbes)
}

func TestModelLosses(t *testing.T) {
	backend := autodiff.New(cpu.New())
	content := randImage(backend, 8, 8)
	styleImg := randImage(backend, 9, 8)

	model, err := style.BuildModel(tinyNet(backend, 1), modelConfig([]string{"conv_2"}, []string{"conv_1"}), styleImg, content, backend)
	require.NoError(t, err)

	model.Forward(content)
	s := model.Losses()
	assert.InDelta(t, 0, s.Content, 1e-7)
	assert.Greater(t, s.Style, float32(0))

	model.Forward(styleImg)
	s = model.Losses()
	assert.Greater(t, s.Content, float32(0))
	assert.InDelta(t, 0, s.Style, 1e-7)
	assert.Equal(t, s.Style+s.Content, s.Total())
}

func rngFor(seed int64) *rand.Rand {
	return rand.New(rand.NewSource(seed))
}

func TestBuildModelRejectsNormalization(t *testing.T) {
	backend := autodiff.New(cpu.New())
	img := randImage(backend, 10, 8)

	cfg := modelConfig([]string{"conv_1"}, nil)
	cfg.Std = []float32{1, 1}
	_, err := style.BuildModel(tinyNet(backend, 1), cfg, img, img, backend)
	assert.ErrorContains(t, err, "3 channels")

	cfg.Std = []float32{1, 0, 1}
	_, err = style.BuildModel(tinyNet(backend, 1), cfg, img, img, backend)
	assert.ErrorContains(t, err, "zero")
}
