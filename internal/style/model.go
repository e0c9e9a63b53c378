// Package style assembles a style transfer model from a pretrained feature
// network and drives the pixel optimization.
//
// Assembly walks the source layers in order, names each one after the
// convolution block it belongs to (conv_1, relu_1, pool_1, bn_1, conv_2, ...)
// and inserts transparent loss probes after the requested layers. The
// resulting pipeline is cut after the last probe.
//
//	model, err := style.BuildModel(layers, style.ModelConfig{
//	    Mean:          []float32{0.485, 0.456, 0.406},
//	    Std:           []float32{0.229, 0.224, 0.225},
//	    ContentLayers: []string{"conv_4"},
//	    StyleLayers:   []string{"conv_1", "conv_2", "conv_3", "conv_4", "conv_5"},
//	}, styleImg, contentImg, backend)
package style

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/samber/lo"

	"github.com/born-ml/stylize/internal/autodiff"
	"github.com/born-ml/stylize/internal/nn"
	"github.com/born-ml/stylize/internal/tensor"
)

// Assembly and run errors.
var (
	ErrUnrecognizedLayer = errors.New("unrecognized layer")
	ErrShapeMismatch     = errors.New("image shape mismatch")
	ErrNoProbes          = errors.New("no content or style layers requested")
	ErrMissingLayer      = errors.New("requested layer not in network")
)

// NormalizationName is the name of the first pipeline stage.
const NormalizationName = "normalization"

// ModelConfig selects the input normalization and the probe positions.
type ModelConfig struct {
	Mean, Std     []float32
	ContentLayers []string
	StyleLayers   []string
}

// Scores holds the summed style and content losses.
type Scores struct {
	Style   float32
	Content float32
}

// Total returns Style + Content.
func (s Scores) Total() float32 {
	return s.Style + s.Content
}

// Model is an assembled style transfer pipeline.
type Model[B autodiff.BackwardCapable] struct {
	pipeline   *nn.Sequential[B]
	content    []*nn.ContentLoss[B]
	style      []*nn.StyleLoss[B]
	inputShape tensor.Shape
	backend    B
}

type freezer interface {
	Freeze(raws ...*tensor.RawTensor)
}

// BuildModel assembles the pipeline for one content/style pair.
//
// Every source layer must be a Conv2D, ReLU, MaxPool2D or BatchNorm2D;
// anything else fails with ErrUnrecognizedLayer before any forward pass.
// ReLUs are replaced by fresh out-of-place ones so later layers never
// overwrite an activation a probe has seen. Network weights are frozen on
// backends that support it.
//
// Probe targets are computed with gradient recording disabled.
func BuildModel[B autodiff.BackwardCapable](
	layers []nn.Module[B],
	cfg ModelConfig,
	styleImg, contentImg *tensor.Tensor[float32, B],
	backend B,
) (*Model[B], error) {
	if !styleImg.Shape().Equal(contentImg.Shape()) {
		return nil, fmt.Errorf("%w: style %v, content %v", ErrShapeMismatch, styleImg.Shape(), contentImg.Shape())
	}
	if len(cfg.ContentLayers) == 0 && len(cfg.StyleLayers) == 0 {
		return nil, ErrNoProbes
	}
	if err := checkNormalization(cfg, contentImg.Shape()); err != nil {
		return nil, err
	}

	names, err := LayerNames(layers)
	if err != nil {
		return nil, err
	}
	if missing := lo.Without(lo.Union(cfg.ContentLayers, cfg.StyleLayers), names...); len(missing) > 0 {
		return nil, fmt.Errorf("%w: %v", ErrMissingLayer, missing)
	}

	contentSet := lo.SliceToMap(cfg.ContentLayers, func(n string) (string, struct{}) { return n, struct{}{} })
	styleSet := lo.SliceToMap(cfg.StyleLayers, func(n string) (string, struct{}) { return n, struct{}{} })

	m := &Model[B]{
		pipeline:   nn.NewSequential[B](),
		inputShape: contentImg.Shape().Clone(),
		backend:    backend,
	}
	m.pipeline.AddNamed(NormalizationName, nn.NewNormalization(cfg.Mean, cfg.Std, backend))

	tape := backend.GetTape()
	for i, layer := range layers {
		name := names[i]

		switch l := layer.(type) {
		case *nn.ReLU[B]:
			layer = nn.NewReLU[B]()
		case *nn.Conv2D[B], *nn.BatchNorm2D[B]:
			freeze(backend, l.Parameters())
		}
		m.pipeline.AddNamed(name, layer)

		if _, ok := contentSet[name]; ok {
			var target *tensor.Tensor[float32, B]
			tape.WithoutRecording(func() { target = m.pipeline.Forward(contentImg) })
			probe := nn.NewContentLoss(target)
			m.pipeline.AddNamed(m.probeName("content_loss", name), probe)
			m.content = append(m.content, probe)
		}
		if _, ok := styleSet[name]; ok {
			var target *tensor.Tensor[float32, B]
			tape.WithoutRecording(func() { target = m.pipeline.Forward(styleImg) })
			probe := nn.NewStyleLoss(target)
			m.pipeline.AddNamed(m.probeName("style_loss", name), probe)
			m.style = append(m.style, probe)
		}
	}

	m.pipeline.Truncate(lastProbe(m.pipeline) + 1)
	return m, nil
}

// probeName names a probe after the block of the layer it measures. A
// second probe of the same kind in one block is named after the layer
// itself so it is appended rather than replacing the first.
func (m *Model[B]) probeName(kind, layer string) string {
	name := kind + "_" + suffix(layer)
	if m.pipeline.Index(name) >= 0 {
		return kind + "_" + layer
	}
	return name
}

// lastProbe returns the index of the last loss probe in seq, or -1.
func lastProbe[B tensor.Backend](seq *nn.Sequential[B]) int {
	for i := seq.Len() - 1; i >= 0; i-- {
		switch seq.Module(i).(type) {
		case *nn.ContentLoss[B], *nn.StyleLoss[B]:
			return i
		}
	}
	return -1
}

// LayerNames returns the pipeline name of every source layer.
func LayerNames[B tensor.Backend](layers []nn.Module[B]) ([]string, error) {
	names := make([]string, len(layers))
	conv := 0
	for i, layer := range layers {
		var kind string
		switch layer.(type) {
		case *nn.Conv2D[B]:
			conv++
			kind = "conv"
		case *nn.ReLU[B]:
			kind = "relu"
		case *nn.MaxPool2D[B]:
			kind = "pool"
		case *nn.BatchNorm2D[B]:
			kind = "bn"
		default:
			return nil, fmt.Errorf("%w: %T at position %d", ErrUnrecognizedLayer, layer, i)
		}
		names[i] = kind + "_" + strconv.Itoa(conv)
	}
	return names, nil
}

func checkNormalization(cfg ModelConfig, shape tensor.Shape) error {
	if len(shape) != 4 {
		return fmt.Errorf("%w: images must be [N C H W], got %v", ErrShapeMismatch, shape)
	}
	if c := shape[1]; len(cfg.Mean) != c || len(cfg.Std) != c {
		return fmt.Errorf("normalization: %d channels need %d means and stds, got %d and %d",
			c, c, len(cfg.Mean), len(cfg.Std))
	}
	if slices.Contains(cfg.Std, 0) {
		return errors.New("normalization: std must not contain zero")
	}
	return nil
}

// suffix returns the block number of a layer name: "conv_4" -> "4".
func suffix(name string) string {
	return name[strings.LastIndexByte(name, '_')+1:]
}

func freeze[B tensor.Backend](backend B, params []*nn.Parameter[B]) {
	f, ok := any(backend).(freezer)
	if !ok {
		return
	}
	for _, p := range params {
		f.Freeze(p.Tensor().Raw())
	}
}

// Forward runs the pipeline, refreshing every probe.
func (m *Model[B]) Forward(img *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	return m.pipeline.Forward(img)
}

// Pipeline returns the assembled chain.
func (m *Model[B]) Pipeline() *nn.Sequential[B] {
	return m.pipeline
}

// Names returns the pipeline stage names in order.
func (m *Model[B]) Names() []string {
	return m.pipeline.Names()
}

// ContentProbes returns the content probes in pipeline order.
func (m *Model[B]) ContentProbes() []*nn.ContentLoss[B] {
	return slices.Clone(m.content)
}

// StyleProbes returns the style probes in pipeline order.
func (m *Model[B]) StyleProbes() []*nn.StyleLoss[B] {
	return slices.Clone(m.style)
}

// InputShape is the image shape the model was assembled for.
func (m *Model[B]) InputShape() tensor.Shape {
	return m.inputShape.Clone()
}

// Losses sums the probe losses of the latest forward pass, unweighted.
// Probes that have not run yet count as zero.
func (m *Model[B]) Losses() Scores {
	var s Scores
	for _, p := range m.style {
		if l := p.Loss(); l != nil {
			s.Style += l.Item()
		}
	}
	for _, p := range m.content {
		if l := p.Loss(); l != nil {
			s.Content += l.Item()
		}
	}
	return s
}

// objective returns the weighted style and content sums of the latest
// forward pass as recorded scalar tensors.
func (m *Model[B]) objective(styleWeight, contentWeight float32) (styleScore, contentScore *tensor.Tensor[float32, B]) {
	styleScore = tensor.Zeros[float32](tensor.Shape{}, m.backend)
	for _, p := range m.style {
		styleScore = styleScore.Add(p.Loss())
	}
	contentScore = tensor.Zeros[float32](tensor.Shape{}, m.backend)
	for _, p := range m.content {
		contentScore = contentScore.Add(p.Loss())
	}
	return styleScore.MulScalar(styleWeight), contentScore.MulScalar(contentWeight)
}
