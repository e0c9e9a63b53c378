package loader

import (
	"errors"
	"fmt"
	"math/rand"
	"slices"
	"strings"

	"github.com/samber/lo"

	"github.com/born-ml/stylize/internal/nn"
	"github.com/born-ml/stylize/internal/tensor"
)

// ErrUnknownArch is returned for an architecture name with no known layout.
var ErrUnknownArch = errors.New("unknown architecture")

// batchNormEps matches torchvision's BatchNorm2d default.
const batchNormEps = 1e-5

// pool marks a max-pooling stage in a layout.
const pool = -1

// vggConfigs lists output channels per 3x3 convolution, torchvision order.
var vggConfigs = map[string][]int{
	"vgg11": {64, pool, 128, pool, 256, 256, pool, 512, 512, pool, 512, 512, pool},
	"vgg13": {64, 64, pool, 128, 128, pool, 256, 256, pool, 512, 512, pool, 512, 512, pool},
	"vgg16": {64, 64, pool, 128, 128, pool, 256, 256, 256, pool, 512, 512, 512, pool, 512, 512, 512, pool},
	"vgg19": {
		64, 64, pool, 128, 128, pool, 256, 256, 256, 256, pool,
		512, 512, 512, 512, pool, 512, 512, 512, 512, pool,
	},
}

// TensorSource yields float32 tensors by name. SafeTensorsReader implements it.
type TensorSource interface {
	LoadTensor(name string, backend tensor.Backend) (*tensor.RawTensor, error)
}

// Architectures returns the supported architecture names, sorted.
func Architectures() []string {
	names := lo.FlatMap(lo.Keys(vggConfigs), func(n string, _ int) []string {
		return []string{n, n + "_bn"}
	})
	slices.Sort(names)
	return names
}

type layerKind int

const (
	kindConv layerKind = iota
	kindBatchNorm
	kindReLU
	kindPool
)

// layerSpec is one entry of torchvision's features container.
type layerSpec struct {
	kind    layerKind
	index   int // position in features, used for weight names
	in, out int // conv channels; out is the channel count for batch norm
}

func layout(arch string) ([]layerSpec, error) {
	base, bn := strings.CutSuffix(arch, "_bn")
	cfg, ok := vggConfigs[base]
	if !ok {
		return nil, fmt.Errorf("%w: %q (known: %s)", ErrUnknownArch, arch, strings.Join(Architectures(), ", "))
	}

	var specs []layerSpec
	in := 3
	for _, c := range cfg {
		if c == pool {
			specs = append(specs, layerSpec{kind: kindPool, index: len(specs)})
			continue
		}
		specs = append(specs, layerSpec{kind: kindConv, index: len(specs), in: in, out: c})
		if bn {
			specs = append(specs, layerSpec{kind: kindBatchNorm, index: len(specs), out: c})
		}
		specs = append(specs, layerSpec{kind: kindReLU, index: len(specs)})
		in = c
	}
	return specs, nil
}

// BuildFeatures builds the features part of a VGG network with weights
// read from src under torchvision names ("features.0.weight", ...).
//
// ReLUs are in-place, as in torchvision.
func BuildFeatures[B tensor.Backend](arch string, src TensorSource, backend B) ([]nn.Module[B], error) {
	specs, err := layout(arch)
	if err != nil {
		return nil, err
	}

	load := func(spec layerSpec, field string, shape tensor.Shape) (*tensor.Tensor[float32, B], error) {
		name := fmt.Sprintf("features.%d.%s", spec.index, field)
		raw, err := src.LoadTensor(name, backend)
		if err != nil {
			return nil, err
		}
		if !raw.Shape().Equal(shape) {
			return nil, fmt.Errorf("tensor %s: shape %v, want %v", name, raw.Shape(), shape)
		}
		return tensor.New[float32](raw, backend), nil
	}

	layers := make([]nn.Module[B], 0, len(specs))
	for _, spec := range specs {
		switch spec.kind {
		case kindConv:
			w, err := load(spec, "weight", tensor.Shape{spec.out, spec.in, 3, 3})
			if err != nil {
				return nil, err
			}
			b, err := load(spec, "bias", tensor.Shape{spec.out})
			if err != nil {
				return nil, err
			}
			conv, err := nn.NewConv2DWithWeights(w, b, 1, 1, backend)
			if err != nil {
				return nil, err
			}
			layers = append(layers, conv)
		case kindBatchNorm:
			shape := tensor.Shape{spec.out}
			var stats [4]*tensor.Tensor[float32, B]
			for i, field := range []string{"weight", "bias", "running_mean", "running_var"} {
				if stats[i], err = load(spec, field, shape); err != nil {
					return nil, err
				}
			}
			bn, err := nn.NewBatchNorm2DWithStats(stats[0], stats[1], stats[2], stats[3], batchNormEps, backend)
			if err != nil {
				return nil, err
			}
			layers = append(layers, bn)
		case kindReLU:
			layers = append(layers, nn.NewInPlaceReLU[B]())
		case kindPool:
			layers = append(layers, nn.NewMaxPool2D(2, 2, backend))
		}
	}
	return layers, nil
}

// RandomFeatures builds a VGG feature network with Xavier-initialized
// convolutions and identity batch norms. The same seed yields the same weights.
func RandomFeatures[B tensor.Backend](arch string, backend B, seed int64) ([]nn.Module[B], error) {
	specs, err := layout(arch)
	if err != nil {
		return nil, err
	}

	//nolint:gosec // Using math/rand for weight initialization (not security-critical)
	rng := rand.New(rand.NewSource(seed))
	layers := make([]nn.Module[B], 0, len(specs))
	for _, spec := range specs {
		switch spec.kind {
		case kindConv:
			layers = append(layers, nn.NewConv2D(spec.in, spec.out, 3, 3, 1, 1, true, rng, backend))
		case kindBatchNorm:
			layers = append(layers, nn.NewBatchNorm2D(spec.out, batchNormEps, backend))
		case kindReLU:
			layers = append(layers, nn.NewInPlaceReLU[B]())
		case kindPool:
			layers = append(layers, nn.NewMaxPool2D(2, 2, backend))
		}
	}
	return layers, nil
}

// FeatureStateDict names the tensors of a feature network the way
// BuildFeatures expects them, for use with WriteSafeTensors.
func FeatureStateDict[B tensor.Backend](layers []nn.Module[B]) map[string]*tensor.RawTensor {
	state := make(map[string]*tensor.RawTensor)
	for i, layer := range layers {
		prefix := fmt.Sprintf("features.%d.", i)
		switch l := layer.(type) {
		case *nn.Conv2D[B]:
			state[prefix+"weight"] = l.Weight().Tensor().Raw()
			if l.Bias() != nil {
				state[prefix+"bias"] = l.Bias().Tensor().Raw()
			}
		case *nn.BatchNorm2D[B]:
			params := l.Parameters()
			state[prefix+"weight"] = params[0].Tensor().Raw()
			state[prefix+"bias"] = params[1].Tensor().Raw()
			state[prefix+"running_mean"] = l.RunningMean().Raw()
			state[prefix+"running_var"] = l.RunningVar().Raw()
		}
	}
	return state
}
