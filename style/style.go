// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package style is the public style transfer API.
//
// A run assembles a Model from a feature network and the two images, then
// lets a Driver optimize the pixels of an initial image:
//
//	backend := autodiff.New(cpu.New())
//	layers, _ := loader.RandomFeatures("vgg19", backend, 1)
//	content, _ := style.LoadImage("content.jpg", 512, 512, backend)
//	styleImg, _ := style.LoadImage("style.jpg", 512, 512, backend)
//
//	model, err := style.BuildModel(layers, style.DefaultModelConfig(), styleImg, content, backend)
//	if err != nil {
//	    return err
//	}
//	res, err := style.NewDriver(model, style.Options{Steps: 300, StyleWeight: 1e6, ContentWeight: 1}, backend, logger).
//	    Run(ctx, content)
//	if err != nil {
//	    return err
//	}
//	return style.SaveImage(res.Image, "out.jpg")
package style

import (
	"go.uber.org/zap"

	"github.com/born-ml/stylize/autodiff"
	"github.com/born-ml/stylize/internal/imageio"
	"github.com/born-ml/stylize/internal/style"
	"github.com/born-ml/stylize/nn"
	"github.com/born-ml/stylize/optim"
	"github.com/born-ml/stylize/tensor"
)

// Errors returned by BuildModel and Driver.Run.
var (
	ErrUnrecognizedLayer = style.ErrUnrecognizedLayer
	ErrShapeMismatch     = style.ErrShapeMismatch
	ErrNoProbes          = style.ErrNoProbes
	ErrMissingLayer      = style.ErrMissingLayer
)

// Optimizer kinds.
const (
	OptimizerLBFGS = style.OptimizerLBFGS
	OptimizerAdam  = style.OptimizerAdam
	OptimizerSGD   = style.OptimizerSGD
)

// Model is an assembled pipeline with its probes.
type Model[B autodiff.BackwardCapable] = style.Model[B]

// ModelConfig selects normalization and probe layers.
type ModelConfig = style.ModelConfig

// Scores holds summed style and content losses.
type Scores = style.Scores

// Driver optimizes an image against a Model.
type Driver[B autodiff.BackwardCapable] = style.Driver[B]

// Options configures a Driver.
type Options = style.Options

// OptimizerConfig selects the pixel optimizer.
type OptimizerConfig = style.OptimizerConfig

// Result is the outcome of Driver.Run.
type Result[B tensor.Backend] = style.Result[B]

// Evaluation describes one closure evaluation, for Driver.Observe.
type Evaluation[B tensor.Backend] = style.Evaluation[B]

// DefaultModelConfig is ImageNet normalization with content at conv_4 and
// style at conv_1 through conv_5.
func DefaultModelConfig() ModelConfig {
	return ModelConfig{
		Mean:          []float32{0.485, 0.456, 0.406},
		Std:           []float32{0.229, 0.224, 0.225},
		ContentLayers: []string{"conv_4"},
		StyleLayers:   []string{"conv_1", "conv_2", "conv_3", "conv_4", "conv_5"},
	}
}

// BuildModel assembles the pipeline for one content/style pair.
func BuildModel[B autodiff.BackwardCapable](
	layers []nn.Module[B],
	cfg ModelConfig,
	styleImg, contentImg *tensor.Tensor[float32, B],
	backend B,
) (*Model[B], error) {
	return style.BuildModel(layers, cfg, styleImg, contentImg, backend)
}

// LayerNames returns the pipeline names the assembler gives layers.
func LayerNames[B tensor.Backend](layers []nn.Module[B]) ([]string, error) {
	return style.LayerNames(layers)
}

// NewDriver creates a driver. A nil logger discards progress lines.
func NewDriver[B autodiff.BackwardCapable](model *Model[B], opts Options, backend B, logger *zap.SugaredLogger) *Driver[B] {
	return style.NewDriver(model, opts, backend, logger)
}

// NewOptimizer builds the optimizer named by cfg.Kind.
func NewOptimizer[B tensor.Backend](params []*nn.Parameter[B], cfg OptimizerConfig, backend B) (optim.Optimizer, error) {
	return style.NewOptimizer(params, cfg, backend)
}

// LoadImage reads an image file as a [1, 3, height, width] tensor in [0, 1].
func LoadImage[B tensor.Backend](path string, width, height int, backend B) (*tensor.Tensor[float32, B], error) {
	return imageio.Load(path, width, height, backend)
}

// SaveImage writes a [1, 3, H, W] tensor, clamped to [0, 1], to path.
func SaveImage[B tensor.Backend](t *tensor.Tensor[float32, B], path string) error {
	return imageio.Save(t, path)
}
