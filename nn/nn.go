// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package nn

import (
	"math/rand"

	"github.com/born-ml/stylize/internal/nn"
	"github.com/born-ml/stylize/tensor"
)

// Module is a pipeline stage.
type Module[B tensor.Backend] = nn.Module[B]

// Parameter is a named tensor with an optional gradient.
type Parameter[B tensor.Backend] = nn.Parameter[B]

// NewParameter creates a parameter around t.
func NewParameter[B tensor.Backend](name string, t *tensor.Tensor[float32, B]) *Parameter[B] {
	return nn.NewParameter(name, t)
}

// Sequential chains named modules.
type Sequential[B tensor.Backend] = nn.Sequential[B]

// NewSequential chains modules under positional names.
func NewSequential[B tensor.Backend](modules ...Module[B]) *Sequential[B] {
	return nn.NewSequential(modules...)
}

// Conv2D is a 2D convolution over NCHW input.
type Conv2D[B tensor.Backend] = nn.Conv2D[B]

// NewConv2D creates a convolution with Xavier-initialized weights drawn from rng.
func NewConv2D[B tensor.Backend](
	inChannels, outChannels, kernelH, kernelW, stride, padding int,
	useBias bool, rng *rand.Rand, backend B,
) *Conv2D[B] {
	return nn.NewConv2D(inChannels, outChannels, kernelH, kernelW, stride, padding, useBias, rng, backend)
}

// NewConv2DWithWeights creates a convolution from pretrained tensors.
// bias may be nil.
func NewConv2DWithWeights[B tensor.Backend](weight, bias *tensor.Tensor[float32, B], stride, padding int, backend B) (*Conv2D[B], error) {
	return nn.NewConv2DWithWeights(weight, bias, stride, padding, backend)
}

// ReLU is max(0, x).
type ReLU[B tensor.Backend] = nn.ReLU[B]

// NewReLU creates an out-of-place ReLU.
func NewReLU[B tensor.Backend]() *ReLU[B] {
	return nn.NewReLU[B]()
}

// NewInPlaceReLU creates a ReLU that also overwrites its input.
func NewInPlaceReLU[B tensor.Backend]() *ReLU[B] {
	return nn.NewInPlaceReLU[B]()
}

// MaxPool2D is 2D max pooling.
type MaxPool2D[B tensor.Backend] = nn.MaxPool2D[B]

// NewMaxPool2D creates a pooling layer.
func NewMaxPool2D[B tensor.Backend](kernelSize, stride int, backend B) *MaxPool2D[B] {
	return nn.NewMaxPool2D(kernelSize, stride, backend)
}

// BatchNorm2D is inference-mode batch normalization.
type BatchNorm2D[B tensor.Backend] = nn.BatchNorm2D[B]

// NewBatchNorm2D creates an identity batch norm.
func NewBatchNorm2D[B tensor.Backend](numFeatures int, eps float32, backend B) *BatchNorm2D[B] {
	return nn.NewBatchNorm2D(numFeatures, eps, backend)
}

// NewBatchNorm2DWithStats creates a batch norm from pretrained statistics.
func NewBatchNorm2DWithStats[B tensor.Backend](
	gamma, beta, runningMean, runningVar *tensor.Tensor[float32, B],
	eps float32, backend B,
) (*BatchNorm2D[B], error) {
	return nn.NewBatchNorm2DWithStats(gamma, beta, runningMean, runningVar, eps, backend)
}

// Normalization standardizes image channels: (x - mean[c]) / std[c].
type Normalization[B tensor.Backend] = nn.Normalization[B]

// NewNormalization creates a normalization stage.
func NewNormalization[B tensor.Backend](mean, std []float32, backend B) *Normalization[B] {
	return nn.NewNormalization(mean, std, backend)
}

// ContentLoss measures the distance of a feature map to a fixed target.
type ContentLoss[B tensor.Backend] = nn.ContentLoss[B]

// NewContentLoss creates a content probe.
func NewContentLoss[B tensor.Backend](target *tensor.Tensor[float32, B]) *ContentLoss[B] {
	return nn.NewContentLoss(target)
}

// StyleLoss measures the distance of a Gram matrix to a fixed target.
type StyleLoss[B tensor.Backend] = nn.StyleLoss[B]

// NewStyleLoss creates a style probe for the Gram matrix of features.
func NewStyleLoss[B tensor.Backend](features *tensor.Tensor[float32, B]) *StyleLoss[B] {
	return nn.NewStyleLoss(features)
}

// MSELoss is the mean squared error.
type MSELoss[B tensor.Backend] = nn.MSELoss[B]

// NewMSELoss creates an MSE loss.
func NewMSELoss[B tensor.Backend]() *MSELoss[B] {
	return nn.NewMSELoss[B]()
}

// GramMatrix returns F Fᵀ / (a*b*c*d) for features of shape [a, b, c, d].
func GramMatrix[B tensor.Backend](features *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	return nn.GramMatrix(features)
}
