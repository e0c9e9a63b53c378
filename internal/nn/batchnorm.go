package nn

import (
	"fmt"
	"math"

	"github.com/born-ml/stylize/internal/tensor"
)

// BatchNorm2D normalizes each channel with its running statistics.
//
// Only inference mode is implemented: feature networks are frozen, so the
// running mean and variance are never updated.
//
//	y = (x - running_mean[c]) / sqrt(running_var[c] + eps) * gamma[c] + beta[c]
type BatchNorm2D[B tensor.Backend] struct {
	numFeatures int
	eps         float32

	gamma *Parameter[B] // [C]
	beta  *Parameter[B] // [C]

	runningMean *tensor.Tensor[float32, B] // [C]
	runningVar  *tensor.Tensor[float32, B] // [C]

	backend B
}

// NewBatchNorm2D creates an identity BatchNorm2D: gamma=1, beta=0,
// running mean 0 and running variance 1.
func NewBatchNorm2D[B tensor.Backend](numFeatures int, eps float32, backend B) *BatchNorm2D[B] {
	if numFeatures <= 0 {
		panic(fmt.Sprintf("batchnorm2d: invalid number of features %d", numFeatures))
	}
	shape := tensor.Shape{numFeatures}
	return &BatchNorm2D[B]{
		numFeatures: numFeatures,
		eps:         eps,
		gamma:       NewParameter("batchnorm2d.weight", Ones(shape, backend)),
		beta:        NewParameter("batchnorm2d.bias", Zeros(shape, backend)),
		runningMean: Zeros(shape, backend),
		runningVar:  Ones(shape, backend),
		backend:     backend,
	}
}

// NewBatchNorm2DWithStats creates a BatchNorm2D from stored tensors.
// All four tensors must have shape [C].
func NewBatchNorm2DWithStats[B tensor.Backend](
	gamma, beta, runningMean, runningVar *tensor.Tensor[float32, B],
	eps float32,
	backend B,
) (*BatchNorm2D[B], error) {
	c := gamma.NumElements()
	want := tensor.Shape{c}
	for name, t := range map[string]*tensor.Tensor[float32, B]{
		"weight": gamma, "bias": beta, "running_mean": runningMean, "running_var": runningVar,
	} {
		if !t.Shape().Equal(want) {
			return nil, fmt.Errorf("batchnorm2d: %s shape %v, want %v", name, t.Shape(), want)
		}
	}
	return &BatchNorm2D[B]{
		numFeatures: c,
		eps:         eps,
		gamma:       NewParameter("batchnorm2d.weight", gamma),
		beta:        NewParameter("batchnorm2d.bias", beta),
		runningMean: runningMean,
		runningVar:  runningVar,
		backend:     backend,
	}, nil
}

// Forward applies the per-channel affine normalization.
func (bn *BatchNorm2D[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	inputShape := input.Shape()
	if len(inputShape) != 4 {
		panic(fmt.Sprintf("batchnorm2d: expected 4D input [N,C,H,W], got %dD", len(inputShape)))
	}
	if inputShape[1] != bn.numFeatures {
		panic(fmt.Sprintf("batchnorm2d: input channels %d != expected %d", inputShape[1], bn.numFeatures))
	}

	// Fold the statistics into one scale and one shift per channel.
	gamma, beta := bn.gamma.Tensor().Data(), bn.beta.Tensor().Data()
	mean, variance := bn.runningMean.Data(), bn.runningVar.Data()
	scale := make([]float32, bn.numFeatures)
	shift := make([]float32, bn.numFeatures)
	for c := range scale {
		scale[c] = gamma[c] / float32(math.Sqrt(float64(variance[c]+bn.eps)))
		shift[c] = beta[c] - mean[c]*scale[c]
	}

	channelShape := tensor.Shape{1, bn.numFeatures, 1, 1}
	scaleT, err := tensor.FromSlice(scale, channelShape, bn.backend)
	if err != nil {
		panic(fmt.Sprintf("batchnorm2d: %v", err))
	}
	shiftT, err := tensor.FromSlice(shift, channelShape, bn.backend)
	if err != nil {
		panic(fmt.Sprintf("batchnorm2d: %v", err))
	}

	return input.Mul(scaleT).Add(shiftT)
}

// Parameters returns gamma and beta.
func (bn *BatchNorm2D[B]) Parameters() []*Parameter[B] {
	return []*Parameter[B]{bn.gamma, bn.beta}
}

// RunningMean returns the per-channel running mean.
func (bn *BatchNorm2D[B]) RunningMean() *tensor.Tensor[float32, B] {
	return bn.runningMean
}

// RunningVar returns the per-channel running variance.
func (bn *BatchNorm2D[B]) RunningVar() *tensor.Tensor[float32, B] {
	return bn.runningVar
}

// NumFeatures returns the number of channels.
func (bn *BatchNorm2D[B]) NumFeatures() int {
	return bn.numFeatures
}

// String returns a human-readable representation.
func (bn *BatchNorm2D[B]) String() string {
	return fmt.Sprintf("BatchNorm2d(%d, eps=%g)", bn.numFeatures, bn.eps)
}
