package nn

import (
	"fmt"

	"github.com/born-ml/stylize/internal/tensor"
)

// MSELoss computes the mean squared error between predictions and targets.
//
// Formula: MSE = mean((predictions - targets)^2)
//
// The result is a scalar tensor built from backend operations, so an
// autodiff backend records it and gradients flow back to predictions.
type MSELoss[B tensor.Backend] struct{}

// NewMSELoss creates a new MSE loss function.
func NewMSELoss[B tensor.Backend]() *MSELoss[B] {
	return &MSELoss[B]{}
}

// Forward computes the MSE loss.
//
// Panics if the shapes differ.
func (m *MSELoss[B]) Forward(predictions, targets *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	if !predictions.Shape().Equal(targets.Shape()) {
		panic(fmt.Sprintf("MSELoss: predictions %v and targets %v must have the same shape",
			predictions.Shape(), targets.Shape()))
	}

	diff := predictions.Sub(targets)
	return diff.Mul(diff).Mean()
}

// GramMatrix computes the normalized Gram matrix of a feature map.
//
// A feature map of shape [a, b, c, d] is viewed as F of shape [a*b, c*d];
// the result is F Fᵀ / (a*b*c*d), of shape [a*b, a*b].
func GramMatrix[B tensor.Backend](features *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	s := features.Shape()
	if len(s) != 4 {
		panic(fmt.Sprintf("gram: expected 4D features [a,b,c,d], got %v", s))
	}
	a, b, c, d := s[0], s[1], s[2], s[3]

	f := features.Reshape(a*b, c*d)
	g := f.MatMul(f.T())
	return g.MulScalar(1 / float32(a*b*c*d))
}
