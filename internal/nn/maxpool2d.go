package nn

import (
	"fmt"

	"github.com/born-ml/stylize/internal/tensor"
)

// MaxPool2D is a 2D max pooling layer.
//
// Applies 2D max pooling over an input signal composed of several input planes.
// Takes the maximum value in each pooling window.
//
// Input shape: [batch, channels, height, width]
// Output shape: [batch, channels, out_height, out_width]
//
// Where:
//
//	out_height = (height - kernel_size) / stride + 1
//	out_width = (width - kernel_size) / stride + 1
//
// Example:
//
//	pool := nn.NewMaxPool2D(2, 2, backend) // halves H and W
//	output := pool.Forward(input)
type MaxPool2D[B tensor.Backend] struct {
	kernelSize int
	stride     int
	backend    B
}

// NewMaxPool2D creates a new MaxPool2D layer.
//
// Parameters:
//   - kernelSize: Size of pooling window (square)
//   - stride: Stride for pooling (typically equals kernelSize)
//   - backend: Computation backend
func NewMaxPool2D[B tensor.Backend](kernelSize, stride int, backend B) *MaxPool2D[B] {
	if kernelSize <= 0 {
		panic(fmt.Sprintf("maxpool2d: invalid kernel size %d", kernelSize))
	}
	if stride <= 0 {
		panic(fmt.Sprintf("maxpool2d: invalid stride %d", stride))
	}

	return &MaxPool2D[B]{
		kernelSize: kernelSize,
		stride:     stride,
		backend:    backend,
	}
}

// Forward performs max pooling.
func (m *MaxPool2D[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	inputShape := input.Shape()
	if len(inputShape) != 4 {
		panic(fmt.Sprintf("maxpool2d: expected 4D input [N,C,H,W], got %dD", len(inputShape)))
	}

	outputRaw := m.backend.MaxPool2D(input.Raw(), m.kernelSize, m.stride)

	return tensor.New[float32, B](outputRaw, m.backend)
}

// Parameters returns an empty slice (MaxPool2D has no parameters).
func (m *MaxPool2D[B]) Parameters() []*Parameter[B] {
	return []*Parameter[B]{}
}

// String returns a human-readable representation.
func (m *MaxPool2D[B]) String() string {
	return fmt.Sprintf("MaxPool2D(kernel_size=%d, stride=%d)",
		m.kernelSize, m.stride)
}

// KernelSize returns the pooling window size.
func (m *MaxPool2D[B]) KernelSize() int {
	return m.kernelSize
}

// Stride returns the stride value.
func (m *MaxPool2D[B]) Stride() int {
	return m.stride
}
