// Package nn implements the layers of a convolutional feature pipeline and
// the loss probes that style transfer inserts into it.
//
// This package provides:
//   - Module interface: Base interface for all pipeline components
//   - Parameter: Tensors that receive gradients from a backward pass
//   - Layers: Conv2D, ReLU, MaxPool2D, BatchNorm2D
//   - Normalization: Per-channel input normalization
//   - Probes: ContentLoss, StyleLoss (with GramMatrix and MSE)
//   - Sequential: Named chain of modules
//
// Design inspired by PyTorch's nn.Module but adapted for Go generics.
package nn

import (
	"github.com/born-ml/stylize/internal/tensor"
)

// Module is the base interface for all neural network components.
//
// Every module must implement:
//   - Forward: Compute output from input
//   - Parameters: Return all parameters owned by the module
//
// Modules compose into a pipeline:
//
//	features := nn.NewSequential[Backend](
//	    nn.NewConv2D(3, 64, 3, 3, 1, 1, true, rng, backend),
//	    nn.NewReLU[Backend](),
//	    nn.NewMaxPool2D(2, 2, backend),
//	)
//
// Type parameter B must satisfy the tensor.Backend interface.
type Module[B tensor.Backend] interface {
	// Forward computes the output of the module given an input tensor.
	//
	// Convolutional modules expect [N, C, H, W] input.
	Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B]

	// Parameters returns all parameters of this module.
	//
	// Returns an empty slice for modules without parameters
	// (e.g., activation functions and probes).
	Parameters() []*Parameter[B]
}
