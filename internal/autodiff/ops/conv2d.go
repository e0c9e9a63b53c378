package ops

import (
	"github.com/born-ml/stylize/internal/tensor"
)

// Conv2DOp records a 2D convolution operation for autodiff.
//
// Forward: output = Conv2D(input, kernel, stride, padding)
//
// Backward (gradients):
//   - d_input:  transposed convolution of d_output with kernel
//   - d_kernel: correlation of input with d_output
//
// The kernel gradient is skipped for frozen kernels (pretrained feature
// extractors), which is most of the backward cost in a VGG pipeline.
//
// References:
//   - "A guide to convolution arithmetic for deep learning" (Dumoulin & Visin, 2016)
type Conv2DOp struct {
	input      *tensor.RawTensor
	kernel     *tensor.RawTensor
	output     *tensor.RawTensor
	stride     int
	padding    int
	kernelGrad bool
}

// NewConv2DOp creates a new Conv2D operation. kernelGrad selects whether
// Backward computes ∂L/∂kernel.
func NewConv2DOp(input, kernel, output *tensor.RawTensor, stride, padding int, kernelGrad bool) *Conv2DOp {
	return &Conv2DOp{
		input:      input,
		kernel:     kernel,
		output:     output,
		stride:     stride,
		padding:    padding,
		kernelGrad: kernelGrad,
	}
}

// Inputs returns the input tensors.
func (op *Conv2DOp) Inputs() []*tensor.RawTensor {
	return []*tensor.RawTensor{op.input, op.kernel}
}

// Output returns the output tensor.
func (op *Conv2DOp) Output() *tensor.RawTensor {
	return op.output
}

// Backward computes gradients for Conv2D by delegating to the backend kernels.
//
// Given:
//   - outputGrad: ∂L/∂output [N, C_out, H_out, W_out]
//
// Compute:
//   - inputGrad:  ∂L/∂input  [N, C_in, H, W]
//   - kernelGrad: ∂L/∂kernel [C_out, C_in, K_h, K_w], or nil when frozen
func (op *Conv2DOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	inputGrad := backend.Conv2DInputBackward(op.input, op.kernel, outputGrad, op.stride, op.padding)

	var kernelGrad *tensor.RawTensor
	if op.kernelGrad {
		kernelGrad = backend.Conv2DKernelBackward(op.input, op.kernel, outputGrad, op.stride, op.padding)
	}

	return []*tensor.RawTensor{inputGrad, kernelGrad}
}
