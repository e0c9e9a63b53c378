package ops

import (
	"github.com/born-ml/stylize/internal/tensor"
)

// MaxPool2DOp records a max pooling operation for autodiff.
//
// Forward:
//
//	output[n,c,h,w] = max(input[n,c,h*stride+kh,w*stride+kw] for kh,kw in kernel)
//
// Backward: each output gradient goes to the single input position that held
// the window maximum; ties resolve to the first position in row-major order.
type MaxPool2DOp struct {
	input      *tensor.RawTensor
	output     *tensor.RawTensor
	maxIndices []int // Flat indices of max positions for gradient routing
	kernelSize int
	stride     int
}

// NewMaxPool2DOp creates a new MaxPool2D operation.
// Max positions are captured now, while the input still holds forward values.
func NewMaxPool2DOp(input, output *tensor.RawTensor, kernelSize, stride int) *MaxPool2DOp {
	var maxIndices []int
	switch input.DType() {
	case tensor.Float32:
		maxIndices = computeMaxIndices(input.AsFloat32(), input.Shape(), output.Shape(), kernelSize, stride)
	case tensor.Float64:
		maxIndices = computeMaxIndices(input.AsFloat64(), input.Shape(), output.Shape(), kernelSize, stride)
	default:
		panic("maxpool2d: unsupported dtype")
	}

	return &MaxPool2DOp{
		input:      input,
		output:     output,
		maxIndices: maxIndices,
		kernelSize: kernelSize,
		stride:     stride,
	}
}

// computeMaxIndices finds which input position had max value for each output position.
func computeMaxIndices[T tensor.DType](data []T, inShape, outShape tensor.Shape, kernelSize, stride int) []int {
	planes := inShape[0] * inShape[1]
	H, W := inShape[2], inShape[3]
	HOut, WOut := outShape[2], outShape[3]

	maxIndices := make([]int, planes*HOut*WOut)
	outIdx := 0
	for p := 0; p < planes; p++ {
		base := p * H * W
		for oh := 0; oh < HOut; oh++ {
			for ow := 0; ow < WOut; ow++ {
				best := base + oh*stride*W + ow*stride
				for kh := 0; kh < kernelSize; kh++ {
					for kw := 0; kw < kernelSize; kw++ {
						idx := base + (oh*stride+kh)*W + ow*stride + kw
						if data[idx] > data[best] {
							best = idx
						}
					}
				}
				maxIndices[outIdx] = best
				outIdx++
			}
		}
	}
	return maxIndices
}

// Inputs returns the input tensors.
func (op *MaxPool2DOp) Inputs() []*tensor.RawTensor {
	return []*tensor.RawTensor{op.input}
}

// Output returns the output tensor.
func (op *MaxPool2DOp) Output() *tensor.RawTensor {
	return op.output
}

// Backward routes the gradient to the recorded max positions.
func (op *MaxPool2DOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	inputGrad := backend.MaxPool2DBackward(op.input, outputGrad, op.maxIndices, op.kernelSize, op.stride)
	return []*tensor.RawTensor{inputGrad}
}
