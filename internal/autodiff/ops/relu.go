package ops

import (
	"fmt"

	"github.com/born-ml/stylize/internal/tensor"
)

// ReLUOp represents the ReLU activation: output = max(0, x).
//
// Backward: grad_x = outputGrad where x > 0, else 0.
type ReLUOp struct {
	input  *tensor.RawTensor // x
	output *tensor.RawTensor // max(0, x)
}

// NewReLUOp creates a new ReLUOp.
func NewReLUOp(input, output *tensor.RawTensor) *ReLUOp {
	return &ReLUOp{
		input:  input,
		output: output,
	}
}

// Backward masks the gradient with x > 0.
func (op *ReLUOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	mask, err := tensor.NewRaw(op.input.Shape(), op.input.DType(), backend.Device())
	if err != nil {
		panic(fmt.Sprintf("relu: failed to create mask: %v", err))
	}

	switch op.input.DType() {
	case tensor.Float32:
		positiveMask(mask.AsFloat32(), op.input.AsFloat32())
	case tensor.Float64:
		positiveMask(mask.AsFloat64(), op.input.AsFloat64())
	default:
		panic(fmt.Sprintf("relu: unsupported dtype %s (only float32/float64 supported)", op.input.DType()))
	}

	return []*tensor.RawTensor{backend.Mul(outputGrad, mask)}
}

// Inputs returns the input tensors [x].
func (op *ReLUOp) Inputs() []*tensor.RawTensor {
	return []*tensor.RawTensor{op.input}
}

// Output returns the output tensor max(0, x).
func (op *ReLUOp) Output() *tensor.RawTensor {
	return op.output
}

func positiveMask[T tensor.DType](mask, x []T) {
	for i, v := range x {
		if v > 0 {
			mask[i] = 1
		}
	}
}
