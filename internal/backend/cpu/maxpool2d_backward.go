package cpu

import (
	"fmt"

	"github.com/born-ml/stylize/internal/tensor"
)

// MaxPool2DBackward computes gradient w.r.t. input for MaxPool2D.
//
// Gradients flow only to the input positions recorded in maxIndices (one per
// output element, as flat indices into the input). Overlapping windows that
// share a maximum accumulate.
//
// Example (2x2 pool, stride=2):
//
//	Input:  [[1, 2],  Output: [4]  Input Grad: [[0, 0],
//	         [3, 4]]                             [0, grad]]
func (cpu *CPUBackend) MaxPool2DBackward(input, grad *tensor.RawTensor, maxIndices []int, _, _ int) *tensor.RawTensor {
	if len(maxIndices) != grad.NumElements() {
		panic(fmt.Sprintf("maxpool2d_backward: maxIndices length %d != gradient size %d", len(maxIndices), grad.NumElements()))
	}

	inputGrad, err := tensor.NewRaw(input.Shape(), grad.DType(), cpu.device)
	if err != nil {
		panic(fmt.Sprintf("maxpool2d_backward: failed to create gradient tensor: %v", err))
	}

	switch grad.DType() {
	case tensor.Float32:
		scatterAdd(inputGrad.AsFloat32(), grad.AsFloat32(), maxIndices)
	case tensor.Float64:
		scatterAdd(inputGrad.AsFloat64(), grad.AsFloat64(), maxIndices)
	default:
		panic(fmt.Sprintf("maxpool2d_backward: unsupported dtype %s", grad.DType()))
	}

	return inputGrad
}

func scatterAdd[T tensor.DType](dst, src []T, indices []int) {
	for i, idx := range indices {
		dst[idx] += src[i]
	}
}
