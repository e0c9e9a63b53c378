package ops

import (
	"github.com/born-ml/stylize/internal/tensor"
)

// reduceBroadcast reduces a gradient tensor to match the target shape.
// This is necessary when broadcasting was used in the forward pass.
//
// Example:
//
//	Forward: x[1,3,8,8] - mean[1,3,1,1] -> y[1,3,8,8]  (mean broadcast over H, W)
//	Backward: grad_y[1,3,8,8] -> grad_mean[1,3,1,1]      (sum along dims 2 and 3)
func reduceBroadcast(grad *tensor.RawTensor, targetShape tensor.Shape, backend tensor.Backend) *tensor.RawTensor {
	gradShape := grad.Shape()

	// Same shape: hand out a copy so accumulation never aliases another input's gradient.
	if gradShape.Equal(targetShape) {
		return grad.Clone()
	}

	if len(targetShape) == 0 {
		return backend.Sum(grad)
	}

	// NumPy broadcasting aligns shapes from the right; sum away extra leading dims.
	result := grad
	for len(result.Shape()) > len(targetShape) {
		result = backend.SumDim(result, 0, false)
	}

	for i, dim := range targetShape {
		if dim == 1 && result.Shape()[i] > 1 {
			result = backend.SumDim(result, i, true)
		}
	}

	if !result.Shape().Equal(targetShape) {
		result = backend.Reshape(result, targetShape)
	}

	return result
}

// negate returns -x.
func negate(x *tensor.RawTensor, backend tensor.Backend) *tensor.RawTensor {
	return backend.MulScalar(x, -1)
}
