package cpu

import (
	"fmt"

	"github.com/born-ml/stylize/internal/tensor"
)

// Expand broadcasts the tensor to a new shape.
// Each input dimension must equal the target dimension or be 1.
func (cpu *CPUBackend) Expand(x *tensor.RawTensor, newShape tensor.Shape) *tensor.RawTensor {
	xShape := x.Shape()

	if len(newShape) < len(xShape) {
		panic(fmt.Sprintf("expand: new shape %v has fewer dimensions than input shape %v",
			newShape, xShape))
	}

	offset := len(newShape) - len(xShape)
	for i, xDim := range xShape {
		if newDim := newShape[offset+i]; xDim != 1 && xDim != newDim {
			panic(fmt.Sprintf("expand: cannot expand dimension %d from %d to %d", i, xDim, newDim))
		}
	}

	result, err := tensor.NewRaw(newShape, x.DType(), cpu.device)
	if err != nil {
		panic(fmt.Sprintf("expand: %v", err))
	}

	switch x.DType() {
	case tensor.Float32:
		expandBroadcast(result.AsFloat32(), x.AsFloat32(), xShape, newShape)
	case tensor.Float64:
		expandBroadcast(result.AsFloat64(), x.AsFloat64(), xShape, newShape)
	default:
		panic(fmt.Sprintf("expand: unsupported dtype %v", x.DType()))
	}

	return result
}

func expandBroadcast[T tensor.DType](dst, src []T, xShape, outShape tensor.Shape) {
	outStrides := outShape.ComputeStrides()
	inStrides := computeBroadcastStridesForShape(xShape, outShape)
	for i := range dst {
		dst[i] = src[computeFlatIndex(i, outStrides, inStrides)]
	}
}

// permute writes src, of shape inShape, into dst with its axes reordered.
func permute[T tensor.DType](dst, src []T, inShape, outShape tensor.Shape, axes []int) {
	inStrides := inShape.ComputeStrides()
	outStrides := outShape.ComputeStrides()

	// Stride in src for each output axis.
	srcStrides := make([]int, len(axes))
	for i, ax := range axes {
		srcStrides[i] = inStrides[ax]
	}

	for i := range dst {
		dst[i] = src[computeFlatIndex(i, outStrides, srcStrides)]
	}
}
