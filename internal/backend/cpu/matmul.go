package cpu

import (
	"fmt"

	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas32"
	"gonum.org/v1/gonum/blas/blas64"

	"github.com/born-ml/stylize/internal/tensor"
)

// MatMul performs matrix multiplication.
// For 2D tensors: (M, K) @ (K, N) -> (M, N), computed with BLAS GEMM.
func (cpu *CPUBackend) MatMul(a, b *tensor.RawTensor) *tensor.RawTensor {
	aShape := a.Shape()
	bShape := b.Shape()

	if len(aShape) != 2 || len(bShape) != 2 {
		panic(fmt.Sprintf("matmul: only 2D tensors supported, got %dD and %dD", len(aShape), len(bShape)))
	}

	m, k := aShape[0], aShape[1]
	kAlt, n := bShape[0], bShape[1]

	if k != kAlt {
		panic(fmt.Sprintf("matmul: shape mismatch [%d,%d] @ [%d,%d]", m, k, kAlt, n))
	}

	result, err := tensor.NewRaw(tensor.Shape{m, n}, a.DType(), cpu.device)
	if err != nil {
		panic(fmt.Sprintf("matmul: failed to create result tensor: %v", err))
	}

	switch a.DType() {
	case tensor.Float32:
		gemm(false, false, m, n, k, 1, a.AsFloat32(), b.AsFloat32(), 0, result.AsFloat32())
	case tensor.Float64:
		gemm(false, false, m, n, k, 1, a.AsFloat64(), b.AsFloat64(), 0, result.AsFloat64())
	default:
		panic(fmt.Sprintf("matmul: unsupported dtype %s", a.DType()))
	}

	return result
}

// gemm computes c = alpha*op(a)*op(b) + beta*c on dense row-major matrices.
//
// op(a) is m×k and op(b) is k×n; when transA is set a is stored k×m,
// when transB is set b is stored n×k. c is always m×n.
func gemm[T tensor.DType](transA, transB bool, m, n, k int, alpha T, a, b []T, beta T, c []T) {
	tA, aRows, aCols := blas.NoTrans, m, k
	if transA {
		tA, aRows, aCols = blas.Trans, k, m
	}
	tB, bRows, bCols := blas.NoTrans, k, n
	if transB {
		tB, bRows, bCols = blas.Trans, n, k
	}

	switch av := any(a).(type) {
	case []float32:
		blas32.Gemm(tA, tB, float32(alpha),
			blas32.General{Rows: aRows, Cols: aCols, Stride: aCols, Data: av},
			blas32.General{Rows: bRows, Cols: bCols, Stride: bCols, Data: any(b).([]float32)},
			float32(beta),
			blas32.General{Rows: m, Cols: n, Stride: n, Data: any(c).([]float32)})
	case []float64:
		blas64.Gemm(tA, tB, float64(alpha),
			blas64.General{Rows: aRows, Cols: aCols, Stride: aCols, Data: av},
			blas64.General{Rows: bRows, Cols: bCols, Stride: bCols, Data: any(b).([]float64)},
			float64(beta),
			blas64.General{Rows: m, Cols: n, Stride: n, Data: any(c).([]float64)})
	default:
		panic("gemm: unsupported element type")
	}
}
