package cpu

import (
	"fmt"

	"github.com/born-ml/stylize/internal/tensor"
)

// Conv2DInputBackward computes the gradient of a convolution with respect to its input.
//
// Per image: dcols = kernelᵀ @ grad, where kernel is viewed as
// [C_out, C_in*K_h*K_w] and grad as [C_out, H_out*W_out]; dcols is then
// folded back into [C_in, H, W] by col2im.
//
// Returns ∂L/∂input with the input's shape.
func (cpu *CPUBackend) Conv2DInputBackward(input, kernel, grad *tensor.RawTensor, stride, padding int) *tensor.RawTensor {
	g := newConvGeometry("conv2d_input_backward", input.Shape(), kernel.Shape(), stride, padding)
	checkConvGrad("conv2d_input_backward", grad, g)

	inputGrad, err := tensor.NewRaw(input.Shape(), input.DType(), cpu.device)
	if err != nil {
		panic(fmt.Sprintf("conv2d_input_backward: failed to create gradient tensor: %v", err))
	}

	switch input.DType() {
	case tensor.Float32:
		conv2dInputBackward(inputGrad.AsFloat32(), kernel.AsFloat32(), grad.AsFloat32(), g)
	case tensor.Float64:
		conv2dInputBackward(inputGrad.AsFloat64(), kernel.AsFloat64(), grad.AsFloat64(), g)
	default:
		panic(fmt.Sprintf("conv2d_input_backward: unsupported dtype %s", input.DType()))
	}

	return inputGrad
}

func conv2dInputBackward[T tensor.DType](inputGrad, kernel, grad []T, g convGeometry) {
	rows, cols := g.colRows(), g.colCols()
	colBuf := make([]T, rows*cols)
	inSize := g.CIn * g.H * g.W
	outSize := g.COut * cols

	for n := 0; n < g.N; n++ {
		gemm(true, false, rows, cols, g.COut, 1, kernel, grad[n*outSize:(n+1)*outSize], 0, colBuf)
		col2im(inputGrad[n*inSize:(n+1)*inSize], colBuf, g)
	}
}

// Conv2DKernelBackward computes the gradient of a convolution with respect to its kernel.
//
// dK = Σ_n grad_n @ im2col(input_n)ᵀ, a [C_out, C_in*K_h*K_w] matrix that is
// the kernel's memory layout.
func (cpu *CPUBackend) Conv2DKernelBackward(input, kernel, grad *tensor.RawTensor, stride, padding int) *tensor.RawTensor {
	g := newConvGeometry("conv2d_kernel_backward", input.Shape(), kernel.Shape(), stride, padding)
	checkConvGrad("conv2d_kernel_backward", grad, g)

	kernelGrad, err := tensor.NewRaw(kernel.Shape(), kernel.DType(), cpu.device)
	if err != nil {
		panic(fmt.Sprintf("conv2d_kernel_backward: failed to create gradient tensor: %v", err))
	}

	switch input.DType() {
	case tensor.Float32:
		conv2dKernelBackward(kernelGrad.AsFloat32(), input.AsFloat32(), grad.AsFloat32(), g)
	case tensor.Float64:
		conv2dKernelBackward(kernelGrad.AsFloat64(), input.AsFloat64(), grad.AsFloat64(), g)
	default:
		panic(fmt.Sprintf("conv2d_kernel_backward: unsupported dtype %s", input.DType()))
	}

	return kernelGrad
}

func conv2dKernelBackward[T tensor.DType](kernelGrad, input, grad []T, g convGeometry) {
	rows, cols := g.colRows(), g.colCols()
	colBuf := make([]T, rows*cols)
	inSize := g.CIn * g.H * g.W
	outSize := g.COut * cols

	for n := 0; n < g.N; n++ {
		im2col(colBuf, input[n*inSize:(n+1)*inSize], g)
		gemm(false, true, g.COut, rows, cols, 1, grad[n*outSize:(n+1)*outSize], colBuf, 1, kernelGrad)
	}
}

func checkConvGrad(op string, grad *tensor.RawTensor, g convGeometry) {
	want := tensor.Shape{g.N, g.COut, g.HOut, g.WOut}
	if !grad.Shape().Equal(want) {
		panic(fmt.Sprintf("%s: gradient shape %v, expected %v", op, grad.Shape(), want))
	}
}
