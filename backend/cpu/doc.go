// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package cpu provides the pure Go CPU backend.
//
// # Overview
//
//   - No CGO; GEMM goes through gonum's BLAS implementation
//   - Im2col convolutions with input and kernel backward kernels
//   - Float32 and Float64 support
//   - NumPy-compatible broadcasting for element-wise operations
//
// # Basic Usage
//
//	backend := cpu.New()
//	x := tensor.Zeros[float32](tensor.Shape{1, 3, 64, 64}, backend)
//	y := x.AddScalar(0.5)
//
// Wrap it with autodiff.New to record gradients:
//
//	ad := autodiff.New(cpu.New())
//
// # Thread Safety
//
// Kernels allocate their outputs and keep no mutable state, so a backend
// may be shared between goroutines. Tensors themselves are not synchronized.
package cpu
