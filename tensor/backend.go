// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package tensor

import "github.com/born-ml/stylize/internal/tensor"

// Backend is the set of raw kernels a compute backend implements:
// broadcasting arithmetic, GEMM, convolution and pooling with their
// backward kernels, ReLU, shape operations and reductions.
//
// Implementations:
//   - backend/cpu: pure Go kernels, gonum BLAS for GEMM
//   - autodiff: decorator over any backend that records a gradient tape
type Backend = tensor.Backend
