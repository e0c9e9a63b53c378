// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package tensor is the public tensor API of stylize.
//
// Images are float32 tensors of shape [1, 3, H, W] with values in [0, 1]:
//
//	backend := cpu.New()
//	img := tensor.Zeros[float32](tensor.Shape{1, 3, 256, 256}, backend)
//	img.Set(1, 0, 0, 10, 10) // red pixel at (10, 10)
//
// Types are aliases of the internal implementation, so values move freely
// between this package and the nn, style and loader packages.
package tensor
