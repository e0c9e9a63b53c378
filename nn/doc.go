// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package nn exposes the layers a style transfer pipeline is built from.
//
// # Feature layers
//
// Conv2D, ReLU, MaxPool2D and BatchNorm2D are the layer kinds the style
// assembler recognizes. A custom feature network is a slice of them:
//
//	rng := rand.New(rand.NewSource(1))
//	layers := []nn.Module[B]{
//	    nn.NewConv2D(3, 16, 3, 3, 1, 1, true, rng, backend),
//	    nn.NewReLU[B](),
//	    nn.NewMaxPool2D(2, 2, backend),
//	}
//
// # Probes
//
// ContentLoss and StyleLoss pass their input through unchanged and keep
// the loss of the latest forward pass:
//
//	probe := nn.NewStyleLoss(features)
//	probe.Forward(x)
//	loss := probe.Loss() // mean((Gram(x) - Gram(features))^2)
package nn
