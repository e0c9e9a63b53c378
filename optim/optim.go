// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package optim exposes the pixel optimizers.
//
// Every optimizer takes a closure that re-evaluates the loss and stores
// fresh gradients on its parameters. L-BFGS may call it several times per
// step; Adam and SGD call it once.
package optim

import (
	"github.com/born-ml/stylize/internal/optim"
	"github.com/born-ml/stylize/nn"
	"github.com/born-ml/stylize/tensor"
)

// Closure re-evaluates the objective and returns the loss.
type Closure = optim.Closure

// Optimizer is the common step protocol.
type Optimizer = optim.Optimizer

// Line search choices for LBFGSConfig.
const (
	LineSearchNone        = optim.LineSearchNone
	LineSearchStrongWolfe = optim.LineSearchStrongWolfe
)

// LBFGS is limited-memory BFGS.
type LBFGS[B tensor.Backend] = optim.LBFGS[B]

// LBFGSConfig tunes LBFGS. Zero fields take the defaults.
type LBFGSConfig = optim.LBFGSConfig

// NewLBFGS creates an L-BFGS optimizer over params.
func NewLBFGS[B tensor.Backend](params []*nn.Parameter[B], config LBFGSConfig, backend B) *LBFGS[B] {
	return optim.NewLBFGS(params, config, backend)
}

// Adam is the Adam optimizer.
type Adam[B tensor.Backend] = optim.Adam[B]

// AdamConfig tunes Adam. Zero fields take the defaults.
type AdamConfig = optim.AdamConfig

// NewAdam creates an Adam optimizer over params.
func NewAdam[B tensor.Backend](params []*nn.Parameter[B], config AdamConfig, backend B) *Adam[B] {
	return optim.NewAdam(params, config, backend)
}

// SGD is stochastic gradient descent with momentum.
type SGD[B tensor.Backend] = optim.SGD[B]

// SGDConfig tunes SGD. Zero fields take the defaults.
type SGDConfig = optim.SGDConfig

// NewSGD creates an SGD optimizer over params.
func NewSGD[B tensor.Backend](params []*nn.Parameter[B], config SGDConfig, backend B) *SGD[B] {
	return optim.NewSGD(params, config, backend)
}
