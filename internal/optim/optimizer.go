// Package optim implements the optimizers that update the image in place.
//
// This package provides:
//   - Optimizer interface: Closure-driven step protocol
//   - LBFGS: Limited-memory BFGS with an optional strong-Wolfe line search
//   - Adam: Adaptive Moment Estimation
//   - SGD: Stochastic Gradient Descent with momentum
//
// Design inspired by PyTorch's torch.optim. Every Step takes a closure that
// re-evaluates the loss and stores fresh gradients on the parameters, so
// optimizers that evaluate several times per step (LBFGS) and those that
// evaluate once (Adam, SGD) share one protocol.
//
// Example usage:
//
//	img := nn.NewParameter("image", image)
//	optimizer := optim.NewLBFGS([]*nn.Parameter[B]{img}, optim.LBFGSConfig{}, backend)
//
//	closure := func() (float32, error) {
//	    optimizer.ZeroGrad()
//	    backend.Tape().Clear()
//	    backend.Tape().StartRecording()
//	    defer backend.Tape().StopRecording()
//
//	    loss := objective(img.Tensor())
//	    grads := autodiff.Backward(loss, backend)
//	    img.SetGrad(tensor.New[float32](grads[img.Tensor().Raw()], backend))
//	    return loss.Item(), nil
//	}
//
//	for range steps {
//	    if _, err := optimizer.Step(closure); err != nil {
//	        return err
//	    }
//	}
package optim

import (
	"github.com/born-ml/stylize/internal/nn"
	"github.com/born-ml/stylize/internal/tensor"
)

// Closure re-evaluates the objective, stores the gradient of every
// parameter via Parameter.SetGrad, and returns the loss.
type Closure func() (float32, error)

// Optimizer is the base interface for all optimization algorithms.
//
// All optimizers must implement:
//   - Step: Perform one optimization step, calling closure as needed
//   - ZeroGrad: Clear gradients before the next evaluation
//   - GetLR: Get current learning rate (for monitoring)
type Optimizer interface {
	// Step performs one optimization step and returns the loss of the
	// first closure evaluation in that step. Closure errors abort the step.
	Step(closure Closure) (float32, error)

	// ZeroGrad clears all parameter gradients.
	ZeroGrad()

	// GetLR returns the current learning rate.
	GetLR() float32
}

// Config is the base configuration for all optimizers.
type Config struct {
	LR float32 // Learning rate
}

// getGradient returns the parameter's gradient data, or nil if the last
// evaluation did not reach it.
func getGradient[B tensor.Backend](param *nn.Parameter[B]) []float32 {
	if param == nil || param.Grad() == nil {
		return nil
	}
	return param.Grad().Raw().AsFloat32()
}

func zeroGrad[B tensor.Backend](params []*nn.Parameter[B]) {
	for _, param := range params {
		param.ZeroGrad()
	}
}
