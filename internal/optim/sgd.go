package optim

import (
	"gonum.org/v1/gonum/blas/blas32"

	"github.com/born-ml/stylize/internal/nn"
	"github.com/born-ml/stylize/internal/tensor"
)

// SGD implements Stochastic Gradient Descent with optional momentum.
//
// Update rule without momentum:
//
//	param = param - lr * gradient
//
// With momentum:
//
//	velocity = momentum * velocity + gradient
//	param = param - lr * velocity
//
// Each Step evaluates the closure exactly once.
type SGD[B tensor.Backend] struct {
	params     []*nn.Parameter[B]
	lr         float32
	momentum   float32
	velocities map[*nn.Parameter[B]][]float32
}

// SGDConfig holds configuration for SGD optimizer.
type SGDConfig struct {
	LR       float32 // Learning rate (default: 0.01)
	Momentum float32 // Momentum factor (default: 0.0, range: [0, 1))
}

// NewSGD creates a new SGD optimizer.
func NewSGD[B tensor.Backend](params []*nn.Parameter[B], config SGDConfig, _ B) *SGD[B] {
	if config.LR == 0 {
		config.LR = 0.01
	}

	return &SGD[B]{
		params:     params,
		lr:         config.LR,
		momentum:   config.Momentum,
		velocities: make(map[*nn.Parameter[B]][]float32),
	}
}

// Step evaluates the closure and applies one SGD update.
//
// Parameters with no gradient are skipped.
func (s *SGD[B]) Step(closure Closure) (float32, error) {
	loss, err := closure()
	if err != nil {
		return 0, err
	}

	for _, param := range s.params {
		grad := getGradient(param)
		if grad == nil {
			continue
		}

		update := grad
		if s.momentum != 0 {
			velocity, ok := s.velocities[param]
			if !ok {
				velocity = make([]float32, len(grad))
				s.velocities[param] = velocity
			}
			blas32.Scal(s.momentum, vec(velocity))
			blas32.Axpy(1, vec(grad), vec(velocity))
			update = velocity
		}

		blas32.Axpy(-s.lr, vec(update), vec(param.Tensor().Data()))
	}

	return loss, nil
}

// ZeroGrad clears gradients for all parameters.
func (s *SGD[B]) ZeroGrad() {
	zeroGrad(s.params)
}

// GetLR returns the current learning rate.
func (s *SGD[B]) GetLR() float32 {
	return s.lr
}

// SetLR updates the learning rate.
func (s *SGD[B]) SetLR(lr float32) {
	s.lr = lr
}
