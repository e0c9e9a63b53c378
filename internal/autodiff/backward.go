package autodiff

import (
	"github.com/born-ml/stylize/internal/tensor"
)

// BackwardCapable is a backend that owns a gradient tape.
type BackwardCapable interface {
	tensor.Backend
	GetTape() *GradientTape
}

// GetTape returns the backend's tape.
func (b *AutodiffBackend[B]) GetTape() *GradientTape {
	return b.tape
}

// Backward differentiates t, seeded with ones of t's shape, through every
// operation recorded on the backend's tape. The result maps each input
// buffer reached from t to its gradient; frozen buffers are absent.
//
//	backend := autodiff.New(cpu.New())
//	backend.Tape().StartRecording()
//	x := tensor.Ones[float32](tensor.Shape{2}, backend)
//	grads := autodiff.Backward(x.Mul(x).Sum(), backend)
//	_ = grads[x.Raw()] // [2 2]
func Backward[T tensor.DType, B BackwardCapable](t *tensor.Tensor[T, B], backend B) map[*tensor.RawTensor]*tensor.RawTensor {
	tape := backend.GetTape()
	if tape.NumOps() == 0 {
		panic("backward: tape is empty; call Tape().StartRecording() before the forward pass")
	}
	seed := tensor.Ones[T](t.Shape(), backend)
	return tape.Backward(t.Raw(), seed.Raw(), backend)
}
