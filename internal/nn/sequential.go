package nn

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/born-ml/stylize/internal/tensor"
)

// Sequential is a container module that chains named modules together.
//
// Each module's output becomes the next module's input. Every module has a
// name; modules added without one are named by their position ("0", "1", ...).
//
// Example:
//
//	model := nn.NewSequential[Backend]()
//	model.AddNamed("conv_1", nn.NewConv2D(3, 64, 3, 3, 1, 1, true, rng, backend))
//	model.AddNamed("relu_1", nn.NewReLU[Backend]())
//
//	output := model.Forward(input)
type Sequential[B tensor.Backend] struct {
	modules []Module[B]
	names   []string
}

// NewSequential creates a new Sequential container with positional names.
func NewSequential[B tensor.Backend](modules ...Module[B]) *Sequential[B] {
	s := &Sequential[B]{}
	for _, m := range modules {
		s.Add(m)
	}
	return s
}

// Forward applies all modules in sequence.
func (s *Sequential[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	output := input

	for _, module := range s.modules {
		output = module.Forward(output)
	}

	return output
}

// Parameters returns all parameters from all modules, in order.
func (s *Sequential[B]) Parameters() []*Parameter[B] {
	var params []*Parameter[B]

	for _, module := range s.modules {
		params = append(params, module.Parameters()...)
	}

	return params
}

// Add appends a module named by its position.
func (s *Sequential[B]) Add(module Module[B]) {
	s.AddNamed(strconv.Itoa(len(s.modules)), module)
}

// AddNamed appends a module under the given name.
//
// If the name is already taken, the existing module is replaced in place
// and keeps its position in the chain.
func (s *Sequential[B]) AddNamed(name string, module Module[B]) {
	if i := s.Index(name); i >= 0 {
		s.modules[i] = module
		return
	}
	s.modules = append(s.modules, module)
	s.names = append(s.names, name)
}

// Index returns the position of the named module, or -1.
func (s *Sequential[B]) Index(name string) int {
	for i, n := range s.names {
		if n == name {
			return i
		}
	}
	return -1
}

// Len returns the number of modules in the sequence.
func (s *Sequential[B]) Len() int {
	return len(s.modules)
}

// Module returns the module at the given index.
//
// Panics if index is out of bounds.
func (s *Sequential[B]) Module(index int) Module[B] {
	if index < 0 || index >= len(s.modules) {
		panic("Sequential.Module: index out of bounds")
	}
	return s.modules[index]
}

// Name returns the name of the module at the given index.
//
// Panics if index is out of bounds.
func (s *Sequential[B]) Name(index int) string {
	if index < 0 || index >= len(s.names) {
		panic("Sequential.Name: index out of bounds")
	}
	return s.names[index]
}

// Names returns a copy of the module names, in order.
func (s *Sequential[B]) Names() []string {
	return append([]string(nil), s.names...)
}

// Truncate keeps the first n modules and drops the rest.
//
// Panics if n is negative or larger than Len.
func (s *Sequential[B]) Truncate(n int) {
	if n < 0 || n > len(s.modules) {
		panic(fmt.Sprintf("Sequential.Truncate: %d out of range [0, %d]", n, len(s.modules)))
	}
	clear(s.modules[n:])
	s.modules = s.modules[:n]
	s.names = s.names[:n]
}

// String renders the chain one module per line, PyTorch style.
func (s *Sequential[B]) String() string {
	var sb strings.Builder
	sb.WriteString("Sequential(\n")
	for i, m := range s.modules {
		desc := fmt.Sprintf("%T", m)
		if st, ok := m.(fmt.Stringer); ok {
			desc = st.String()
		}
		fmt.Fprintf(&sb, "  (%s): %s\n", s.names[i], desc)
	}
	sb.WriteString(")")
	return sb.String()
}
