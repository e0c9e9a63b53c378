package cpu

// Element-wise kernels passed to elementwise.

func addFloat32(x, y float32) float32 { return x + y }
func subFloat32(x, y float32) float32 { return x - y }
func mulFloat32(x, y float32) float32 { return x * y }
func divFloat32(x, y float32) float32 { return x / y }

func addFloat64(x, y float64) float64 { return x + y }
func subFloat64(x, y float64) float64 { return x - y }
func mulFloat64(x, y float64) float64 { return x * y }
func divFloat64(x, y float64) float64 { return x / y }
