package torchpt

import "fmt"

// Tensor is a dense float32 tensor decoded from a .pt file.
type Tensor struct {
	// Shape is the declared tensor shape, outermost dimension first.
	Shape []int

	// Data holds the elements in C (row-major) order.
	Data []float32
}

// Numel returns the number of elements implied by the shape.
func (t *Tensor) Numel() int {
	n := 1
	for _, d := range t.Shape {
		n *= d
	}
	return n
}

// Nested converts the flat data into nested slices matching the shape,
// suitable for JSON serialization. A rank-3 tensor becomes [][][]float32
// (as []any of []any of []float32).
func (t *Tensor) Nested() any {
	return nest(t.Shape, t.Data)
}

func nest(shape []int, data []float32) any {
	switch len(shape) {
	case 0:
		return data[0]
	case 1:
		return data
	}
	stride := len(data) / shape[0]
	out := make([]any, shape[0])
	for i := range out {
		out[i] = nest(shape[1:], data[i*stride:(i+1)*stride])
	}
	return out
}

// FormatError reports a malformed or unsupported .pt payload.
type FormatError struct {
	Reason string
}

func (e *FormatError) Error() string {
	return "torchpt: " + e.Reason
}

func formatErrf(format string, args ...any) error {
	return &FormatError{Reason: fmt.Sprintf(format, args...)}
}
