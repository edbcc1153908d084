package llm

// Result carries either a value produced normally or a fallback value along
// with the reason the normal path was abandoned.
type Result[T any] struct {
	Value    T
	Degraded bool
	Reason   string
}

// Ok wraps a normally produced value
func Ok[T any](value T) Result[T] {
	return Result[T]{Value: value}
}

// Degraded wraps a fallback value and the reason it was used
func Degraded[T any](fallback T, reason string) Result[T] {
	return Result[T]{Value: fallback, Degraded: true, Reason: reason}
}
