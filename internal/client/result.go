package client

// Result is either a value or the reason it could not be fetched. Callers
// decide explicitly what to substitute on failure.
type Result[T any] struct {
	value T
	err   error
}

func Ok[T any](v T) Result[T] {
	return Result[T]{value: v}
}

// Err wraps a failure. A nil err is treated as an unknown failure.
func Err[T any](err error) Result[T] {
	if err == nil {
		err = ErrTransport
	}
	return Result[T]{err: err}
}

func (r Result[T]) OK() bool {
	return r.err == nil
}

func (r Result[T]) Get() (T, error) {
	return r.value, r.err
}

func (r Result[T]) Err() error {
	return r.err
}

// Or returns the value, or fallback() when the result is a failure
func (r Result[T]) Or(fallback func() T) T {
	if r.err != nil {
		return fallback()
	}
	return r.value
}
