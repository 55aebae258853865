// Package result provides a two-variant outcome wrapper for recoverable
// control flow. Callers branch on OK instead of treating absence as an error.
package result

// Result is either a success carrying a value or a failure carrying an error.
type Result[T any] struct {
	ok    bool
	value T
	err   error
}

// Success wraps a value.
func Success[T any](value T) Result[T] {
	return Result[T]{ok: true, value: value}
}

// Failure wraps an error.
func Failure[T any](err error) Result[T] {
	return Result[T]{err: err}
}

// OK reports whether the result is a success.
func (r Result[T]) OK() bool { return r.ok }

// Value returns the success value, or the zero value on failure.
func (r Result[T]) Value() T { return r.value }

// Err returns the failure error, or nil on success.
func (r Result[T]) Err() error { return r.err }

// Get unpacks the result into the usual Go pair.
func (r Result[T]) Get() (T, error) {
	return r.value, r.err
}
