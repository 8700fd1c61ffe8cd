//go:build debug

package channel

// New returns the channel implementation for the build: unbuffered in
// debug builds (size is ignored) so races surface as deadlocks.
func New[T any](size int) Channel[T] {
	return NewUnbuffered[T]()
}
