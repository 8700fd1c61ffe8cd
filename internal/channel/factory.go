//go:build !debug

package channel

// New returns the channel implementation for the build: buffered in
// production so fan-out never blocks a room.
func New[T any](size int) Channel[T] {
	return NewBuffered[T](size)
}
