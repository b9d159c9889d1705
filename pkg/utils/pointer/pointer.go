package pointer

func Ref[T any](t T) *T {
	return &t
}

// Deref returns *ptr, or the zero value of T when ptr is nil.
func Deref[T any](ptr *T) T {
	if ptr == nil {
		return *new(T)
	}
	return *ptr
}
