package utils

func Ptr[T any](v T) *T {
	return &v
}

// Optional returns nil for the zero value so that JSON encoding omits the field
// instead of sending an empty value.
func Optional[T comparable](v T) *T {
	var zero T
	if v == zero {
		return nil
	}
	return &v
}
