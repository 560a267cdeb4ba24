package loader

// duplicateBundleError signals a bundle id declared twice without a reset.
type duplicateBundleError struct{ id string }

func (e duplicateBundleError) Error() string { return "bundle already declared: " + e.id }

// ErrDuplicateBundle constructs a duplicateBundleError.
func ErrDuplicateBundle(id string) error { return duplicateBundleError{id: id} }

// IsDuplicateBundle reports whether err indicates a duplicate bundle declaration (map to 409).
func IsDuplicateBundle(err error) bool {
	_, ok := err.(duplicateBundleError)
	return ok
}

// keyNotFoundError signals a keyed-config lookup miss.
type keyNotFoundError struct{ key string }

func (e keyNotFoundError) Error() string { return "bundle key not found: " + e.key }

// ErrKeyNotFound constructs a keyNotFoundError.
func ErrKeyNotFound(key string) error { return keyNotFoundError{key: key} }

// IsKeyNotFound reports whether err indicates a missing keyed-config entry.
func IsKeyNotFound(err error) bool {
	_, ok := err.(keyNotFoundError)
	return ok
}
