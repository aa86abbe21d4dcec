package errcodes

type Error struct {
	Message string
	Code    string
}

func (err *Error) Error() string {
	return err.Message
}

func (err *Error) As(target interface{}) bool {
	te, ok := target.(*Error)
	if !ok {
		return false
	}
	te.Message = err.Message
	te.Code = err.Code
	return true
}

func (err *Error) Is(target error) bool {
	te, ok := target.(*Error)
	if !ok {
		return false
	}
	return te.Message == err.Message &&
		te.Code == err.Code
}

// NotFound returns an error with a message indicating the given resource.
func NotFound(resource string) error {
	return &Error{
		resource + " not found.",
		"not_found",
	}
}

// Conflict returns an error indicating that the operation would violate a
// uniqueness or reference constraint.
func Conflict(msg string) error {
	return &Error{
		msg,
		"conflict",
	}
}

func UnsupportedMediaType() error {
	return &Error{
		"Unsupported Media Type",
		"unsupported_media_type",
	}
}

func ValidationError(msg string) error {
	return &Error{
		msg,
		"validation_error",
	}
}
