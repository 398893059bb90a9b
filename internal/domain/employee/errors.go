package employee

import "errors"

var (
	ErrNotFound          = errors.New("employee not found")
	ErrUnknownField      = errors.New("unknown employee field")
	ErrInvalidValue      = errors.New("value not allowed for field")
	ErrInvalidCollection = errors.New("unknown employee collection")
	ErrEmptyPatch        = errors.New("patch has no fields")
)
