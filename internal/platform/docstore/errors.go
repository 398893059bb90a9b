package docstore

import "errors"

var (
	ErrInvalidPath      = errors.New("invalid document path")
	ErrInvalidValue     = errors.New("document value must be an object")
	ErrOverlappingPaths = errors.New("update paths overlap")
)
