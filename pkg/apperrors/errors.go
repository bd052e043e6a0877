package apperrors

import "errors"

var (
	ErrMissingInput    = errors.New("pergunta é obrigatória")
	ErrNotFound        = errors.New("not found")
	ErrUnauthorized    = errors.New("unauthorized")
	ErrExecutionFailed = errors.New("query execution failed on both paths")
	ErrUnsafeInput     = errors.New("request value failed injection screening")
)
