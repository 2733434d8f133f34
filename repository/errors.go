package repository

import "errors"

var (
	ErrNotFound        = errors.New("not found")
	ErrDuplicateAnswer = errors.New("answer already recorded for this opinion")
)
