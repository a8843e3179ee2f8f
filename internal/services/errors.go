package services

import (
	"errors"

	"task-manager/server/internal/store"
)

var (
	ErrBadRequest = errors.New("bad request")
	ErrNotFound   = errors.New("not found")
	ErrConflict   = errors.New("conflict")
)

func isNotFound(err error) bool {
	return errors.Is(err, store.ErrNotFound)
}
