package utils

import "errors"

// PermError is a permanent error that callers should not retry, e.g. an
// object store 403.
type PermError string

func (e PermError) Error() string {
	return string(e)
}

func (e PermError) IsPermanent() bool {
	return true
}

// ErrNotFound distinguishes a missing row or object from a store failure.
var ErrNotFound = errors.New("not found")

func IsPermanent(err error) bool {
	var pe PermError
	return errors.As(err, &pe)
}
