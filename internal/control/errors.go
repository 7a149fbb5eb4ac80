package control

import "errors"

var (
	errNotNumeric = errors.New("value is not numeric")
	errNotString  = errors.New("value is not a string")
	errNotBool    = errors.New("value is not a boolean")
)
