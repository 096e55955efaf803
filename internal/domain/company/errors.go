package company

import "errors"

var (
	ErrNotFound   = errors.New("company not found")
	ErrDuplicate  = errors.New("a company with this RIF or email already exists")
	ErrInvalidRIF = errors.New("RIF must look like J-12345678-9")
)
