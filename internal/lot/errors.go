package lot

import "errors"

var (
	// ErrInvalidIdentifier is returned when text does not match the
	// <digits><optional letters> identifier grammar.
	ErrInvalidIdentifier = errors.New("lot identifier must be digits followed by an optional alphabetic suffix")
	// ErrMalformedRange is returned when range text is not two valid
	// identifiers separated by exactly one hyphen.
	ErrMalformedRange = errors.New("lot range must be '<start>-<end>', e.g. 100A-105A")
	// ErrSuffixMismatch is returned when the two range tokens carry
	// different suffixes.
	ErrSuffixMismatch = errors.New("lot range start and end suffixes must match")
	// ErrInvalidOrder is returned when the start number exceeds the end number.
	ErrInvalidOrder = errors.New("lot range start cannot be greater than end")
)
