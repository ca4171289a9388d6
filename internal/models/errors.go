package models

import "errors"

// ErrInsufficientHistory is returned by providers when fewer than two closes are available.
var ErrInsufficientHistory = errors.New("insufficient price history")
