package models

import "errors"

// ErrValidation marks malformed input. Requests failing validation are
// rejected before any side effect.
var ErrValidation = errors.New("validation")

// ErrNotFound marks a missing entity.
var ErrNotFound = errors.New("not found")
