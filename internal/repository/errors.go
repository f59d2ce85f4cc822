package repository

import "errors"

// ErrNotFound marks lookups and updates that matched no row. Services
// translate it to the not-found/bad-request response class; any other
// repository error is an upstream failure and surfaces as a 500.
var ErrNotFound = errors.New("not found")
