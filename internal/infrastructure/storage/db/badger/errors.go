package dbbadger

import "errors"

// ErrStoreClosed is returned when using a repository after Close.
var ErrStoreClosed = errors.New("store is closed")
