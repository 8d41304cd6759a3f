package pedersen

import "errors"

var (
	// ErrInvalidScalar ...
	ErrInvalidScalar = errors.New("invalid scalar")
	// ErrInvalidPoint ...
	ErrInvalidPoint = errors.New("invalid curve point")
	// ErrInvalidSignature ...
	ErrInvalidSignature = errors.New("invalid signature")
	// ErrOpenFailed is returned when sealed secrets can't be decrypted with the
	// given key.
	ErrOpenFailed = errors.New("failed to open sealed amount secrets")
)
