package entitlement

import "errors"

var (
	ErrNotFound   = errors.New("entitlement not found")
	ErrStaleEvent = errors.New("lifecycle event is older than the last applied one")
)
