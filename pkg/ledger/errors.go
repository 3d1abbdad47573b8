package ledger

import "errors"

var (
	ErrNegativeIncrement = errors.New("usage increment must be non-negative")
	ErrStorageFailure    = errors.New("usage ledger storage failure")
)
