package repository

import "errors"

// ErrConditionNotMet means a guarded update matched no row.
var ErrConditionNotMet = errors.New("conditional update matched no rows")
