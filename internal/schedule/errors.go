package schedule

import "errors"

// ErrFormulaMismatch is returned when a service's gap array does not fit its
// formula type: standard formulas need exactly one gap, dynamic formulas need
// session_count - 1 gaps.
var ErrFormulaMismatch = errors.New("service formula does not match session count")
