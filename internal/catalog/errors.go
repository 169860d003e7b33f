package catalog

import "errors"

var (
	// ErrServiceNotFound is returned when no service matches the lookup.
	ErrServiceNotFound = errors.New("service not found")

	// ErrFeeReferenceNotFound is returned when a tenant has no fee split configured.
	ErrFeeReferenceNotFound = errors.New("fee reference not found")
)
