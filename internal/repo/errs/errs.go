// Package errs holds the repo layer's sentinel errors in a leaf package
// so handler packages that repo itself depends on (e.g. internal/rates)
// can match them without creating an import cycle.
package errs

import "errors"

var (
	// ErrTenantMissing indicates the tenant identifier was not found in context.
	ErrTenantMissing = errors.New("tenant missing")
	// ErrTenantInvalid indicates the tenant identifier could not be parsed.
	ErrTenantInvalid = errors.New("tenant invalid")
	// ErrNotFound is returned when a tenant-scoped row does not exist.
	ErrNotFound = errors.New("not found")
)
