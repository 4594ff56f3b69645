package registry

import "errors"

var (
	// ErrMissingToken is returned by the remote provider when no API token
	// is configured.
	ErrMissingToken = errors.New("registry: api token is required for the remote provider")

	ErrUnknownOperation = errors.New("registry: unknown operation")

	// ErrAmbiguousName is returned by Store.Find when a partial name matches
	// more than one company.
	ErrAmbiguousName = errors.New("registry: name matches more than one company")

	ErrCompanyNotFound = errors.New("registry: company not found")

	// ErrCacheNamespace is returned when a cached provider is built without
	// a namespace.
	ErrCacheNamespace = errors.New("registry: cache namespace is required")
)
