package entitlement

import "fmt"

// ValidationError indicates a malformed or missing identifier. The caller is
// at fault; the request is never retried.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("entitlement: invalid %s: %s", e.Field, e.Reason)
}

// NotFoundError indicates a referenced user, organization or plan does not
// exist.
type NotFoundError struct {
	Resource string
	ID       int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("entitlement: %s %d not found", e.Resource, e.ID)
}

// ProviderError wraps a failed data provider query. Resolution aborts: a
// genuine provider failure is never substituted with empty data.
type ProviderError struct {
	Source string
	Err    error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("entitlement: provider %s: %v", e.Source, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// CacheError wraps a failed cache operation. It is always a soft failure:
// resolution falls through to the providers and mutations proceed.
type CacheError struct {
	Op  string
	Key string
	Err error
}

func (e *CacheError) Error() string {
	return fmt.Sprintf("entitlement: cache %s %s: %v", e.Op, e.Key, e.Err)
}

func (e *CacheError) Unwrap() error { return e.Err }
