package graph

import "github.com/llmspell/llmspell/pkg/errs"

// ErrEntityNotFound reports that no current (or point-in-time) version of
// the entity exists for the calling tenant.
func ErrEntityNotFound(id string) error {
	return &errs.Error{Kind: errs.KindStorage, Message: "entity not found: " + id}
}

// ErrNoTenantContext reports that an operation was attempted without a
// tenant having been established via WithTenant, per spec.md §4.10's
// "no implicit cross-tenant access" invariant.
var ErrNoTenantContext = errs.Security("no tenant context set; call WithTenant first")

// ErrInvalidEntityID reports that an entity or relationship endpoint ID is
// not a well-formed identifier (a UUID, in the Postgres-backed store).
func ErrInvalidEntityID(id string, cause error) error {
	return &errs.Error{Kind: errs.KindValidation, Field: "id", Message: "invalid entity id: " + id, Cause: cause}
}
