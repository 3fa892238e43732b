// Package student implements record access for student documents: listing
// with filters, fetch, create, partial update with a one-level address merge,
// and delete.
//
// A [Service] sits on top of any [Storage]. [DynamoStorage] adapts a
// [store.Store]; the bbolt backend lives in internal/boltstore.
//
// # Partial updates
//
// Update input is decoded into a [Patch] whose fields are [Optional], so an
// omitted field, an explicit null and a value stay distinguishable:
//
//	{"address": {"city": "Z"}}
//
// changes only address.city and leaves name, age and address.country as
// stored. Only the top-level fields present in the patch are written back.
//
// # Errors
//
//   - [ErrInvalidIdentifier] - identifier is not a UUID
//   - [ErrNotFound] - no student holds the identifier
//   - [ErrValidation] - input does not satisfy the schema
package student
