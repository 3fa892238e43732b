// Package store provides a DynamoDB data access layer for a single-table
// document collection keyed by an opaque string identifier.
//
// The store is deliberately schema-agnostic: callers hand it raw items
// (map[string]types.AttributeValue) and receive raw items back. Every write
// is a single conditional request, so no read-modify-write window is opened
// by the store itself.
//
// # Key Features
//
//   - Insert that refuses to overwrite an existing key
//   - Partial update (SET / REMOVE) conditioned on the item existing
//   - Atomic delete returning the removed item
//   - Filtered scan with optional parallel segments
//   - Managed created_at / updated_at timestamps
//
// # Client
//
// [New] accepts anything implementing [API], which *dynamodb.Client does:
//
//	cfg, _ := config.LoadDefaultConfig(ctx)
//	s := store.New(dynamodb.NewFromConfig(cfg), store.DefaultConfig())
//
// # Configuration
//
// Use [DefaultConfig] for small tables (ScanSegments=1, sequential scan).
// Increase ScanSegments to fan a scan out over parallel segments:
//
//	cfg := store.DefaultConfig()
//	cfg.ScanSegments = 8
//
// # Errors
//
//   - [ErrNotFound] - item doesn't exist, or vanished before a conditional write
//   - [ErrAlreadyExists] - insert collided with an existing key
package store
