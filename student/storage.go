package student

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/jacentio/roster/store"
)

// Storage is the document collection behind a Service. Implementations must
// make Modify and Remove single atomic operations keyed by id, and return
// ErrNotFound when no record holds the id at the time they are applied.
type Storage interface {
	// Scan returns every record matching f, in storage order.
	Scan(ctx context.Context, f Filter) ([]Record, error)

	// Fetch returns the record stored under id.
	Fetch(ctx context.Context, id string) (Record, error)

	// Insert stores a new record; r.ID is already assigned.
	Insert(ctx context.Context, r Record) (Record, error)

	// Modify writes the listed top-level fields of merged onto the stored
	// record (absent values are removed) and returns the result.
	Modify(ctx context.Context, id string, merged Record, fields []Field) (Record, error)

	// Remove deletes the record and returns it as it was before removal.
	Remove(ctx context.Context, id string) (Record, error)
}

// DynamoStorage is a Storage backed by a DynamoDB table.
type DynamoStorage struct {
	store *store.Store
	codec Codec
}

var _ Storage = (*DynamoStorage)(nil)

// NewDynamoStorage creates a Storage over s.
func NewDynamoStorage(s *store.Store) *DynamoStorage {
	return &DynamoStorage{
		store: s,
		codec: Codec{KeyAttribute: s.Config().KeyAttribute},
	}
}

// Scan implements Storage.
func (d *DynamoStorage) Scan(ctx context.Context, f Filter) ([]Record, error) {
	items, err := d.store.Scan(ctx, f.scanInput())
	if err != nil {
		return nil, fmt.Errorf("scan students: %w", err)
	}

	records := make([]Record, 0, len(items))
	for _, item := range items {
		r, err := d.codec.FromItem(item.Raw)
		if err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, nil
}

// Fetch implements Storage.
func (d *DynamoStorage) Fetch(ctx context.Context, id string) (Record, error) {
	item, err := d.store.Get(ctx, d.store.Key(id))
	if err != nil {
		return Record{}, mapStoreError(err)
	}
	return d.codec.FromItem(item.Raw)
}

// Insert implements Storage.
func (d *DynamoStorage) Insert(ctx context.Context, r Record) (Record, error) {
	item, err := d.codec.ToItem(r)
	if err != nil {
		return Record{}, err
	}
	if err := d.store.Put(ctx, item); err != nil {
		return Record{}, fmt.Errorf("insert student %s: %w", r.ID, err)
	}
	return r, nil
}

// Modify implements Storage.
func (d *DynamoStorage) Modify(ctx context.Context, id string, merged Record, fields []Field) (Record, error) {
	input := store.UpdateInput{}
	for _, f := range fields {
		av, err := encodeField(merged, f)
		if err != nil {
			return Record{}, err
		}
		if av == nil {
			input.Remove = append(input.Remove, string(f))
			continue
		}
		if input.Set == nil {
			input.Set = make(map[string]types.AttributeValue)
		}
		input.Set[string(f)] = av
	}

	item, err := d.store.Update(ctx, d.store.Key(id), input)
	if err != nil {
		return Record{}, mapStoreError(err)
	}
	return d.codec.FromItem(item.Raw)
}

// Remove implements Storage.
func (d *DynamoStorage) Remove(ctx context.Context, id string) (Record, error) {
	item, err := d.store.Delete(ctx, d.store.Key(id))
	if err != nil {
		return Record{}, mapStoreError(err)
	}
	return d.codec.FromItem(item.Raw)
}

func mapStoreError(err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return ErrNotFound
	}
	return err
}
