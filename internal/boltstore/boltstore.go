// Package boltstore implements student.Storage on an embedded bbolt file,
// for running the service without DynamoDB.
//
// Each student is one key in a single bucket, keyed by its identifier, with
// the document encoded as msgpack. Modify and Remove run inside one bolt
// write transaction, so they are atomic with respect to other writers.
package boltstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/vmihailenco/msgpack/v5"
	"go.etcd.io/bbolt"

	"github.com/jacentio/roster/student"
)

// DefaultBucket is the bucket used when Config.Bucket is empty.
const DefaultBucket = "students"

// ErrAlreadyExists is returned when inserting a record whose identifier is taken.
var ErrAlreadyExists = errors.New("roster: student already exists")

// Config holds configuration for Open.
type Config struct {
	// Path is the database file.
	Path string

	// Bucket is the bucket holding student documents.
	// Default: "students"
	Bucket string

	// Timeout bounds how long Open waits for the file lock.
	// Default: 1s
	Timeout time.Duration
}

func (c *Config) validate() {
	if c.Bucket == "" {
		c.Bucket = DefaultBucket
	}
	if c.Timeout <= 0 {
		c.Timeout = time.Second
	}
}

// Store is a bbolt-backed student.Storage.
type Store struct {
	db     *bbolt.DB
	bucket []byte
}

var _ student.Storage = (*Store)(nil)

// Open opens (creating if needed) the database file and its bucket.
func Open(cfg Config) (*Store, error) {
	cfg.validate()

	db, err := bbolt.Open(cfg.Path, 0o600, &bbolt.Options{Timeout: cfg.Timeout})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.Path, err)
	}

	s := &Store{db: db, bucket: []byte(cfg.Bucket)}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(s.bucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create bucket %q: %w", cfg.Bucket, err)
	}
	return s, nil
}

// Close releases the database file.
func (s *Store) Close() error {
	return s.db.Close()
}

// Scan implements student.Storage. Records come back in identifier order.
func (s *Store) Scan(ctx context.Context, f student.Filter) ([]student.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	records := []student.Record{}
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(s.bucket).ForEach(func(k, v []byte) error {
			doc, err := decode(v)
			if err != nil {
				return fmt.Errorf("decode student %s: %w", k, err)
			}
			if r := doc.record(); f.Match(r) {
				records = append(records, r)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// Fetch implements student.Storage.
func (s *Store) Fetch(ctx context.Context, id string) (student.Record, error) {
	if err := ctx.Err(); err != nil {
		return student.Record{}, err
	}

	var doc *document
	err := s.db.View(func(tx *bbolt.Tx) error {
		var err error
		doc, err = s.load(tx, id)
		return err
	})
	if err != nil {
		return student.Record{}, err
	}
	return doc.record(), nil
}

// Insert implements student.Storage.
func (s *Store) Insert(ctx context.Context, r student.Record) (student.Record, error) {
	if err := ctx.Err(); err != nil {
		return student.Record{}, err
	}

	now := time.Now().UTC()
	doc := fromRecord(r)
	doc.CreatedAt = now
	doc.UpdatedAt = now

	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(s.bucket)
		if b.Get([]byte(r.ID)) != nil {
			return ErrAlreadyExists
		}
		return s.save(tx, doc)
	})
	if err != nil {
		return student.Record{}, err
	}
	return doc.record(), nil
}

// Modify implements student.Storage.
func (s *Store) Modify(ctx context.Context, id string, merged student.Record, fields []student.Field) (student.Record, error) {
	if err := ctx.Err(); err != nil {
		return student.Record{}, err
	}

	src := fromRecord(merged)
	var doc *document
	err := s.db.Update(func(tx *bbolt.Tx) error {
		var err error
		doc, err = s.load(tx, id)
		if err != nil {
			return err
		}
		for _, f := range fields {
			switch f {
			case student.FieldName:
				doc.Name = src.Name
			case student.FieldAge:
				doc.Age = src.Age
			case student.FieldAddress:
				doc.Address = src.Address
			default:
				return fmt.Errorf("modify: unknown field %q", f)
			}
		}
		doc.UpdatedAt = time.Now().UTC()
		return s.save(tx, doc)
	})
	if err != nil {
		return student.Record{}, err
	}
	return doc.record(), nil
}

// Remove implements student.Storage.
func (s *Store) Remove(ctx context.Context, id string) (student.Record, error) {
	if err := ctx.Err(); err != nil {
		return student.Record{}, err
	}

	var doc *document
	err := s.db.Update(func(tx *bbolt.Tx) error {
		var err error
		doc, err = s.load(tx, id)
		if err != nil {
			return err
		}
		return tx.Bucket(s.bucket).Delete([]byte(id))
	})
	if err != nil {
		return student.Record{}, err
	}
	return doc.record(), nil
}

func (s *Store) load(tx *bbolt.Tx, id string) (*document, error) {
	v := tx.Bucket(s.bucket).Get([]byte(id))
	if v == nil {
		return nil, student.ErrNotFound
	}
	doc, err := decode(v)
	if err != nil {
		return nil, fmt.Errorf("decode student %s: %w", id, err)
	}
	return doc, nil
}

func (s *Store) save(tx *bbolt.Tx, doc *document) error {
	data, err := msgpack.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode student %s: %w", doc.ID, err)
	}
	return tx.Bucket(s.bucket).Put([]byte(doc.ID), data)
}
