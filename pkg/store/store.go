// Package store is a bbolt-backed persistence layer: one bucket per entity,
// JSON-encoded values, and a per-id mutex for atomic
// read-modify-write updates, grounded in the teacher's session store.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.etcd.io/bbolt"

	"skillforge/pkg/errors"
)

const domain = "store"

// DB owns the single *bbolt.DB shared by every entity bucket, plus a
// per-id lock table used by Store.UpdateAtomic.
type DB struct {
	bolt  *bbolt.DB
	locks sync.Map // id -> *sync.Mutex
}

// Open creates (or reuses) the bbolt file at path, creating parent
// directories as needed.
func Open(path string) (*DB, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.New(errors.CodeIoError, domain, fmt.Sprintf("failed to create directory %s", dir), err)
	}

	b, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, errors.New(errors.CodeIoError, domain, fmt.Sprintf("failed to open bolt db at %s", path), err)
	}
	return &DB{bolt: b}, nil
}

// Close closes the underlying bbolt database.
func (db *DB) Close() error {
	return db.bolt.Close()
}

func (db *DB) lockFor(id string) *sync.Mutex {
	l, _ := db.locks.LoadOrStore(id, &sync.Mutex{})
	return l.(*sync.Mutex)
}

// Store is a typed view over one bbolt bucket.
type Store[T any] struct {
	db     *DB
	bucket []byte
	idOf   func(T) string
}

// NewStore opens (creating if necessary) the named bucket and returns a
// typed Store over it. idOf extracts the entity's primary key.
func NewStore[T any](db *DB, bucket string, idOf func(T) string) (*Store[T], error) {
	err := db.bolt.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucket))
		return err
	})
	if err != nil {
		return nil, errors.New(errors.CodeIoError, domain, fmt.Sprintf("failed to create bucket %s", bucket), err)
	}
	return &Store[T]{db: db, bucket: []byte(bucket), idOf: idOf}, nil
}

// Create inserts a new entity, failing if its id already exists.
func (s *Store[T]) Create(ctx context.Context, entity T) error {
	id := s.idOf(entity)
	return s.db.bolt.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(s.bucket)
		if b.Get([]byte(id)) != nil {
			return errors.New(errors.CodeAlreadyExists, domain, fmt.Sprintf("%s already exists", id), nil)
		}
		data, err := json.Marshal(entity)
		if err != nil {
			return errors.New(errors.CodeInternal, domain, "failed to marshal entity", err)
		}
		return b.Put([]byte(id), data)
	})
}

// Get retrieves an entity by id.
func (s *Store[T]) Get(ctx context.Context, id string) (T, error) {
	var out T
	err := s.db.bolt.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(s.bucket)
		data := b.Get([]byte(id))
		if data == nil {
			return errors.New(errors.CodeNotFound, domain, fmt.Sprintf("%s not found", id), nil)
		}
		return json.Unmarshal(data, &out)
	})
	return out, err
}

// Update overwrites an existing entity, failing if it does not exist.
func (s *Store[T]) Update(ctx context.Context, entity T) error {
	id := s.idOf(entity)
	return s.db.bolt.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(s.bucket)
		if b.Get([]byte(id)) == nil {
			return errors.New(errors.CodeNotFound, domain, fmt.Sprintf("%s not found", id), nil)
		}
		data, err := json.Marshal(entity)
		if err != nil {
			return errors.New(errors.CodeInternal, domain, "failed to marshal entity", err)
		}
		return b.Put([]byte(id), data)
	})
}

// Delete removes an entity by id. Deleting an absent id is not an error.
func (s *Store[T]) Delete(ctx context.Context, id string) error {
	return s.db.bolt.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(s.bucket).Delete([]byte(id))
	})
}

// Exists reports whether id is present.
func (s *Store[T]) Exists(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := s.db.bolt.View(func(tx *bbolt.Tx) error {
		exists = tx.Bucket(s.bucket).Get([]byte(id)) != nil
		return nil
	})
	return exists, err
}

// List returns every entity matching all of the given predicates.
func (s *Store[T]) List(ctx context.Context, predicates ...func(T) bool) ([]T, error) {
	var out []T
	err := s.db.bolt.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(s.bucket).ForEach(func(k, v []byte) error {
			var entity T
			if err := json.Unmarshal(v, &entity); err != nil {
				return nil
			}
			for _, pred := range predicates {
				if !pred(entity) {
					return nil
				}
			}
			out = append(out, entity)
			return nil
		})
	})
	return out, err
}

// UpdateAtomic locks id, reads the current value, applies fn, and writes the
// result back, all within one bbolt transaction. Concurrent monitor polls
// and lifecycle commands against the same entity serialize through this
// lock rather than racing on read-modify-write.
func (s *Store[T]) UpdateAtomic(ctx context.Context, id string, fn func(T) (T, error)) (T, error) {
	var zero T
	lock := s.db.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	var result T
	err := s.db.bolt.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(s.bucket)
		data := b.Get([]byte(id))
		if data == nil {
			return errors.New(errors.CodeNotFound, domain, fmt.Sprintf("%s not found", id), nil)
		}
		var current T
		if err := json.Unmarshal(data, &current); err != nil {
			return errors.New(errors.CodeInternal, domain, "failed to unmarshal entity", err)
		}
		updated, err := fn(current)
		if err != nil {
			return err
		}
		encoded, err := json.Marshal(updated)
		if err != nil {
			return errors.New(errors.CodeInternal, domain, "failed to marshal entity", err)
		}
		if err := b.Put([]byte(id), encoded); err != nil {
			return err
		}
		result = updated
		return nil
	})
	if err != nil {
		return zero, err
	}
	return result, nil
}
