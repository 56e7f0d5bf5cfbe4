// Package objectstore stores job text and produced audio in NATS JetStream
// object store buckets.
package objectstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// Error formats.
const (
	bucketDescriptionFmt = "Voice client storage for the %s bucket."
	errFmtBindBucket     = "failed to bind to existing object store bucket '%s': %w"
	errFmtCreateBucket   = "failed to create object store bucket '%s': %w"
	errFmtGetObject      = "failed to get object '%s' from bucket '%s': %w"
	errFmtReadObject     = "failed to read object '%s': %w"
	errFmtCloseObject    = "failed to close object '%s': %w"
	errFmtPutObject      = "failed to put object '%s' to bucket '%s': %w"
	errFmtEmptyKey       = "%w (bucket '%s')"
)

// ErrEmptyKey is returned for operations without an object key.
var ErrEmptyKey = errors.New("object key cannot be empty")

// Store is a core.ObjectStore backed by one JetStream object store bucket.
type Store struct {
	store  nats.ObjectStore
	bucket string
}

// New creates the bucket, or binds to it if it already exists.
func New(jetstreamContext nats.JetStreamContext, bucketName string) (*Store, error) {
	store, err := jetstreamContext.CreateObjectStore(&nats.ObjectStoreConfig{
		Bucket:      bucketName,
		Description: fmt.Sprintf(bucketDescriptionFmt, bucketName),
		Storage:     nats.FileStorage,
		Replicas:    1,
	})
	if err != nil {
		if !errors.Is(err, jetstream.ErrBucketExists) && !errors.Is(err, nats.ErrStreamNameAlreadyInUse) {
			return nil, fmt.Errorf(errFmtCreateBucket, bucketName, err)
		}

		store, err = jetstreamContext.ObjectStore(bucketName)
		if err != nil {
			return nil, fmt.Errorf(errFmtBindBucket, bucketName, err)
		}
	}

	return &Store{store: store, bucket: bucketName}, nil
}

// Bucket returns the bucket name.
func (s *Store) Bucket() string {
	return s.bucket
}

// Download retrieves the object stored under key.
func (s *Store) Download(_ context.Context, key string) ([]byte, error) {
	if key == "" {
		return nil, fmt.Errorf(errFmtEmptyKey, ErrEmptyKey, s.bucket)
	}

	obj, err := s.store.Get(key)
	if err != nil {
		return nil, fmt.Errorf(errFmtGetObject, key, s.bucket, err)
	}

	data, readErr := io.ReadAll(obj)
	closeErr := obj.Close()

	if readErr != nil {
		return nil, fmt.Errorf(errFmtReadObject, key, readErr)
	}

	if closeErr != nil {
		return data, fmt.Errorf(errFmtCloseObject, key, closeErr)
	}

	return data, nil
}

// Upload stores data under key, replacing any previous object.
func (s *Store) Upload(_ context.Context, key string, data []byte) error {
	if key == "" {
		return fmt.Errorf(errFmtEmptyKey, ErrEmptyKey, s.bucket)
	}

	_, err := s.store.Put(&nats.ObjectMeta{Name: key}, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf(errFmtPutObject, key, s.bucket, err)
	}

	return nil
}
