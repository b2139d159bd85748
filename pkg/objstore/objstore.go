// Package objstore provides a typed client for the tagged blob store that
// backs the pipeline: raw draw objects, their processing tags, and the
// analytical snapshot all live behind the Store interface.
package objstore

import (
	"context"
	"errors"
	"fmt"
)

// ErrNotFound is returned by Get when no object exists at the key.
var ErrNotFound = errors.New("object not found")

// ProcessedTagKey is the single tag key the pipeline recognizes. Its value is
// "true" or "false"; absence of the tag means the object is invisible to both
// the unprocessed and processed scans.
const ProcessedTagKey = "processed"

// Tag is one key/value pair attached to a stored object.
type Tag struct {
	Key   string
	Value string
}

// Store is the object-store surface the pipeline needs. Implementations:
// S3Store (production, MinIO-compatible) and Memory (tests).
type Store interface {
	// Put writes an object. Existing objects are overwritten; callers that
	// need write-once semantics check Exists first.
	Put(ctx context.Context, key string, body []byte) error
	// Get reads an object, returning ErrNotFound if it does not exist.
	Get(ctx context.Context, key string) ([]byte, error)
	// Exists reports whether an object is present at the key.
	Exists(ctx context.Context, key string) (bool, error)
	// List returns all keys under the prefix, paginating as needed.
	List(ctx context.Context, prefix string) ([]string, error)
	// GetTags returns the object's full tag set.
	GetTags(ctx context.Context, key string) ([]Tag, error)
	// PutTags replaces the object's full tag set.
	PutTags(ctx context.Context, key string, tags []Tag) error
}

// ProcessedState extracts the processed tag value from a tag set. ok is false
// when the tag is absent.
func ProcessedState(tags []Tag) (value string, ok bool) {
	for _, tag := range tags {
		if tag.Key == ProcessedTagKey {
			return tag.Value, true
		}
	}
	return "", false
}

// TagUnprocessed stamps a freshly archived object with processed=false. The
// object is new, so the tag set is written outright.
func TagUnprocessed(ctx context.Context, s Store, key string) error {
	tags := []Tag{{Key: ProcessedTagKey, Value: "false"}}
	if err := s.PutTags(ctx, key, tags); err != nil {
		return fmt.Errorf("tag %s unprocessed: %w", key, err)
	}
	return nil
}

// FlipProcessed rewrites the processed tag to the given value while
// preserving every unrelated tag on the object. The tag is added if absent.
func FlipProcessed(ctx context.Context, s Store, key string, processed bool) error {
	tags, err := s.GetTags(ctx, key)
	if err != nil {
		return fmt.Errorf("get tags for %s: %w", key, err)
	}

	value := "false"
	if processed {
		value = "true"
	}

	updated := false
	for i := range tags {
		if tags[i].Key == ProcessedTagKey {
			tags[i].Value = value
			updated = true
			break
		}
	}
	if !updated {
		tags = append(tags, Tag{Key: ProcessedTagKey, Value: value})
	}

	if err := s.PutTags(ctx, key, tags); err != nil {
		return fmt.Errorf("put tags for %s: %w", key, err)
	}
	return nil
}
