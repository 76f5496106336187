// Package docstore is the keyed document persistence the progression core treats as its source of truth.
//
// Documents live under a collection path ("users", "users/{uid}/programs") and a key. Every write bumps the
// document version, which SetIfVersion uses for compare-and-swap. Subscribe delivers full snapshots over a
// channel; the first snapshot is the state at subscription time.
package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var (
	ErrNotFound        = errors.New("document not found")
	ErrVersionConflict = errors.New("document version conflict")
	// ErrRemoteWrite marks transient store/network failures.
	ErrRemoteWrite = errors.New("remote store failure")
)

type Store interface {
	Get(ctx context.Context, collection, key string) (*Document, error)
	// Set replaces the whole document, creating it when absent.
	Set(ctx context.Context, collection, key string, value any) (*Document, error)
	// SetIfVersion replaces the document only when its current version equals version.
	// Version 0 means the document must not exist yet.
	SetIfVersion(ctx context.Context, collection, key string, value any, version int64) (*Document, error)
	// Update merges top-level fields into an existing document.
	Update(ctx context.Context, collection, key string, fields map[string]any) (*Document, error)
	Delete(ctx context.Context, collection, key string) error
	// Subscribe streams snapshots until ctx is done. A nil Doc means the document was deleted.
	Subscribe(ctx context.Context, collection, key string) (<-chan Snapshot, error)
}

type Document struct {
	Collection string          `json:"collection"`
	Key        string          `json:"key"`
	Data       json.RawMessage `json:"data"`
	Version    int64           `json:"version"`
	UpdatedAt  time.Time       `json:"updatedAt"`
}

// Decode unmarshals the document payload into v.
func (d *Document) Decode(v any) error {
	if d == nil {
		return ErrNotFound
	}
	if err := json.Unmarshal(d.Data, v); err != nil {
		return fmt.Errorf("decode %s/%s: %w", d.Collection, d.Key, err)
	}
	return nil
}

func (d *Document) clone() *Document {
	if d == nil {
		return nil
	}
	c := *d
	c.Data = append(json.RawMessage(nil), d.Data...)
	return &c
}

type Snapshot struct {
	Doc *Document
	Err error
}

func ref(collection, key string) string {
	return collection + "/" + key
}

func encode(value any) (json.RawMessage, error) {
	switch v := value.(type) {
	case json.RawMessage:
		if !json.Valid(v) {
			return nil, fmt.Errorf("invalid json document")
		}
		return append(json.RawMessage(nil), v...), nil
	case []byte:
		if !json.Valid(v) {
			return nil, fmt.Errorf("invalid json document")
		}
		return append(json.RawMessage(nil), v...), nil
	}
	b, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	return b, nil
}

// merge overlays fields onto the top level of base.
func merge(base json.RawMessage, fields map[string]any) (json.RawMessage, error) {
	obj := map[string]json.RawMessage{}
	if len(base) > 0 {
		if err := json.Unmarshal(base, &obj); err != nil {
			return nil, fmt.Errorf("merge: document is not an object: %w", err)
		}
	}
	for k, v := range fields {
		b, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("merge field %s: %w", k, err)
		}
		obj[k] = b
	}
	return json.Marshal(obj)
}

// remoteErr leaves store sentinels alone and tags everything else as a remote failure.
func remoteErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrVersionConflict) || errors.Is(err, ErrRemoteWrite) {
		return err
	}
	return fmt.Errorf("%s: %w: %w", op, ErrRemoteWrite, err)
}
