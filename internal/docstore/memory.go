package docstore

import (
	"context"
	"sync"
	"time"
)

var _ Store = (*MemoryStore)(nil)

// MemoryStore keeps documents in process. Used for local runs and tests.
type MemoryStore struct {
	mu   sync.Mutex
	docs map[string]*Document
	subs map[string]map[*feed]struct{}

	// ability to inject a clock (for tests)
	Now func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		docs: make(map[string]*Document),
		subs: make(map[string]map[*feed]struct{}),
		Now:  time.Now,
	}
}

func (s *MemoryStore) Get(_ context.Context, collection, key string) (*Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.docs[ref(collection, key)]
	if !ok {
		return nil, ErrNotFound
	}
	return doc.clone(), nil
}

func (s *MemoryStore) Set(_ context.Context, collection, key string, value any) (*Document, error) {
	data, err := encode(value)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.put(collection, key, data), nil
}

func (s *MemoryStore) SetIfVersion(_ context.Context, collection, key string, value any, version int64) (*Document, error) {
	data, err := encode(value)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var current int64
	if doc, ok := s.docs[ref(collection, key)]; ok {
		current = doc.Version
	}
	if current != version {
		return nil, ErrVersionConflict
	}
	return s.put(collection, key, data), nil
}

func (s *MemoryStore) Update(_ context.Context, collection, key string, fields map[string]any) (*Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.docs[ref(collection, key)]
	if !ok {
		return nil, ErrNotFound
	}
	data, err := merge(doc.Data, fields)
	if err != nil {
		return nil, err
	}
	return s.put(collection, key, data), nil
}

func (s *MemoryStore) Delete(_ context.Context, collection, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r := ref(collection, key)
	if _, ok := s.docs[r]; !ok {
		return nil
	}
	delete(s.docs, r)
	s.broadcast(r, nil)
	return nil
}

func (s *MemoryStore) Subscribe(ctx context.Context, collection, key string) (<-chan Snapshot, error) {
	r := ref(collection, key)

	s.mu.Lock()
	defer s.mu.Unlock()

	var f *feed
	f = newFeed(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs[r], f)
		if len(s.subs[r]) == 0 {
			delete(s.subs, r)
		}
	})
	if s.subs[r] == nil {
		s.subs[r] = make(map[*feed]struct{})
	}
	s.subs[r][f] = struct{}{}

	f.push(Snapshot{Doc: s.docs[r].clone()})

	return f.out, nil
}

// Subscribers reports live subscriptions for a document.
func (s *MemoryStore) Subscribers(collection, key string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs[ref(collection, key)])
}

// put must be called with s.mu held.
func (s *MemoryStore) put(collection, key string, data []byte) *Document {
	r := ref(collection, key)

	var version int64
	if doc, ok := s.docs[r]; ok {
		version = doc.Version
	}
	doc := &Document{
		Collection: collection,
		Key:        key,
		Data:       data,
		Version:    version + 1,
		UpdatedAt:  s.Now().UTC(),
	}
	s.docs[r] = doc
	s.broadcast(r, doc)

	return doc.clone()
}

func (s *MemoryStore) broadcast(r string, doc *Document) {
	for f := range s.subs[r] {
		f.push(Snapshot{Doc: doc.clone()})
	}
}
