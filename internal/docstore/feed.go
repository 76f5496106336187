package docstore

import (
	"context"
	"errors"
	"sync"
)

// feed hands snapshots to one subscriber. Pushes never block: if the subscriber is slow, only the
// latest snapshot is kept. A snapshot carrying an error is delivered last and closes the feed.
type feed struct {
	out    chan Snapshot
	notify chan struct{}

	mu     sync.Mutex
	latest *Snapshot
}

func newFeed(ctx context.Context, onClose func()) *feed {
	f := &feed{
		out:    make(chan Snapshot),
		notify: make(chan struct{}, 1),
	}
	go f.run(ctx, onClose)
	return f
}

func (f *feed) push(s Snapshot) {
	f.mu.Lock()
	f.latest = &s
	f.mu.Unlock()

	select {
	case f.notify <- struct{}{}:
	default:
	}
}

func (f *feed) run(ctx context.Context, onClose func()) {
	defer close(f.out)
	if onClose != nil {
		defer onClose()
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-f.notify:
		}

		f.mu.Lock()
		s := f.latest
		f.latest = nil
		f.mu.Unlock()
		if s == nil {
			continue
		}

		select {
		case f.out <- *s:
		case <-ctx.Done():
			return
		}
		if s.Err != nil {
			return
		}
	}
}

// pushCurrent reads the document from s and pushes it, or a deletion when it is gone.
func (f *feed) pushCurrent(ctx context.Context, s Store, collection, key string) error {
	doc, err := s.Get(ctx, collection, key)
	if errors.Is(err, ErrNotFound) {
		f.push(Snapshot{})
		return nil
	}
	if err != nil {
		return err
	}
	f.push(Snapshot{Doc: doc})
	return nil
}
