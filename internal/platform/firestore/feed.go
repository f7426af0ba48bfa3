package firestore

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/weiwei-tsao/railway-crossing-monitor/internal/platform/feed"
)

// Feed implements feed.Feed on Firestore snapshot listeners.
type Feed struct {
	client  *firestore.Client
	backoff feed.Backoff
}

var _ feed.Feed = (*Feed)(nil)

func NewFeed(client *firestore.Client) *Feed {
	return &Feed{client: client, backoff: feed.Backoff{Base: 500 * time.Millisecond, Max: 30 * time.Second}}
}

// Terminal reports whether a listener error ends the watch instead of being retried.
func Terminal(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	switch status.Code(err) {
	case codes.Canceled, codes.InvalidArgument:
		return true
	default:
		return false
	}
}

func (f *Feed) query(t target, q feed.Query) firestore.Query {
	col := f.client.Collection(t.path)
	if q.LimitToLast > 0 {
		return col.OrderBy(firestore.DocumentID, firestore.Desc).Limit(q.LimitToLast)
	}
	return col.Query
}

// Subscribe attaches a snapshot listener. Listener errors are delivered, then the
// listener is reattached with backoff.
func (f *Feed) Subscribe(ctx context.Context, path string, q feed.Query) (*feed.Subscription, error) {
	segs := feed.SplitPath(path)
	if len(segs) == 0 {
		return nil, feed.ErrEmptyPath
	}
	t := resolve(segs, q)
	ctx, cancel := context.WithCancel(ctx)
	out := make(chan feed.Event, 1)
	go f.listen(ctx, path, t, q, out)
	return feed.NewSubscription(out, cancel), nil
}

func (f *Feed) listen(ctx context.Context, path string, t target, q feed.Query, out chan<- feed.Event) {
	defer close(out)
	backoff := f.backoff
	for {
		err := f.listenOnce(ctx, path, t, q, out, &backoff)
		if ctx.Err() != nil {
			return
		}
		if Terminal(err) {
			log.Printf("firestore listen %s: %v (giving up)", path, err)
			return
		}
		wait := backoff.Next()
		log.Printf("firestore listen %s: %v (retry in %s)", path, err, wait)
		select {
		case out <- feed.Event{Err: fmt.Errorf("listen %s: %w", path, err)}:
		case <-ctx.Done():
			return
		}
		if !feed.Sleep(ctx, wait) {
			return
		}
	}
}

func (f *Feed) listenOnce(ctx context.Context, path string, t target, q feed.Query, out chan<- feed.Event, backoff *feed.Backoff) error {
	send := func(v any) bool {
		n, err := feed.Normalize(v)
		if err != nil {
			log.Printf("firestore listen %s: %v", path, err)
			return true
		}
		backoff.Reset()
		select {
		case out <- feed.Event{Snapshot: feed.Snapshot{Path: path, Exists: n != nil, Value: n}}:
			return true
		case <-ctx.Done():
			return false
		}
	}

	if !t.collection {
		it := f.client.Doc(t.path).Snapshots(ctx)
		defer it.Stop()
		for {
			snap, err := it.Next()
			if err != nil {
				return err
			}
			var v any
			if snap.Exists() {
				v = fromDocument(snap.Data())
			}
			if !send(v) {
				return ctx.Err()
			}
		}
	}

	it := f.query(t, q).Snapshots(ctx)
	defer it.Stop()
	for {
		qs, err := it.Next()
		if err != nil {
			return err
		}
		docs, err := qs.Documents.GetAll()
		if err != nil {
			return err
		}
		if !send(collect(docs)) {
			return ctx.Err()
		}
	}
}

func collect(docs []*firestore.DocumentSnapshot) any {
	if len(docs) == 0 {
		return nil
	}
	m := make(map[string]any, len(docs))
	for _, d := range docs {
		m[d.Ref.ID] = fromDocument(d.Data())
	}
	return m
}

// Get reads path once.
func (f *Feed) Get(ctx context.Context, path string, q feed.Query) (feed.Snapshot, error) {
	segs := feed.SplitPath(path)
	if len(segs) == 0 {
		return feed.Snapshot{}, feed.ErrEmptyPath
	}
	t := resolve(segs, q)
	var v any
	if t.collection {
		var docs []*firestore.DocumentSnapshot
		it := f.query(t, q).Documents(ctx)
		defer it.Stop()
		for {
			d, err := it.Next()
			if errors.Is(err, iterator.Done) {
				break
			}
			if err != nil {
				return feed.Snapshot{}, fmt.Errorf("get %s: %w", path, err)
			}
			docs = append(docs, d)
		}
		v = collect(docs)
	} else {
		snap, err := f.client.Doc(t.path).Get(ctx)
		switch {
		case status.Code(err) == codes.NotFound:
		case err != nil:
			return feed.Snapshot{}, fmt.Errorf("get %s: %w", path, err)
		default:
			v = fromDocument(snap.Data())
		}
	}
	n, err := feed.Normalize(v)
	if err != nil {
		return feed.Snapshot{}, err
	}
	return feed.Snapshot{Path: path, Exists: n != nil, Value: n}, nil
}

// Set replaces the document at path. Collection paths only accept nil (delete).
func (f *Feed) Set(ctx context.Context, path string, value any) error {
	if value == nil {
		return f.Delete(ctx, path)
	}
	segs := feed.SplitPath(path)
	if len(segs) == 0 {
		return feed.ErrEmptyPath
	}
	t := resolve(segs, feed.Query{})
	if t.collection {
		return fmt.Errorf("set %s: %w", path, feed.ErrUnsupported)
	}
	data, err := toDocument(value)
	if err != nil {
		return err
	}
	if _, err := f.client.Doc(t.path).Set(ctx, data); err != nil {
		return fmt.Errorf("set %s: %w", path, err)
	}
	return nil
}

// Push creates a document with a time-ordered UUIDv7 id so key order is insertion order.
func (f *Feed) Push(ctx context.Context, path string, value any) (string, error) {
	segs := feed.SplitPath(path)
	if len(segs) == 0 {
		return "", feed.ErrEmptyPath
	}
	data, err := toDocument(value)
	if err != nil {
		return "", err
	}
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generate push key: %w", err)
	}
	t := listTarget(segs)
	if _, err := f.client.Collection(t.path).Doc(id.String()).Create(ctx, data); err != nil {
		return "", fmt.Errorf("push %s: %w", path, err)
	}
	return id.String(), nil
}

// Delete removes the document at path, or every document of a collection path.
func (f *Feed) Delete(ctx context.Context, path string) error {
	segs := feed.SplitPath(path)
	if len(segs) == 0 {
		return feed.ErrEmptyPath
	}
	t := resolve(segs, feed.Query{})
	if !t.collection {
		if _, err := f.client.Doc(t.path).Delete(ctx); err != nil {
			return fmt.Errorf("delete %s: %w", path, err)
		}
		return f.deleteCollection(ctx, path, t.path+"/"+ItemsCollection)
	}
	return f.deleteCollection(ctx, path, t.path)
}

func (f *Feed) deleteCollection(ctx context.Context, path, col string) error {
	refs := f.client.Collection(col).DocumentRefs(ctx)
	bw := f.client.BulkWriter(ctx)
	n := 0
	for {
		ref, err := refs.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			bw.End()
			return fmt.Errorf("delete %s: %w", path, err)
		}
		if _, err := bw.Delete(ref); err != nil {
			bw.End()
			return fmt.Errorf("delete %s: %w", path, err)
		}
		n++
	}
	bw.End()
	if n > 0 {
		log.Printf("firestore delete %s: removed %d documents", path, n)
	}
	return nil
}
