package rtdb

import (
	"context"
	"fmt"
	"log"
	"reflect"
	"strings"
	"time"

	"firebase.google.com/go/db"

	"github.com/weiwei-tsao/railway-crossing-monitor/internal/platform/feed"
)

// DefaultPollInterval is used when Feed is built with a non-positive interval.
const DefaultPollInterval = 2 * time.Second

// Feed serves subscriptions by polling. Plain paths use ETag conditional reads so an
// unchanged node costs a 304; LimitToLast queries are compared client side.
type Feed struct {
	client   *db.Client
	interval time.Duration
	backoff  feed.Backoff
}

var _ feed.Feed = (*Feed)(nil)

// NewFeed wraps a Realtime Database client.
func NewFeed(client *db.Client, interval time.Duration) *Feed {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Feed{
		client:   client,
		interval: interval,
		backoff:  feed.Backoff{Base: interval, Max: 30 * time.Second},
	}
}

func (f *Feed) ref(path string) (*db.Ref, string, error) {
	segs := feed.SplitPath(path)
	if len(segs) == 0 {
		return nil, "", feed.ErrEmptyPath
	}
	p := strings.Join(segs, "/")
	return f.client.NewRef(p), p, nil
}

// fetcher performs one read. etag is the last seen tag, "" for the first read.
type fetcher func(ctx context.Context, etag string) (changed bool, newTag string, value any, err error)

func (f *Feed) fetcherFor(ref *db.Ref, q feed.Query) fetcher {
	if q.Children && q.LimitToLast > 0 {
		return func(ctx context.Context, _ string) (bool, string, any, error) {
			var v any
			if err := ref.OrderByKey().LimitToLast(q.LimitToLast).Get(ctx, &v); err != nil {
				return false, "", nil, err
			}
			return true, "", v, nil
		}
	}
	return func(ctx context.Context, etag string) (bool, string, any, error) {
		var v any
		if etag == "" {
			tag, err := ref.GetWithETag(ctx, &v)
			return true, tag, v, err
		}
		changed, tag, err := ref.GetIfChanged(ctx, etag, &v)
		return changed, tag, v, err
	}
}

// Subscribe polls path every interval and delivers a snapshot whenever it changes.
func (f *Feed) Subscribe(ctx context.Context, path string, q feed.Query) (*feed.Subscription, error) {
	ref, p, err := f.ref(path)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithCancel(ctx)
	out := make(chan feed.Event, 1)
	go watch(ctx, p, f.fetcherFor(ref, q), f.interval, f.backoff, out)
	return feed.NewSubscription(out, cancel), nil
}

// watch runs the poll loop for one subscription. Errors are delivered and retried
// with backoff; the watch only ends with ctx.
func watch(ctx context.Context, path string, fetch fetcher, interval time.Duration, backoff feed.Backoff, out chan<- feed.Event) {
	defer close(out)

	var (
		etag      string
		last      any
		delivered bool
	)
	for {
		changed, tag, v, err := fetch(ctx, etag)
		wait := interval
		switch {
		case ctx.Err() != nil:
			return
		case err != nil:
			wait = backoff.Next()
			log.Printf("rtdb watch %s: %v (retry in %s)", path, err, wait)
			if !deliver(ctx, out, feed.Event{Err: fmt.Errorf("watch %s: %w", path, err)}) {
				return
			}
		default:
			backoff.Reset()
			if tag != "" {
				etag = tag
			}
			if changed && (!delivered || !reflect.DeepEqual(last, v)) {
				snap, nerr := snapshot(path, v)
				if nerr != nil {
					log.Printf("rtdb watch %s: %v", path, nerr)
				} else {
					last, delivered = v, true
					if !deliver(ctx, out, feed.Event{Snapshot: snap}) {
						return
					}
				}
			}
		}
		if !feed.Sleep(ctx, wait) {
			return
		}
	}
}

func deliver(ctx context.Context, out chan<- feed.Event, ev feed.Event) bool {
	select {
	case out <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

func snapshot(path string, v any) (feed.Snapshot, error) {
	n, err := feed.Normalize(v)
	if err != nil {
		return feed.Snapshot{}, err
	}
	return feed.Snapshot{Path: path, Exists: n != nil, Value: n}, nil
}

// Get reads path once.
func (f *Feed) Get(ctx context.Context, path string, q feed.Query) (feed.Snapshot, error) {
	ref, p, err := f.ref(path)
	if err != nil {
		return feed.Snapshot{}, err
	}
	_, _, v, err := f.fetcherFor(ref, q)(ctx, "")
	if err != nil {
		return feed.Snapshot{}, fmt.Errorf("get %s: %w", p, err)
	}
	return snapshot(p, v)
}

// Set replaces the value at path. A nil value deletes it.
func (f *Feed) Set(ctx context.Context, path string, value any) error {
	if value == nil {
		return f.Delete(ctx, path)
	}
	ref, p, err := f.ref(path)
	if err != nil {
		return err
	}
	if err := ref.Set(ctx, value); err != nil {
		return fmt.Errorf("set %s: %w", p, err)
	}
	return nil
}

// Push appends value under a server-generated, chronologically ordered key.
func (f *Feed) Push(ctx context.Context, path string, value any) (string, error) {
	ref, p, err := f.ref(path)
	if err != nil {
		return "", err
	}
	child, err := ref.Push(ctx, value)
	if err != nil {
		return "", fmt.Errorf("push %s: %w", p, err)
	}
	return child.Key, nil
}

// Delete removes the subtree at path.
func (f *Feed) Delete(ctx context.Context, path string) error {
	ref, p, err := f.ref(path)
	if err != nil {
		return err
	}
	if err := ref.Delete(ctx); err != nil {
		return fmt.Errorf("delete %s: %w", p, err)
	}
	return nil
}
