package firestore

import (
	"strings"

	"github.com/weiwei-tsao/railway-crossing-monitor/internal/platform/feed"
)

// ItemsCollection holds the children of a list stored below a document path.
const ItemsCollection = "items"

// scalarField wraps non-object values stored as documents.
const scalarField = "value"

// target says how a feed path maps onto Firestore.
type target struct {
	path       string
	collection bool
}

// resolve maps a feed path to a document or collection path.
//
// Lists (q.Children) live in the collection at path when it has an odd number of
// segments, else in its "items" subcollection. Other reads address the document at
// an even path; an odd path reads the whole collection as a map keyed by id.
func resolve(segs []string, q feed.Query) target {
	p := strings.Join(segs, "/")
	odd := len(segs)%2 == 1
	switch {
	case q.Children && odd:
		return target{path: p, collection: true}
	case q.Children:
		return target{path: p + "/" + ItemsCollection, collection: true}
	case odd:
		return target{path: p, collection: true}
	default:
		return target{path: p}
	}
}

// listTarget is where Push appends children of path.
func listTarget(segs []string) target {
	return resolve(segs, feed.Query{Children: true})
}

// toDocument converts a value into document fields; scalars are wrapped.
func toDocument(v any) (map[string]any, error) {
	n, err := feed.Normalize(v)
	if err != nil {
		return nil, err
	}
	if m, ok := n.(map[string]any); ok {
		return m, nil
	}
	return map[string]any{scalarField: n}, nil
}

// fromDocument reverses toDocument for single-document reads.
func fromDocument(data map[string]any) any {
	if len(data) == 1 {
		if v, ok := data[scalarField]; ok {
			if _, isMap := v.(map[string]any); !isMap {
				return v
			}
		}
	}
	return data
}
