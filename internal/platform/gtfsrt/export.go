// Package gtfsrt exports the combined alert feed as GTFS-Realtime service alerts so
// journey planners can show crossing problems.
package gtfsrt

import (
	"strings"
	"time"

	"github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"google.golang.org/protobuf/encoding/prototext"
	"google.golang.org/protobuf/proto"

	"github.com/weiwei-tsao/railway-crossing-monitor/pkg/model"
)

// Language tags every translated string.
const Language = "en"

// Feed builds a full-dataset FeedMessage. Read alerts are omitted; every entity
// informs stopID.
func Feed(in []model.Alert, now time.Time, stopID string) *gtfs.FeedMessage {
	g := &gtfs.FeedMessage{
		Header: &gtfs.FeedHeader{
			GtfsRealtimeVersion: ptr("2.0"),
			Incrementality:      gtfs.FeedHeader_FULL_DATASET.Enum(),
			Timestamp:           ptr(uint64(now.Unix())),
		},
	}
	g.Entity = make([]*gtfs.FeedEntity, 0, len(in))
	for _, a := range in {
		if a.IsRead {
			continue
		}
		g.Entity = append(g.Entity, entity(a, stopID))
	}
	return g
}

func entity(a model.Alert, stopID string) *gtfs.FeedEntity {
	id := a.ID
	if a.Source != "" {
		id = a.Source + ":" + a.ID
	}
	alert := &gtfs.Alert{
		Cause:  cause(a.Type).Enum(),
		Effect: effect(a.Priority).Enum(),
	}
	if a.Title != "" {
		alert.HeaderText = translatedString(a.Title)
	}
	if a.Message != "" {
		alert.DescriptionText = translatedString(a.Message)
	}
	if !a.At.IsZero() {
		alert.ActivePeriod = []*gtfs.TimeRange{{Start: ptr(uint64(a.At.Unix()))}}
	}
	if stopID != "" {
		alert.InformedEntity = []*gtfs.EntitySelector{{StopId: ptr(stopID)}}
	}
	return &gtfs.FeedEntity{Id: ptr(id), Alert: alert}
}

func cause(alertType string) gtfs.Alert_Cause {
	switch strings.ToLower(alertType) {
	case "gate event":
		return gtfs.Alert_TECHNICAL_PROBLEM
	case "complaint":
		return gtfs.Alert_OTHER_CAUSE
	default:
		return gtfs.Alert_UNKNOWN_CAUSE
	}
}

func effect(p model.Priority) gtfs.Alert_Effect {
	switch p {
	case model.PriorityCritical, model.PriorityHigh:
		return gtfs.Alert_SIGNIFICANT_DELAYS
	default:
		return gtfs.Alert_OTHER_EFFECT
	}
}

// Marshal encodes the feed in the binary protobuf wire format.
func Marshal(in []model.Alert, now time.Time, stopID string) ([]byte, error) {
	return proto.Marshal(Feed(in, now, stopID))
}

// MarshalText encodes the feed as human readable protobuf text.
func MarshalText(in []model.Alert, now time.Time, stopID string) ([]byte, error) {
	return prototext.MarshalOptions{Multiline: true}.Marshal(Feed(in, now, stopID))
}

func ptr[T any](thing T) *T {
	return &thing
}

func translatedString(s string) *gtfs.TranslatedString {
	return &gtfs.TranslatedString{
		Translation: []*gtfs.TranslatedString_Translation{
			{
				Text:     ptr(s),
				Language: ptr(Language),
			},
		},
	}
}
