package crossing

import "strings"

var (
	approachMarkers = []string{"approaching", "moving"}
	clearedMarkers  = []string{"crossed", "no train", "reset"}
)

// IsApproaching reports whether a train status text describes an approaching train.
func IsApproaching(status string) bool {
	return containsAny(status, approachMarkers)
}

// IsCleared reports whether a train status text ends an approach episode.
func IsCleared(status string) bool {
	return containsAny(status, clearedMarkers)
}

func containsAny(s string, markers []string) bool {
	s = strings.ToLower(s)
	for _, m := range markers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}
