package crossing

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/weiwei-tsao/railway-crossing-monitor/pkg/util"
)

// Event and gate codes written by the crossing controller.
const (
	EventTrainDetected   = "train_detected"
	EventSpeedCalculated = "speed_calculated"
	EventTrainCrossed    = "train_crossed"
	EventSystemReset     = "system_reset"
	EventGateOpened      = "gate_opened"
	EventGateClosed      = "gate_closed"
	EventGateOpening     = "gate_opening"
	EventGateClosing     = "gate_closing"

	GateOpening = "opening"
	GateClosed  = "closed"
	GateClosing = "closing"

	gateEventPrefix = "gate_"
)

// Display texts that carry meaning beyond the lookup tables.
const (
	UnknownEventText = "Unknown Event"
	ResetGateText    = "Open"
	LoadingText      = "Loading Update..."
	NoUpdateText     = "--"
)

// Labels holds the event and gate lookup tables.
type Labels struct {
	Events map[string]string `yaml:"events"`
	Gates  map[string]string `yaml:"gates"`
}

// DefaultLabels returns the built-in tables.
func DefaultLabels() Labels {
	return Labels{
		Events: map[string]string{
			EventTrainDetected:   "Train Approaching",
			EventSpeedCalculated: "Train Moving towards Gate",
			EventTrainCrossed:    "Train Crossed",
			EventSystemReset:     "No Train Nearby",
			EventGateOpened:      "Gate Opened",
			EventGateClosed:      "Gate Closed",
			EventGateOpening:     "Gate Opening",
			EventGateClosing:     "Gate Closing",
		},
		Gates: map[string]string{
			GateOpening: "Opening",
			GateClosed:  "Closed",
			GateClosing: "Closing",
		},
	}
}

// LoadLabels returns the defaults overlaid with the YAML file at path.
// An empty path yields the defaults.
func LoadLabels(path string) (Labels, error) {
	labels := DefaultLabels()
	if strings.TrimSpace(path) == "" {
		return labels, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return labels, fmt.Errorf("read labels file: %w", err)
	}
	var overrides Labels
	if err := yaml.Unmarshal(data, &overrides); err != nil {
		return labels, fmt.Errorf("parse labels file %s: %w", path, err)
	}
	for code, text := range overrides.Events {
		labels.Events[code] = text
	}
	for code, text := range overrides.Gates {
		labels.Gates[code] = text
	}
	return labels, nil
}

// Event looks up the display text of an event code.
func (l Labels) Event(code string) (string, bool) {
	text, ok := l.Events[code]
	return text, ok
}

// Gate maps a gate code to its label; unknown codes are shown capitalized.
func (l Labels) Gate(code string) string {
	if text, ok := l.Gates[code]; ok {
		return text
	}
	return util.CapitalizeFirst(code)
}
