package pipeline

import "strings"

// StateClass is the category a raw device state label falls into.
type StateClass int

const (
	// ClassUnclassified covers every label outside the active and idle
	// allow-lists ("returning_home", "error", ...). It never triggers a
	// transition in either direction.
	ClassUnclassified StateClass = iota
	ClassActive
	ClassIdle
)

func (c StateClass) String() string {
	switch c {
	case ClassActive:
		return "active"
	case ClassIdle:
		return "idle"
	default:
		return "unclassified"
	}
}

var activeStates = map[string]struct{}{
	"cleaning":         {},
	"spot_cleaning":    {},
	"segment_cleaning": {},
	"zone_cleaning":    {},
	"zoned_cleaning":   {},
}

var idleStates = map[string]struct{}{
	"idle":              {},
	"charger":           {},
	"charging":          {},
	"charging_complete": {},
	"paused":            {},
}

// Classify maps a raw state label to its class. Matching is case-insensitive.
func Classify(state string) StateClass {
	label := strings.ToLower(strings.TrimSpace(state))
	if _, ok := activeStates[label]; ok {
		return ClassActive
	}
	if _, ok := idleStates[label]; ok {
		return ClassIdle
	}
	return ClassUnclassified
}
