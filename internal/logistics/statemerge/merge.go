// Package statemerge holds the latest-timestamp-wins rule applied to status
// reports from the logistics center.
package statemerge

import "time"

// Current is an entity's visible status. A nil At means no status has been
// accepted yet.
type Current struct {
	Status *string
	At     *time.Time
}

// Update is a reported status transition.
type Update struct {
	Status string
	At     time.Time
}

// Decision says what to persist for an update.
type Decision struct {
	// RecordEvent is false only when the same (status, time) pair was
	// already recorded for the entity.
	RecordEvent bool
	// Advance is true when the update becomes the current status.
	Advance bool
}

// Decide applies the merge rule. alreadyRecorded reports whether an event
// with the same status and timestamp exists for the entity.
func Decide(current Current, update Update, alreadyRecorded bool) Decision {
	return Decision{
		RecordEvent: !alreadyRecorded,
		Advance:     current.At == nil || update.At.After(*current.At),
	}
}

// Apply returns the current status after decision.
func Apply(current Current, update Update, decision Decision) Current {
	if !decision.Advance {
		return current
	}
	status := update.Status
	at := update.At
	return Current{Status: &status, At: &at}
}
