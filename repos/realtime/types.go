package realtime

import "time"

// document wraps a path's value for Firestore, which only stores maps.
// Data holds the JSON-encoded document so values round-trip byte-exact,
// including a JSON null for "no active match".
type document struct {
	Data      string    `firestore:"Data"`
	UpdatedAt time.Time `firestore:"UpdatedAt"`
}
