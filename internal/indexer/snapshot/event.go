package snapshot

import "time"

// ReadyEventType tags ReadyEvent messages on the index-ready topic.
const ReadyEventType = "index-ready"

// ReadyEvent is published on the index-ready topic after a snapshot has
// been saved.
type ReadyEvent struct {
	Location string    `json:"location"`
	Complete bool      `json:"complete"`
	Entities int       `json:"entities"`
	Docs     int       `json:"docs"`
	BuiltAt  time.Time `json:"built_at"`
}
