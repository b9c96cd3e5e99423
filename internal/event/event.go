package event

import (
	"encoding/json"
	"time"
)

// Event is one accepted webhook notification.
// Payload is the sender's JSON body, kept verbatim.
type Event struct {
	ReceivedAt time.Time       `json:"receivedAt"`
	Payload    json.RawMessage `json:"payload"`
}

// Stats summarises the retained window.
// Oldest and Newest are nil when Count is 0.
type Stats struct {
	Count    int        `json:"count"`
	Capacity int        `json:"capacity"`
	Oldest   *time.Time `json:"oldestTimestamp"`
	Newest   *time.Time `json:"newestTimestamp"`
}
