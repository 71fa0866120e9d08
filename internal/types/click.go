package types

import (
	"time"

	"github.com/google/uuid"
)

// Click is the transient record handed to the recorder when a redirect is
// served. The IP is only used for geo enrichment and is never persisted.
type Click struct {
	MappingID  int64
	ShortCode  string
	IP         string
	OccurredAt time.Time
}

// ClickEvent is one resolved redirect as persisted in the event log. Events
// are append-only: written once by the recorder, never updated, only
// aggregated.
type ClickEvent struct {
	ID         uuid.UUID `json:"id"`
	MappingID  int64     `json:"mapping_id"`
	ShortCode  string    `json:"short_code"`
	Country    string    `json:"country"`
	City       string    `json:"city"`
	OccurredAt time.Time `json:"occurred_at"`
}
