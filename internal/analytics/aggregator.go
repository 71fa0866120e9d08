package analytics

import (
	"context"
	"fmt"
	"time"

	"shortlink/internal/types"
)

// EventReader reads click events back out of the event log.
type EventReader interface {
	ClicksByMapping(ctx context.Context, mappingIDs []int64, from, to time.Time) ([]types.ClickEvent, error)
}

// MappingLister resolves which mappings belong to an owner.
type MappingLister interface {
	MappingsByOwner(ctx context.Context, ownerRef int64) ([]types.Mapping, error)
}

// Aggregator serves owner-facing click reporting. It only ever reads; it is
// deliberately kept off the redirect hot path and may be slower than it.
type Aggregator struct {
	events   EventReader
	mappings MappingLister
}

func NewAggregator(events EventReader, mappings MappingLister) *Aggregator {
	return &Aggregator{events: events, mappings: mappings}
}

// QueryClicks returns events for the given mappings within [from, to),
// ordered by occurrence time. A reversed range fails before any store
// access; an empty window is an empty result, not an error.
func (a *Aggregator) QueryClicks(ctx context.Context, mappingIDs []int64, from, to time.Time) ([]types.ClickEvent, error) {
	if from.After(to) {
		return nil, types.ErrInvalidRange
	}

	events, err := a.events.ClicksByMapping(ctx, mappingIDs, from, to)
	if err != nil {
		return nil, fmt.Errorf("query clicks: %w", err)
	}
	if events == nil {
		events = []types.ClickEvent{}
	}
	return events, nil
}

// MappingReport pairs one mapping with its click events in a window.
type MappingReport struct {
	Mapping types.Mapping      `json:"mapping"`
	Clicks  []types.ClickEvent `json:"clicks"`
}

// OwnerReport builds per-mapping click reports for everything an owner has
// shortened. The ownerRef arrives pre-validated from the edge layer.
func (a *Aggregator) OwnerReport(ctx context.Context, ownerRef int64, from, to time.Time) ([]MappingReport, error) {
	if from.After(to) {
		return nil, types.ErrInvalidRange
	}

	mappings, err := a.mappings.MappingsByOwner(ctx, ownerRef)
	if err != nil {
		return nil, fmt.Errorf("list owner mappings: %w", err)
	}
	if len(mappings) == 0 {
		return []MappingReport{}, nil
	}

	ids := make([]int64, 0, len(mappings))
	for _, m := range mappings {
		ids = append(ids, m.ID)
	}

	events, err := a.events.ClicksByMapping(ctx, ids, from, to)
	if err != nil {
		return nil, fmt.Errorf("query clicks: %w", err)
	}

	byMapping := make(map[int64][]types.ClickEvent, len(mappings))
	for _, ev := range events {
		byMapping[ev.MappingID] = append(byMapping[ev.MappingID], ev)
	}

	reports := make([]MappingReport, 0, len(mappings))
	for _, m := range mappings {
		clicks := byMapping[m.ID]
		if clicks == nil {
			clicks = []types.ClickEvent{}
		}
		reports = append(reports, MappingReport{Mapping: m, Clicks: clicks})
	}
	return reports, nil
}
