package types

import "time"

// Mapping is one short code bound to a target URL. ShortCode and TargetURL
// are immutable after creation; ClickCount is only ever touched through the
// store's atomic increment.
type Mapping struct {
	ID         int64     `json:"id" db:"id"`
	ShortCode  string    `json:"short_code" db:"short_code"`
	TargetURL  string    `json:"target_url" db:"target_url"`
	ClickCount int64     `json:"click_count" db:"click_count"`
	OwnerRef   int64     `json:"owner_ref" db:"owner_ref"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

// MappingCache is the value cached in Redis for the redirect path. It carries
// just enough to serve the redirect and enqueue the click.
type MappingCache struct {
	ID        int64  `json:"id"`
	TargetURL string `json:"target_url"`
}
