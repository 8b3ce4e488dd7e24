package models

import "time"

// SubscriberStatus enumerates the lifecycle states a subscriber can be in.
type SubscriberStatus string

const (
	StatusSubscribed   SubscriberStatus = "subscribed"
	StatusUnconfirmed  SubscriberStatus = "unconfirmed"
	StatusUnsubscribed SubscriberStatus = "unsubscribed"
	StatusInactive     SubscriberStatus = "inactive"
	StatusBounced      SubscriberStatus = "bounced"
)

// ValidStatus reports whether the given value is a known subscriber status.
func ValidStatus(s string) bool {
	switch SubscriberStatus(s) {
	case StatusSubscribed, StatusUnconfirmed, StatusUnsubscribed, StatusInactive, StatusBounced:
		return true
	}
	return false
}

// TagRef is a tag attached to a subscriber.
type TagRef struct {
	ID   int64  `db:"id" json:"id"`
	Name string `db:"name" json:"name"`
}

// ListRef is a list (segment) a subscriber belongs to.
type ListRef struct {
	ID   int64  `db:"id" json:"id"`
	Name string `db:"name" json:"name"`
}

// CustomField describes a dynamic per-subscriber attribute.
type CustomField struct {
	ID   int64  `db:"id" json:"id"`
	Name string `db:"name" json:"name"`
	Type string `db:"type" json:"type"`
}

// SubscriberRow is the base row returned by the main page query.
type SubscriberRow struct {
	ID        int64     `db:"id" json:"id"`
	Email     string    `db:"email" json:"email"`
	FirstName *string   `db:"first_name" json:"first_name"`
	LastName  *string   `db:"last_name" json:"last_name"`
	Status    string    `db:"status" json:"status"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	NPA       *string   `db:"npa" json:"npa"`
}

// Subscriber is the denormalized item assembled by the read service.
type Subscriber struct {
	SubscriberRow
	Tags         []TagRef         `json:"tags"`
	Lists        []ListRef        `json:"lists"`
	CustomFields map[int64]string `json:"custom_fields"`
}

// SubscriberPage is the read-service result: one page plus the filtered total.
type SubscriberPage struct {
	Items []Subscriber `json:"items"`
	Total int          `json:"total"`
}

// MatchMode selects any-of vs all-of semantics for membership filters.
type MatchMode string

const (
	MatchAny MatchMode = "any"
	MatchAll MatchMode = "all"
)

// SubscriberFilter is the transient, client-held filter value object.
// NPAFieldID overrides auto-detection of the NPA custom field when set.
type SubscriberFilter struct {
	Search     string
	Status     string
	Tags       []int64
	TagsMode   MatchMode
	Lists      []int64
	ListsMode  MatchMode
	NPAFieldID *int64
	NPA        string
	NPAMin     string
	NPAMax     string
	Sort       string
	Order      string
	Page       int
	PerPage    int
}

// MetaCatalog is the /meta response: everything the console needs to render
// filter controls.
type MetaCatalog struct {
	Tags              []TagRef      `json:"tags"`
	Lists             []ListRef     `json:"lists"`
	CustomFields      []CustomField `json:"custom_fields"`
	SuggestedNPAField *int64        `json:"suggested_npa_field_id"`
}
