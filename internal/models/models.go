package models

import (
	"strings"
	"time"
)

// AcquisitionEvent represents one intake of an item into the household
// (purchase, receipt scan or manual add)
type AcquisitionEvent struct {
	ID         string    `json:"id,omitempty"`
	UserID     string    `json:"user_id"`
	ItemName   string    `json:"item_name"`
	Category   string    `json:"category"`
	Quantity   float64   `json:"quantity"`
	Unit       string    `json:"unit"`
	OccurredAt time.Time `json:"occurred_at"`
}

// DepletionEvent represents consumption or removal of stock
type DepletionEvent struct {
	ID               string    `json:"id,omitempty"`
	UserID           string    `json:"user_id"`
	ItemName         string    `json:"item_name"`
	QuantityConsumed float64   `json:"quantity_consumed"`
	OccurredAt       time.Time `json:"occurred_at"`
	// DaysSinceAcquisition is nil when the matching acquisition is unknown
	DaysSinceAcquisition *float64 `json:"days_since_acquisition,omitempty"`
}

// StockLevel is the current on-hand quantity of an item as recorded by
// the inventory layer
type StockLevel struct {
	Quantity float64 `json:"quantity"`
	Unit     string  `json:"unit"`
}

// ItemKey identifies a distinct item a user has acquired
type ItemKey struct {
	ItemName string `json:"item_name"`
	Category string `json:"category"`
}

// ItemHistory is the full event history of one item for one user.
// Acquisitions and Depletions are ordered ascending by OccurredAt.
type ItemHistory struct {
	ItemName     string             `json:"item_name"`
	Category     string             `json:"category"`
	Acquisitions []AcquisitionEvent `json:"acquisitions"`
	Depletions   []DepletionEvent   `json:"depletions"`
	// Stock is nil when the inventory layer has no active row for the item
	Stock *StockLevel `json:"stock,omitempty"`
}

// EventCounts summarizes how much history a user has recorded
type EventCounts struct {
	Acquisitions int `json:"purchases_logged"`
	Depletions   int `json:"consumptions_logged"`
	Predictions  int `json:"predictions_generated"`
}

// NormalizeItemName returns the case-insensitive key used for item lookups
func NormalizeItemName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
