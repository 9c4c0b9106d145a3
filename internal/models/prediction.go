package models

import "time"

// Confidence represents how much history backs a prediction
type Confidence string

const (
	ConfidenceLow    Confidence = "low"
	ConfidenceMedium Confidence = "medium"
	ConfidenceHigh   Confidence = "high"
)

// Rank orders confidence tiers from least to most trusted
func (c Confidence) Rank() int {
	switch c {
	case ConfidenceHigh:
		return 2
	case ConfidenceMedium:
		return 1
	default:
		return 0
	}
}

// ParseConfidence converts a string to a Confidence
func ParseConfidence(s string) (Confidence, bool) {
	switch Confidence(s) {
	case ConfidenceLow, ConfidenceMedium, ConfidenceHigh:
		return Confidence(s), true
	}
	return "", false
}

// AtLeast returns every confidence tier ranked at or above c
func (c Confidence) AtLeast() []Confidence {
	all := []Confidence{ConfidenceLow, ConfidenceMedium, ConfidenceHigh}
	out := make([]Confidence, 0, len(all))
	for _, tier := range all {
		if tier.Rank() >= c.Rank() {
			out = append(out, tier)
		}
	}
	return out
}

// Urgency represents how soon an item should be bought
type Urgency string

const (
	UrgencyUrgent   Urgency = "urgent"
	UrgencyThisWeek Urgency = "this_week"
	UrgencyLater    Urgency = "later"
)

// Rank orders urgency buckets, most urgent first
func (u Urgency) Rank() int {
	switch u {
	case UrgencyUrgent:
		return 0
	case UrgencyThisWeek:
		return 1
	case UrgencyLater:
		return 2
	default:
		return 3
	}
}

// ParseUrgency converts a string to an Urgency
func ParseUrgency(s string) (Urgency, bool) {
	switch Urgency(s) {
	case UrgencyUrgent, UrgencyThisWeek, UrgencyLater:
		return Urgency(s), true
	}
	return "", false
}

// ItemPattern is the statistical summary of one item's history.
// Nil fields mean there was not enough data to derive them.
type ItemPattern struct {
	ItemName              string   `json:"item_name"`
	Category              string   `json:"category"`
	PurchaseIntervalDays  *float64 `json:"purchase_interval_days"`
	AvgPurchaseQuantity   *float64 `json:"avg_purchase_quantity"`
	ConsumptionRatePerDay *float64 `json:"consumption_rate_per_day"`
	SampleCount           int      `json:"sample_count"`
	// ExcludedEvents counts malformed events left out of the means
	ExcludedEvents int `json:"excluded_events"`
}

// Prediction is the persisted shopping prediction for one user and item
type Prediction struct {
	ID                 string     `json:"id,omitempty"`
	UserID             string     `json:"user_id"`
	ItemName           string     `json:"item_name"`
	Category           string     `json:"category"`
	CurrentStock       float64    `json:"current_stock"`
	Unit               string     `json:"unit"`
	DepletionDate      *Date      `json:"depletion_date"`
	SuggestedQuantity  *float64   `json:"suggested_quantity"`
	Confidence         Confidence `json:"confidence"`
	Urgency            Urgency    `json:"urgency"`
	DaysUntilDepletion *float64   `json:"days_until_depletion"`
	LastAnalyzed       time.Time  `json:"last_analyzed"`

	// Pattern fields persisted alongside the prediction for the detail view
	PurchaseIntervalDays  *float64 `json:"purchase_interval_days"`
	AvgPurchaseQuantity   *float64 `json:"avg_purchase_quantity"`
	ConsumptionRatePerDay *float64 `json:"consumption_rate_per_day"`
	SampleCount           int      `json:"sample_count"`
}

// PredictionFilter narrows a prediction listing. Stores apply Urgency and
// MinConfidence; Limit is applied after ordering.
type PredictionFilter struct {
	Urgency       *Urgency
	MinConfidence *Confidence
	Limit         int
}

// ItemInsight is the single-item detail view
type ItemInsight struct {
	ItemName     string            `json:"item_name"`
	Category     string            `json:"category"`
	CurrentStock float64           `json:"current_stock"`
	Unit         string            `json:"unit"`
	Pattern      InsightPattern    `json:"pattern"`
	Prediction   InsightPrediction `json:"prediction"`
	LastAnalyzed time.Time         `json:"last_analyzed"`
}

// InsightPattern holds the purchase and consumption pattern of an item
type InsightPattern struct {
	PurchaseFrequencyDays *float64 `json:"purchase_frequency_days"`
	AvgQuantityPurchased  *float64 `json:"avg_quantity_purchased"`
	ConsumptionRatePerDay *float64 `json:"consumption_rate_per_day"`
	DataPoints            int      `json:"data_points"`
}

// InsightPrediction holds the projected depletion of an item
type InsightPrediction struct {
	DepletionDate      *Date      `json:"depletion_date"`
	DaysUntilDepletion *float64   `json:"days_until_depletion"`
	SuggestedQuantity  *float64   `json:"suggested_quantity"`
	Urgency            Urgency    `json:"urgency"`
	Confidence         Confidence `json:"confidence"`
}

// ShoppingItem is one entry of the shopping list
type ShoppingItem struct {
	ItemName          string     `json:"item_name"`
	Category          string     `json:"category"`
	SuggestedQuantity *float64   `json:"suggested_quantity"`
	Unit              string     `json:"unit"`
	CurrentStock      float64    `json:"current_stock"`
	DepletionDate     *Date      `json:"predicted_depletion_date"`
	Confidence        Confidence `json:"confidence"`
	Reason            string     `json:"reason"`
}

// ShoppingList partitions predictions by urgency
type ShoppingList struct {
	Urgent      []ShoppingItem `json:"urgent"`
	ThisWeek    []ShoppingItem `json:"this_week"`
	Later       []ShoppingItem `json:"later"`
	TotalItems  int            `json:"total_items"`
	GeneratedAt time.Time      `json:"generated_at"`
}

// ItemFailure records an item whose analysis hit a store error
type ItemFailure struct {
	ItemName string `json:"item_name"`
	Error    string `json:"error"`
}

// AnalyzeResult summarizes one analysis run for a user
type AnalyzeResult struct {
	ItemsAnalyzed    int           `json:"items_analyzed"`
	PredictionsSaved int           `json:"predictions_saved"`
	ItemsSkipped     int           `json:"items_skipped"`
	FailedItems      []ItemFailure `json:"failed_items,omitempty"`
}

// BatchResult summarizes an analysis run across every user
type BatchResult struct {
	UsersProcessed    int `json:"users_processed"`
	UsersFailed       int `json:"users_failed"`
	PredictionsSaved  int `json:"predictions_saved"`
	PredictionsPruned int `json:"predictions_pruned"`
}

// PatternStatus reports how much data a user has for pattern analysis
type PatternStatus struct {
	UserID           string      `json:"user_id"`
	DataPoints       EventCounts `json:"data_points"`
	ReadyForAnalysis bool        `json:"ready_for_analysis"`
}
