package pattern

import (
	"math"
	"time"

	"github.com/JonnyWalker81/larder/backend/internal/models"
)

// maxProjectionDays bounds the projection to a century out. Slower
// consumption still yields a finite, storable day count.
const maxProjectionDays = 36500

// Projection is the outcome of depletion prediction. When Known is false
// there was no usable consumption rate and every other field is zero.
type Projection struct {
	Known              bool
	DaysUntilDepletion float64
	DepletionDate      models.Date
	SuggestedQuantity  *float64
}

// Days returns the days until depletion, or nil if unknown
func (p Projection) Days() *float64 {
	if !p.Known {
		return nil
	}
	d := p.DaysUntilDepletion
	return &d
}

// Date returns the depletion date, or nil if unknown
func (p Projection) Date() *models.Date {
	if !p.Known {
		return nil
	}
	d := p.DepletionDate
	return &d
}

// PredictDepletion projects when current stock runs out at the pattern's
// consumption rate, and how much to buy when it does
func PredictDepletion(now time.Time, currentStock float64, p models.ItemPattern) Projection {
	if p.ConsumptionRatePerDay == nil || *p.ConsumptionRatePerDay <= 0 {
		return Projection{}
	}
	rate := *p.ConsumptionRatePerDay

	stock := currentStock
	if stock < 0 {
		stock = 0
	}
	days := stock / rate
	if math.IsInf(days, 0) || math.IsNaN(days) || days > maxProjectionDays {
		days = maxProjectionDays
	}

	return Projection{
		Known:              true,
		DaysUntilDepletion: days,
		DepletionDate:      models.NewDate(addDays(now, days)),
		SuggestedQuantity:  suggestQuantity(rate, p),
	}
}

// addDays advances now by a fractional number of calendar days
func addDays(now time.Time, days float64) time.Time {
	whole, frac := math.Modf(days)
	return now.AddDate(0, 0, int(whole)).Add(time.Duration(frac * hoursPerDay * float64(time.Hour)))
}

// suggestQuantity returns the typical buy size, falling back to the rate
// times the purchase cadence.
func suggestQuantity(rate float64, p models.ItemPattern) *float64 {
	if p.AvgPurchaseQuantity != nil {
		q := *p.AvgPurchaseQuantity
		return &q
	}
	if p.PurchaseIntervalDays != nil {
		q := rate * *p.PurchaseIntervalDays
		if math.IsInf(q, 0) || math.IsNaN(q) {
			return nil
		}
		return &q
	}
	return nil
}
