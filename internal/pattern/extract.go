package pattern

import (
	"math"
	"sort"
	"time"

	"github.com/JonnyWalker81/larder/backend/internal/models"
)

// stockTolerance absorbs float rounding when comparing consumption to
// the running on-hand balance
const stockTolerance = 1e-9

const hoursPerDay = 24.0

// screened holds the events that survived validation, in time order
type screened struct {
	acquisitions []models.AcquisitionEvent
	depletions   []models.DepletionEvent
	excluded     int
	balance      float64
}

// ExtractPattern summarizes one item's history.
//
// Malformed events (non-positive quantities, missing timestamps, depletions
// before the first acquisition or exceeding the on-hand balance) are left out
// of every mean and counted in ExcludedEvents. Depletions with an unknown
// DaysSinceAcquisition still count toward the balance but not the rate.
func ExtractPattern(itemName, category string, acquisitions []models.AcquisitionEvent, depletions []models.DepletionEvent) models.ItemPattern {
	s := screen(acquisitions, depletions)

	p := models.ItemPattern{
		ItemName:       itemName,
		Category:       category,
		SampleCount:    len(s.acquisitions),
		ExcludedEvents: s.excluded,
	}

	if p.SampleCount == 0 {
		return p
	}

	p.PurchaseIntervalDays = meanPurchaseInterval(s.acquisitions)
	p.AvgPurchaseQuantity = meanPurchaseQuantity(s.acquisitions)

	rate, rejected := meanConsumptionRate(s.depletions)
	p.ConsumptionRatePerDay = rate
	p.ExcludedEvents += rejected

	return p
}

// OnHandBalance returns acquired minus consumed quantity over the valid
// events, floored at zero. It stands in for current stock when the
// inventory layer has no row for the item.
func OnHandBalance(acquisitions []models.AcquisitionEvent, depletions []models.DepletionEvent) float64 {
	return screen(acquisitions, depletions).balance
}

func screen(acquisitions []models.AcquisitionEvent, depletions []models.DepletionEvent) screened {
	var s screened

	acqs := make([]models.AcquisitionEvent, 0, len(acquisitions))
	for _, a := range acquisitions {
		if !validQuantity(a.Quantity) || a.OccurredAt.IsZero() {
			s.excluded++
			continue
		}
		acqs = append(acqs, a)
	}
	sort.SliceStable(acqs, func(i, j int) bool {
		return acqs[i].OccurredAt.Before(acqs[j].OccurredAt)
	})

	deps := make([]models.DepletionEvent, 0, len(depletions))
	for _, d := range depletions {
		if !validQuantity(d.QuantityConsumed) || d.OccurredAt.IsZero() {
			s.excluded++
			continue
		}
		deps = append(deps, d)
	}
	sort.SliceStable(deps, func(i, j int) bool {
		return deps[i].OccurredAt.Before(deps[j].OccurredAt)
	})

	// Walk both series in time order, keeping a running balance. An
	// acquisition at the same instant as a depletion is applied first.
	var acquired, consumed float64
	next := 0
	for _, d := range deps {
		for next < len(acqs) && !acqs[next].OccurredAt.After(d.OccurredAt) {
			acquired += acqs[next].Quantity
			next++
		}

		if next == 0 {
			// consumed before anything was ever acquired
			s.excluded++
			continue
		}

		onHand := acquired - consumed
		if d.QuantityConsumed > onHand+stockTolerance {
			s.excluded++
			continue
		}

		consumed += d.QuantityConsumed
		s.depletions = append(s.depletions, d)
	}
	for ; next < len(acqs); next++ {
		acquired += acqs[next].Quantity
	}

	s.acquisitions = acqs
	s.balance = math.Max(0, acquired-consumed)
	return s
}

// meanPurchaseInterval averages the gaps between consecutive acquisitions.
// Gaps of zero (duplicate entries at the same instant) are ignored.
func meanPurchaseInterval(acqs []models.AcquisitionEvent) *float64 {
	if len(acqs) < 2 {
		return nil
	}

	gaps := make([]float64, 0, len(acqs)-1)
	for i := 1; i < len(acqs); i++ {
		days := daysBetween(acqs[i-1].OccurredAt, acqs[i].OccurredAt)
		if days > 0 {
			gaps = append(gaps, days)
		}
	}

	return mean(gaps)
}

func meanPurchaseQuantity(acqs []models.AcquisitionEvent) *float64 {
	quantities := make([]float64, len(acqs))
	for i, a := range acqs {
		quantities[i] = a.Quantity
	}
	return mean(quantities)
}

// meanConsumptionRate averages quantity/day over depletions with a known,
// positive DaysSinceAcquisition. It also reports how many depletions were
// rejected for a non-positive or non-finite day count.
func meanConsumptionRate(deps []models.DepletionEvent) (*float64, int) {
	rates := make([]float64, 0, len(deps))
	rejected := 0

	for _, d := range deps {
		if d.DaysSinceAcquisition == nil {
			continue
		}
		days := *d.DaysSinceAcquisition
		if days <= 0 || math.IsNaN(days) || math.IsInf(days, 0) {
			rejected++
			continue
		}
		rates = append(rates, d.QuantityConsumed/days)
	}

	return mean(rates), rejected
}

func daysBetween(from, to time.Time) float64 {
	return to.Sub(from).Hours() / hoursPerDay
}

func validQuantity(q float64) bool {
	return q > 0 && !math.IsNaN(q) && !math.IsInf(q, 0)
}

// mean returns nil for an empty slice or when the sum overflows
func mean(values []float64) *float64 {
	if len(values) == 0 {
		return nil
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	m := sum / float64(len(values))
	if math.IsInf(m, 0) || math.IsNaN(m) {
		return nil
	}
	return &m
}
