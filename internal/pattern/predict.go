package pattern

import (
	"time"

	"github.com/JonnyWalker81/larder/backend/internal/models"
)

// defaultUnit is used when neither inventory nor history names a unit
const defaultUnit = "units"

// Analyze runs the full pipeline for one item: extract the pattern,
// classify confidence, project depletion and classify urgency. The
// returned prediction has UserID, ItemName and LastAnalyzed filled in.
func Analyze(now time.Time, userID string, h models.ItemHistory) (models.Prediction, models.ItemPattern) {
	p := ExtractPattern(h.ItemName, h.Category, h.Acquisitions, h.Depletions)

	stock, unit := currentStock(h)
	if stock < 0 {
		stock = 0
	}
	proj := PredictDepletion(now, stock, p)

	pred := models.Prediction{
		UserID:             userID,
		ItemName:           h.ItemName,
		Category:           h.Category,
		CurrentStock:       stock,
		Unit:               unit,
		DepletionDate:      proj.Date(),
		SuggestedQuantity:  proj.SuggestedQuantity,
		Confidence:         ClassifyConfidence(p.SampleCount),
		Urgency:            ClassifyUrgency(proj.Days()),
		DaysUntilDepletion: proj.Days(),
		LastAnalyzed:       now,

		PurchaseIntervalDays:  p.PurchaseIntervalDays,
		AvgPurchaseQuantity:   p.AvgPurchaseQuantity,
		ConsumptionRatePerDay: p.ConsumptionRatePerDay,
		SampleCount:           p.SampleCount,
	}

	return pred, p
}

// currentStock prefers the inventory row and falls back to the balance
// implied by the event history
func currentStock(h models.ItemHistory) (float64, string) {
	if h.Stock != nil {
		unit := h.Stock.Unit
		if unit == "" {
			unit = lastUnit(h.Acquisitions)
		}
		return h.Stock.Quantity, unit
	}
	return OnHandBalance(h.Acquisitions, h.Depletions), lastUnit(h.Acquisitions)
}

func lastUnit(acqs []models.AcquisitionEvent) string {
	for i := len(acqs) - 1; i >= 0; i-- {
		if acqs[i].Unit != "" {
			return acqs[i].Unit
		}
	}
	return defaultUnit
}
