package pattern

import "github.com/JonnyWalker81/larder/backend/internal/models"

const (
	// MediumConfidenceSamples is the acquisition count at which a pattern
	// is trusted enough to be shown as medium confidence
	MediumConfidenceSamples = 3

	// HighConfidenceSamples is the acquisition count for high confidence
	HighConfidenceSamples = 5

	// UrgentWithinDays is the inclusive upper bound of the urgent bucket
	UrgentWithinDays = 1.0

	// ThisWeekWithinDays is the inclusive upper bound of the this_week bucket
	ThisWeekWithinDays = 7.0
)

// ClassifyConfidence maps a sample count to a confidence tier
func ClassifyConfidence(sampleCount int) models.Confidence {
	switch {
	case sampleCount >= HighConfidenceSamples:
		return models.ConfidenceHigh
	case sampleCount >= MediumConfidenceSamples:
		return models.ConfidenceMedium
	default:
		return models.ConfidenceLow
	}
}

// ClassifyUrgency maps days until depletion to an urgency bucket.
// An unknown depletion is urgent so that it surfaces instead of hiding.
func ClassifyUrgency(daysUntilDepletion *float64) models.Urgency {
	if daysUntilDepletion == nil || *daysUntilDepletion <= UrgentWithinDays {
		return models.UrgencyUrgent
	}
	if *daysUntilDepletion <= ThisWeekWithinDays {
		return models.UrgencyThisWeek
	}
	return models.UrgencyLater
}
