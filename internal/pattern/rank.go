package pattern

import (
	"sort"

	"github.com/JonnyWalker81/larder/backend/internal/models"
)

// Less reports whether a sorts before b in list views: by urgency rank,
// then by ascending days until depletion with unknowns last, then by name
func Less(a, b models.Prediction) bool {
	if ra, rb := a.Urgency.Rank(), b.Urgency.Rank(); ra != rb {
		return ra < rb
	}

	switch {
	case a.DaysUntilDepletion != nil && b.DaysUntilDepletion != nil:
		if *a.DaysUntilDepletion != *b.DaysUntilDepletion {
			return *a.DaysUntilDepletion < *b.DaysUntilDepletion
		}
	case a.DaysUntilDepletion != nil:
		return true
	case b.DaysUntilDepletion != nil:
		return false
	}

	return a.ItemName < b.ItemName
}

// SortPredictions orders predictions in place for list views
func SortPredictions(preds []models.Prediction) {
	sort.SliceStable(preds, func(i, j int) bool {
		return Less(preds[i], preds[j])
	})
}
