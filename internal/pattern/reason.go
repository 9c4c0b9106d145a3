package pattern

import (
	"fmt"

	"github.com/JonnyWalker81/larder/backend/internal/models"
)

// Reason explains a shopping suggestion in words a household understands
func Reason(p models.Prediction) string {
	if p.CurrentStock <= 0 {
		return "Out of stock"
	}
	if p.DaysUntilDepletion == nil {
		return "Still learning this item's pattern"
	}

	days := int(*p.DaysUntilDepletion)
	switch {
	case days == 0:
		return "Running out today"
	case days == 1:
		return "Will run out tomorrow"
	case days <= 3:
		return fmt.Sprintf("Will run out in %d days", days)
	case p.PurchaseIntervalDays != nil:
		return fmt.Sprintf("Usually buy every %d days", int(*p.PurchaseIntervalDays))
	default:
		return "Based on your usage pattern"
	}
}
