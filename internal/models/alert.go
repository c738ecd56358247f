package models

import (
	"fmt"
	"strings"
	"time"
)

// AlertType is the severity class of a derived alert.
type AlertType string

const (
	AlertCritical AlertType = "critical"
	AlertWarning  AlertType = "warning"
)

// Alert filters.
const (
	AlertFilterAll      = "all"
	AlertFilterCritical = "critical"
	AlertFilterWarning  = "warning"
)

// Alert is a notification derived from the current inventory state.
type Alert struct {
	Title   string
	Message string
	Type    AlertType
	ItemID  int64
	SKU     string
}

// DeriveAlerts builds stock and expiry alerts for the given items. Critical
// alerts are ordered before warnings, otherwise item order is preserved.
func DeriveAlerts(items []InventoryItem, now time.Time) []Alert {
	var critical, warning []Alert

	for _, item := range items {
		if item.IsLowStock() {
			a := Alert{
				Title:   "Low Stock Level",
				Message: fmt.Sprintf("%s is at %d %s, below the minimum of %d.", item.Name, item.Quantity, item.Unit, item.MinimumStock),
				Type:    AlertWarning,
				ItemID:  item.ID,
				SKU:     item.SKU,
			}
			if item.Quantity <= 0 || item.Quantity*2 < item.MinimumStock {
				a.Title = "Critical Stock Level"
				a.Type = AlertCritical
				critical = append(critical, a)
			} else {
				warning = append(warning, a)
			}
		}

		switch item.EffectiveExpiryStatus(now) {
		case ExpiryExpired:
			critical = append(critical, Alert{
				Title:   "Expired Stock",
				Message: fmt.Sprintf("%s (batch %s) expired on %s.", item.Name, batchOrUnknown(item.BatchNumber), item.ExpiryDate),
				Type:    AlertCritical,
				ItemID:  item.ID,
				SKU:     item.SKU,
			})
		case ExpiryExpiringSoon:
			warning = append(warning, Alert{
				Title:   "Expiring Soon",
				Message: fmt.Sprintf("%s (batch %s) expires on %s.", item.Name, batchOrUnknown(item.BatchNumber), item.ExpiryDate),
				Type:    AlertWarning,
				ItemID:  item.ID,
				SKU:     item.SKU,
			})
		}
	}

	return append(critical, warning...)
}

// FilterAlerts applies the alert filter and a case-insensitive search over
// the title and message.
func FilterAlerts(alerts []Alert, filter, search string) []Alert {
	search = strings.ToLower(search)

	out := make([]Alert, 0, len(alerts))
	for _, a := range alerts {
		switch filter {
		case AlertFilterCritical:
			if a.Type != AlertCritical {
				continue
			}
		case AlertFilterWarning:
			if a.Type != AlertWarning {
				continue
			}
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(a.Title), search) &&
			!strings.Contains(strings.ToLower(a.Message), search) {
			continue
		}
		out = append(out, a)
	}
	return out
}

func batchOrUnknown(batch string) string {
	if batch == "" {
		return "unknown"
	}
	return batch
}
