package models

import (
	"time"
)

// Category groups inventory items.
const (
	CategoryMedicine   = "medicine"
	CategoryEquipment  = "equipment"
	CategoryConsumable = "consumable"
)

// Expiry status values reported by the API for each item.
const (
	ExpiryValid        = "valid"
	ExpiryExpiringSoon = "expiring_soon"
	ExpiryExpired      = "expired"
)

// ExpiryWindow is how far ahead an expiry date counts as "expiring soon".
const ExpiryWindow = 30 * 24 * time.Hour

// DateLayout is the wire format for calendar dates.
const DateLayout = "2006-01-02"

// Stock transaction types.
const (
	TransactionRestock  = "restock"
	TransactionConsume  = "consume"
	TransactionAdjust   = "adjust"
	TransactionTransfer = "transfer"
	TransactionExpired  = "expired"
)

// Supplier provides inventory items and fulfils purchase orders.
type Supplier struct {
	ID            int64  `json:"id"`
	Name          string `json:"name"`
	ContactPerson string `json:"contact_person,omitempty"`
	Email         string `json:"email,omitempty"`
	Phone         string `json:"phone,omitempty"`
	Address       string `json:"address,omitempty"`
	Rating        int    `json:"rating"`
}

// InventoryItem is a stocked item (medicine, equipment or consumable).
type InventoryItem struct {
	ID            int64  `json:"id"`
	Name          string `json:"name"`
	Description   string `json:"description,omitempty"`
	SKU           string `json:"sku"`
	Category      string `json:"category"`
	Quantity      int    `json:"quantity"`
	Unit          string `json:"unit"`
	MinimumStock  int    `json:"minimum_stock"`
	MaximumStock  *int   `json:"maximum_stock,omitempty"`
	ExpiryDate    string `json:"expiry_date,omitempty"`
	BatchNumber   string `json:"batch_number,omitempty"`
	Supplier      *int64 `json:"supplier,omitempty"`
	SupplierName  string `json:"supplier_name,omitempty"`
	Location      string `json:"location,omitempty"`
	UnitPrice     Money  `json:"unit_price"`
	LastRestocked string `json:"last_restocked,omitempty"`
	ExpiryStatus  string `json:"expiry_status,omitempty"`
}

// IsLowStock reports whether the quantity has dropped below the minimum.
func (i *InventoryItem) IsLowStock() bool {
	return i.Quantity < i.MinimumStock
}

// ComputeExpiryStatus derives the expiry status from the expiry date.
// Items without a parseable expiry date are always valid.
func (i *InventoryItem) ComputeExpiryStatus(now time.Time) string {
	if i.ExpiryDate == "" {
		return ExpiryValid
	}

	expiry, err := time.Parse(DateLayout, i.ExpiryDate)
	if err != nil {
		return ExpiryValid
	}

	today := truncateDay(now)
	switch {
	case expiry.Before(today):
		return ExpiryExpired
	case expiry.Before(today.Add(ExpiryWindow)):
		return ExpiryExpiringSoon
	default:
		return ExpiryValid
	}
}

// EffectiveExpiryStatus prefers the server supplied status and falls back to
// computing it locally.
func (i *InventoryItem) EffectiveExpiryStatus(now time.Time) string {
	if i.ExpiryStatus != "" {
		return i.ExpiryStatus
	}
	return i.ComputeExpiryStatus(now)
}

// NewInventoryItem is the request body for creating an item.
type NewInventoryItem struct {
	Name         string `json:"name" yaml:"name"`
	SKU          string `json:"sku" yaml:"sku"`
	Category     string `json:"category" yaml:"category"`
	Quantity     int    `json:"quantity" yaml:"quantity"`
	Unit         string `json:"unit" yaml:"unit"`
	MinimumStock int    `json:"minimum_stock" yaml:"minimum_stock"`
	ExpiryDate   string `json:"expiry_date,omitempty" yaml:"expiry_date"`
	Location     string `json:"location,omitempty" yaml:"location"`
}

// StockAdjustment is the request body for adjusting an item's quantity.
type StockAdjustment struct {
	QuantityChange  int    `json:"quantity_change"`
	TransactionType string `json:"transaction_type"`
	Notes           string `json:"notes,omitempty"`
}

// StockTransaction records a single change in an item's quantity.
type StockTransaction struct {
	ID               int64  `json:"id"`
	InventoryItem    int64  `json:"inventory_item"`
	ItemName         string `json:"item_name"`
	TransactionType  string `json:"transaction_type"`
	QuantityChange   int    `json:"quantity_change"`
	PreviousQuantity int    `json:"previous_quantity"`
	NewQuantity      int    `json:"new_quantity"`
	Notes            string `json:"notes,omitempty"`
	PerformedByName  string `json:"performed_by_name,omitempty"`
	PerformedAt      string `json:"performed_at"`
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
