package models

import (
	"fmt"
	"time"
)

// Purchase order statuses.
const (
	OrderPending   = "pending"
	OrderApproved  = "approved"
	OrderOrdered   = "ordered"
	OrderDelivered = "delivered"
	OrderCancelled = "cancelled"
)

// OrderItem is a line on a purchase order.
type OrderItem struct {
	ID                int64  `json:"id"`
	InventoryItem     int64  `json:"inventory_item"`
	InventoryItemName string `json:"inventory_item_name"`
	InventoryItemSKU  string `json:"inventory_item_sku"`
	Quantity          int    `json:"quantity"`
	UnitPrice         Money  `json:"unit_price"`
	TotalPrice        Money  `json:"total_price"`
}

// PurchaseOrder is an order raised against a supplier.
type PurchaseOrder struct {
	ID               int64       `json:"id"`
	OrderNumber      string      `json:"order_number"`
	Supplier         int64       `json:"supplier"`
	SupplierName     string      `json:"supplier_name"`
	OrderDate        string      `json:"order_date"`
	ExpectedDelivery string      `json:"expected_delivery,omitempty"`
	Status           string      `json:"status"`
	TotalAmount      Money       `json:"total_amount"`
	CreatedByName    string      `json:"created_by_name,omitempty"`
	ApprovedByName   string      `json:"approved_by_name,omitempty"`
	Notes            string      `json:"notes,omitempty"`
	Items            []OrderItem `json:"items"`
	CreatedAt        string      `json:"created_at"`
}

// NewOrderItem is a line of a purchase order being created.
type NewOrderItem struct {
	InventoryItem int64   `json:"inventory_item" yaml:"inventory_item"`
	Quantity      int     `json:"quantity" yaml:"quantity"`
	UnitPrice     float64 `json:"unit_price" yaml:"unit_price"`
}

// NewOrder is the request body for creating a purchase order.
type NewOrder struct {
	OrderNumber      string         `json:"order_number" yaml:"order_number"`
	Supplier         int64          `json:"supplier" yaml:"supplier"`
	OrderDate        string         `json:"order_date" yaml:"order_date"`
	ExpectedDelivery string         `json:"expected_delivery,omitempty" yaml:"expected_delivery"`
	Notes            string         `json:"notes,omitempty" yaml:"notes"`
	Items            []NewOrderItem `json:"items" yaml:"items"`
}

// Total returns the sum of quantity * unit price over all lines.
func (o *NewOrder) Total() float64 {
	var total float64
	for _, item := range o.Items {
		total += float64(item.Quantity) * item.UnitPrice
	}
	return total
}

// Validate checks the order has a supplier and at least one usable line.
func (o *NewOrder) Validate() error {
	if o.Supplier <= 0 {
		return fmt.Errorf("supplier is required")
	}
	if len(o.Items) == 0 {
		return fmt.Errorf("at least one item is required")
	}
	for i, item := range o.Items {
		if item.InventoryItem <= 0 {
			return fmt.Errorf("item %d: inventory_item is required", i+1)
		}
		if item.Quantity <= 0 {
			return fmt.Errorf("item %d: quantity must be positive", i+1)
		}
		if item.UnitPrice < 0 {
			return fmt.Errorf("item %d: unit_price must not be negative", i+1)
		}
	}
	return nil
}

// ApplyDefaults fills in the order number and order date when absent.
func (o *NewOrder) ApplyDefaults(now time.Time) {
	if o.OrderNumber == "" {
		o.OrderNumber = GenerateOrderNumber(now)
	}
	if o.OrderDate == "" {
		o.OrderDate = now.Format(DateLayout)
	}
}

// GenerateOrderNumber derives an order number from the last six digits of
// the unix millisecond clock.
func GenerateOrderNumber(now time.Time) string {
	return fmt.Sprintf("PO-%06d", now.UnixMilli()%1000000)
}

// OrderSummary holds the headline counts shown above the order list.
type OrderSummary struct {
	Active    int
	Pending   int
	InTransit int
	Delivered int
}

// SummarizeOrders counts orders by status. Every order that has not been
// delivered counts as active, cancelled ones included.
func SummarizeOrders(orders []PurchaseOrder) OrderSummary {
	var s OrderSummary
	for _, o := range orders {
		if o.Status != OrderDelivered {
			s.Active++
		}
		switch o.Status {
		case OrderPending:
			s.Pending++
		case OrderOrdered:
			s.InTransit++
		case OrderDelivered:
			s.Delivered++
		}
	}
	return s
}
