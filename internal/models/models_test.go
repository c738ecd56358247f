package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2025, 3, 10, 15, 30, 0, 0, time.UTC)

func TestMoney_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  Money
	}{
		{name: "string decimal", input: `"12.50"`, want: 12.5},
		{name: "number", input: `7.25`, want: 7.25},
		{name: "null", input: `null`, want: 0},
		{name: "empty string", input: `""`, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var m Money
			require.NoError(t, json.Unmarshal([]byte(tt.input), &m))
			assert.InDelta(t, float64(tt.want), float64(m), 0.0001)
		})
	}

	t.Run("rejects garbage", func(t *testing.T) {
		var m Money
		assert.Error(t, json.Unmarshal([]byte(`"abc"`), &m))
	})

	t.Run("formats with two places", func(t *testing.T) {
		assert.Equal(t, "3.10", Money(3.1).String())
	})
}

func TestInventoryItem_ComputeExpiryStatus(t *testing.T) {
	tests := []struct {
		name   string
		expiry string
		want   string
	}{
		{name: "no expiry", expiry: "", want: ExpiryValid},
		{name: "unparseable", expiry: "soon", want: ExpiryValid},
		{name: "yesterday", expiry: "2025-03-09", want: ExpiryExpired},
		{name: "today", expiry: "2025-03-10", want: ExpiryExpiringSoon},
		{name: "within window", expiry: "2025-04-08", want: ExpiryExpiringSoon},
		{name: "window edge", expiry: "2025-04-09", want: ExpiryValid},
		{name: "far future", expiry: "2026-01-01", want: ExpiryValid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			item := InventoryItem{ExpiryDate: tt.expiry}
			assert.Equal(t, tt.want, item.ComputeExpiryStatus(testNow))
		})
	}
}

func TestInventoryItem_EffectiveExpiryStatus(t *testing.T) {
	item := InventoryItem{ExpiryDate: "2020-01-01", ExpiryStatus: ExpiryValid}
	assert.Equal(t, ExpiryValid, item.EffectiveExpiryStatus(testNow))

	item.ExpiryStatus = ""
	assert.Equal(t, ExpiryExpired, item.EffectiveExpiryStatus(testNow))
}

func TestInventoryItem_Decode(t *testing.T) {
	body := `{"id":4,"name":"Saline","sku":"SAL-1","category":"consumable","quantity":3,
		"unit":"bags","minimum_stock":10,"maximum_stock":null,"expiry_date":null,
		"supplier":2,"supplier_name":"MedCo","unit_price":"4.75","expiry_status":"valid"}`

	var item InventoryItem
	require.NoError(t, json.Unmarshal([]byte(body), &item))
	assert.Equal(t, int64(4), item.ID)
	assert.Nil(t, item.MaximumStock)
	assert.Empty(t, item.ExpiryDate)
	require.NotNil(t, item.Supplier)
	assert.Equal(t, int64(2), *item.Supplier)
	assert.InDelta(t, 4.75, float64(item.UnitPrice), 0.0001)
	assert.True(t, item.IsLowStock())
}

func TestFilterItems(t *testing.T) {
	items := []InventoryItem{
		{Name: "Amoxil 500mg", SKU: "AMX-500"},
		{Name: "Surgical Gloves", SKU: "GLV-M"},
		{Name: "Saline", SKU: "sal-1"},
	}

	assert.Len(t, FilterItems(items, ""), 3)
	assert.Equal(t, "Amoxil 500mg", FilterItems(items, "amoxil")[0].Name)
	assert.Equal(t, "Saline", FilterItems(items, "SAL-")[0].Name)
	assert.Empty(t, FilterItems(items, "oxygen"))
}

func TestFilterOrders(t *testing.T) {
	orders := []PurchaseOrder{
		{OrderNumber: "PO-123456", SupplierName: "MedCo"},
		{OrderNumber: "PO-654321", SupplierName: "PharmaPlus"},
	}

	assert.Len(t, FilterOrders(orders, "po-"), 2)
	got := FilterOrders(orders, "pharma")
	require.Len(t, got, 1)
	assert.Equal(t, "PO-654321", got[0].OrderNumber)
}

func TestFilterStaff(t *testing.T) {
	staff := []User{
		{Username: "alice", Email: "alice@general.org"},
		{Username: "bob", Email: "bob@clinic.org"},
	}

	got := FilterStaff(staff, "CLINIC")
	require.Len(t, got, 1)
	assert.Equal(t, "bob", got[0].Username)
}

func TestSummarizeOrders(t *testing.T) {
	orders := []PurchaseOrder{
		{Status: OrderPending},
		{Status: OrderPending},
		{Status: OrderOrdered},
		{Status: OrderDelivered},
		{Status: OrderCancelled},
	}

	assert.Equal(t, OrderSummary{Active: 4, Pending: 2, InTransit: 1, Delivered: 1}, SummarizeOrders(orders))
}

func TestNewOrder(t *testing.T) {
	t.Run("total", func(t *testing.T) {
		o := NewOrder{Items: []NewOrderItem{
			{InventoryItem: 1, Quantity: 2, UnitPrice: 1.5},
			{InventoryItem: 2, Quantity: 10, UnitPrice: 0.25},
		}}
		assert.InDelta(t, 5.5, o.Total(), 0.0001)
	})

	t.Run("defaults", func(t *testing.T) {
		o := NewOrder{Supplier: 1}
		o.ApplyDefaults(testNow)
		assert.Equal(t, "2025-03-10", o.OrderDate)
		assert.Regexp(t, `^PO-\d{6}$`, o.OrderNumber)
	})

	t.Run("keeps explicit values", func(t *testing.T) {
		o := NewOrder{OrderNumber: "PO-000001", OrderDate: "2025-01-01"}
		o.ApplyDefaults(testNow)
		assert.Equal(t, "PO-000001", o.OrderNumber)
		assert.Equal(t, "2025-01-01", o.OrderDate)
	})

	t.Run("validate", func(t *testing.T) {
		assert.ErrorContains(t, (&NewOrder{}).Validate(), "supplier")
		assert.ErrorContains(t, (&NewOrder{Supplier: 1}).Validate(), "at least one item")
		assert.ErrorContains(t, (&NewOrder{Supplier: 1, Items: []NewOrderItem{{InventoryItem: 1}}}).Validate(), "quantity")
		assert.NoError(t, (&NewOrder{Supplier: 1, Items: []NewOrderItem{{InventoryItem: 1, Quantity: 1}}}).Validate())
	})
}

func TestGenerateOrderNumber(t *testing.T) {
	now := time.UnixMilli(1700000123456)
	assert.Equal(t, "PO-123456", GenerateOrderNumber(now))

	now = time.UnixMilli(1700000000042)
	assert.Equal(t, "PO-000042", GenerateOrderNumber(now))
}

func TestDeriveAlerts(t *testing.T) {
	items := []InventoryItem{
		{ID: 1, Name: "Amoxil", SKU: "AMX", Quantity: 2, MinimumStock: 10, Unit: "boxes"},
		{ID: 2, Name: "Gloves", SKU: "GLV", Quantity: 8, MinimumStock: 10, Unit: "boxes"},
		{ID: 3, Name: "Saline", SKU: "SAL", Quantity: 50, MinimumStock: 10, ExpiryDate: "2025-03-20", BatchNumber: "B902"},
		{ID: 4, Name: "Insulin", SKU: "INS", Quantity: 50, MinimumStock: 10, ExpiryDate: "2025-01-01"},
		{ID: 5, Name: "Masks", SKU: "N95", Quantity: 100, MinimumStock: 10},
	}

	alerts := DeriveAlerts(items, testNow)
	require.Len(t, alerts, 4)

	assert.Equal(t, AlertCritical, alerts[0].Type)
	assert.Equal(t, int64(1), alerts[0].ItemID)
	assert.Equal(t, "Critical Stock Level", alerts[0].Title)

	assert.Equal(t, AlertCritical, alerts[1].Type)
	assert.Equal(t, "Expired Stock", alerts[1].Title)
	assert.Contains(t, alerts[1].Message, "batch unknown")

	assert.Equal(t, AlertWarning, alerts[2].Type)
	assert.Equal(t, int64(2), alerts[2].ItemID)

	assert.Equal(t, "Expiring Soon", alerts[3].Title)
	assert.Contains(t, alerts[3].Message, "B902")
}

func TestFilterAlerts(t *testing.T) {
	alerts := []Alert{
		{Title: "Critical Stock Level", Message: "Amoxil is low", Type: AlertCritical},
		{Title: "Expiring Soon", Message: "Saline expires", Type: AlertWarning},
	}

	assert.Len(t, FilterAlerts(alerts, AlertFilterAll, ""), 2)
	assert.Len(t, FilterAlerts(alerts, AlertFilterCritical, ""), 1)
	assert.Equal(t, AlertWarning, FilterAlerts(alerts, AlertFilterWarning, "")[0].Type)
	assert.Len(t, FilterAlerts(alerts, AlertFilterAll, "saline"), 1)
	assert.Empty(t, FilterAlerts(alerts, AlertFilterCritical, "saline"))
}

func TestRole_Valid(t *testing.T) {
	assert.True(t, RoleAdmin.Valid())
	assert.True(t, RoleStaff.Valid())
	assert.False(t, Role("guest").Valid())
}
