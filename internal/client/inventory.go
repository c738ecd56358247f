package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/wolfeidau/wardstock/internal/models"
)

const (
	inventoryPath    = "inventory/"
	lowStockPath     = "inventory/low_stock/"
	suppliersPath    = "suppliers/"
	transactionsPath = "transactions/"
)

// ListItems returns every inventory item.
func (c *Client) ListItems(ctx context.Context) ([]models.InventoryItem, error) {
	return getList[models.InventoryItem](ctx, c, inventoryPath)
}

// GetItem returns a single inventory item.
func (c *Client) GetItem(ctx context.Context, id int64) (*models.InventoryItem, error) {
	var item models.InventoryItem
	if err := c.Get(ctx, fmt.Sprintf("%s%d/", inventoryPath, id), &item); err != nil {
		return nil, err
	}
	return &item, nil
}

// CreateItem adds an inventory item.
func (c *Client) CreateItem(ctx context.Context, in models.NewInventoryItem) (*models.InventoryItem, error) {
	if in.Name == "" || in.SKU == "" {
		return nil, errors.New("name and sku are required")
	}

	var item models.InventoryItem
	if err := c.Post(ctx, inventoryPath, in, &item); err != nil {
		return nil, err
	}
	return &item, nil
}

// LowStock returns the items whose quantity is below their minimum.
func (c *Client) LowStock(ctx context.Context) ([]models.InventoryItem, error) {
	return getList[models.InventoryItem](ctx, c, lowStockPath)
}

// AdjustStock changes an item's quantity and records a transaction. The
// updated item is returned.
func (c *Client) AdjustStock(ctx context.Context, id int64, adj models.StockAdjustment) (*models.InventoryItem, error) {
	if adj.QuantityChange == 0 {
		return nil, errors.New("quantity change must not be zero")
	}
	if adj.TransactionType == "" {
		adj.TransactionType = models.TransactionAdjust
	}

	var item models.InventoryItem
	if err := c.Post(ctx, fmt.Sprintf("%s%d/adjust_stock/", inventoryPath, id), adj, &item); err != nil {
		return nil, err
	}
	return &item, nil
}

// ListSuppliers returns every supplier.
func (c *Client) ListSuppliers(ctx context.Context) ([]models.Supplier, error) {
	return getList[models.Supplier](ctx, c, suppliersPath)
}

// ListTransactions returns stock transactions, newest first.
func (c *Client) ListTransactions(ctx context.Context) ([]models.StockTransaction, error) {
	return getList[models.StockTransaction](ctx, c, transactionsPath)
}

// page is a paginated list response.
type page[T any] struct {
	Results []T `json:"results"`
}

// getList fetches a collection. Both a bare JSON array and a paginated
// {"results": [...]} object are accepted.
func getList[T any](ctx context.Context, c *Client, path string) ([]T, error) {
	var raw json.RawMessage
	if err := c.Get(ctx, path, &raw); err != nil {
		return nil, err
	}

	var items []T
	if err := json.Unmarshal(raw, &items); err == nil {
		return items, nil
	}

	var p page[T]
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return p.Results, nil
}
